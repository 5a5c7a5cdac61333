package ytarchive

import (
	"ytarchive/internal/archive"
	"ytarchive/internal/retry"
	"ytarchive/internal/syncer"
	"ytarchive/internal/youtube"
)

// Error types exported for library users. All of them support errors.As
// and unwrap to the sentinels below.
type (
	// ListerError wraps errors during candidate listing.
	ListerError = youtube.ListerError
	// TranscriptError describes why a video has no usable transcript.
	TranscriptError = youtube.TranscriptError
	// SourceError reports a listing failure that aborted a run.
	SourceError = syncer.SourceError
	// AccessError reports that the archive could not be read, locked or written.
	AccessError = archive.AccessError
	// ExhaustedError wraps the last error once retries ran out.
	ExhaustedError = retry.ExhaustedError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrChannelNotFound indicates the YouTube channel does not exist.
	ErrChannelNotFound = youtube.ErrChannelNotFound
	// ErrRateLimited indicates the operation was rate limited.
	ErrRateLimited = youtube.ErrRateLimited
	// ErrNetworkTimeout indicates a network timeout occurred.
	ErrNetworkTimeout = youtube.ErrNetworkTimeout
	// ErrInvalidURL indicates the provided URL is invalid.
	ErrInvalidURL = youtube.ErrInvalidURL
	// ErrYtdlpNotInstalled indicates yt-dlp binary was not found.
	ErrYtdlpNotInstalled = youtube.ErrYtdlpNotInstalled

	// Transcript errors
	ErrTranscriptNotFound    = youtube.ErrTranscriptNotFound
	ErrTranscriptDisabled    = youtube.ErrTranscriptDisabled
	ErrTranscriptUnavailable = youtube.ErrTranscriptUnavailable

	// ErrLockTimeout indicates another process holds the archive lock.
	ErrLockTimeout = archive.ErrLockTimeout
)

// IsRetryable reports whether err is worth retrying. Context errors and
// errors a source marked permanent, such as a missing channel, are not.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
