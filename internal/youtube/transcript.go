package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for transcript retrieval. A *TranscriptError unwraps to
// the sentinel of its kind.
var (
	ErrTranscriptNotFound    = errors.New("youtube: transcript not found")
	ErrTranscriptDisabled    = errors.New("youtube: transcripts disabled")
	ErrTranscriptUnavailable = errors.New("youtube: transcript unavailable")
)

// TranscriptSource retrieves the plain text transcript of a video.
// Failures are returned as *TranscriptError.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string) (*Transcript, error)
}

// Transcript is the flattened caption text of one video.
type Transcript struct {
	VideoID string
	// Title is the video title as reported with the captions. May be empty.
	Title           string
	Language        string
	IsAutoGenerated bool
	// Text holds one caption line per line, without a trailing newline.
	Text string
	// UploadDate is zero when the source does not report it.
	UploadDate time.Time
}

// TranscriptKind classifies why a transcript could not be retrieved.
type TranscriptKind int

const (
	// TranscriptNotFound means no track exists in an accepted language, or
	// the video itself is gone.
	TranscriptNotFound TranscriptKind = iota
	// TranscriptDisabled means the video has no caption tracks at all.
	TranscriptDisabled
	// TranscriptUnavailable covers transient conditions: rate limits,
	// network failures, streams that have not finished.
	TranscriptUnavailable
)

func (k TranscriptKind) String() string {
	switch k {
	case TranscriptNotFound:
		return "not_found"
	case TranscriptDisabled:
		return "disabled"
	case TranscriptUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k TranscriptKind) sentinel() error {
	switch k {
	case TranscriptDisabled:
		return ErrTranscriptDisabled
	case TranscriptUnavailable:
		return ErrTranscriptUnavailable
	default:
		return ErrTranscriptNotFound
	}
}

// TranscriptError reports a failed transcript retrieval for one video.
type TranscriptError struct {
	VideoID string
	Kind    TranscriptKind
	Err     error
}

func (e *TranscriptError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transcript %s: %v", e.VideoID, e.Kind.sentinel())
	}
	return fmt.Sprintf("transcript %s: %v: %v", e.VideoID, e.Kind.sentinel(), e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *TranscriptError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// TranscriptKindOf returns the kind of a transcript failure. Errors that
// are not *TranscriptError are treated as unavailable.
func TranscriptKindOf(err error) TranscriptKind {
	var te *TranscriptError
	if errors.As(err, &te) {
		return te.Kind
	}
	return TranscriptUnavailable
}
