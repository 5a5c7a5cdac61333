// Package youtube discovers channel videos and retrieves their transcripts.
//
// Candidate sources yield videos lazily, newest first, so callers can stop
// after the first few without enumerating a whole channel. Transcript
// sources return plain text or a *TranscriptError describing why none is
// available.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

// Sentinel errors for video listing operations.
var (
	ErrChannelNotFound   = errors.New("youtube: channel not found")
	ErrRateLimited       = errors.New("youtube: rate limited")
	ErrNetworkTimeout    = errors.New("youtube: network timeout")
	ErrInvalidURL        = errors.New("youtube: invalid URL")
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")
)

// CandidateSource yields videos of a channel in the source's native order,
// which for every implementation here is newest first.
//
// The sequence is lazy: stopping the range loop stops the underlying
// request or subprocess. A non-nil error is always the last element.
type CandidateSource interface {
	Candidates(ctx context.Context, channelURL string, opts *ListOptions) iter.Seq2[VideoInfo, error]
}

// ListOptions configures video listing behavior.
type ListOptions struct {
	// MaxResults is a hint for how many videos the caller will consume.
	// Sources use it to bound remote work. 0 means no hint.
	MaxResults int

	// ContentType selects the channel tab to list.
	ContentType ContentType
}

// ContentType specifies what type of content to list.
type ContentType int

const (
	// ContentTypeVideos lists regular uploads.
	ContentTypeVideos ContentType = iota
	// ContentTypeStreams lists live streams and their recordings.
	ContentTypeStreams
)

// String returns the channel tab name.
func (c ContentType) String() string {
	if c == ContentTypeStreams {
		return "streams"
	}
	return "videos"
}

// ParseContentType parses "videos" or "streams".
func ParseContentType(s string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "videos", "video", "":
		return ContentTypeVideos, nil
	case "streams", "stream", "live":
		return ContentTypeStreams, nil
	default:
		return 0, fmt.Errorf("youtube: unknown content type %q (use videos or streams)", s)
	}
}

// VideoInfo describes a discovered video.
type VideoInfo struct {
	// ID is the YouTube video ID (e.g., "dQw4w9WgXcQ").
	ID string `json:"id"`

	// Title is the video title.
	Title string `json:"title"`

	// ChannelID is the YouTube channel ID.
	ChannelID string `json:"channel_id,omitempty"`

	// ChannelName is the display name of the channel.
	ChannelName string `json:"channel_name,omitempty"`

	// Published is when the video was published. Zero when the source
	// does not report it.
	Published time.Time `json:"published,omitempty"`

	// Duration is the video length. May be zero.
	Duration time.Duration `json:"duration,omitempty"`

	// Type is "video" or "stream".
	Type string `json:"type,omitempty"`
}

// VideoURL returns the full YouTube URL for this video.
func (v VideoInfo) VideoURL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// ListerError wraps listing errors with context about what failed.
//
//	var listerErr *youtube.ListerError
//	if errors.As(err, &listerErr) {
//		fmt.Printf("Failed to list from %s: %v\n", listerErr.Source, listerErr.Err)
//	}
type ListerError struct {
	// Source indicates which lister produced the error ("rss", "ytdlp", "api").
	Source string
	// Channel is the channel URL or ID that was being listed.
	Channel string
	// Err is the underlying error that occurred.
	Err error
}

func (e *ListerError) Error() string {
	return "youtube: " + e.Source + " listing " + e.Channel + ": " + e.Err.Error()
}

func (e *ListerError) Unwrap() error { return e.Err }

// Collect drains up to limit videos from seq. limit <= 0 drains all.
func Collect(seq iter.Seq2[VideoInfo, error], limit int) ([]VideoInfo, error) {
	var videos []VideoInfo
	for v, err := range seq {
		if err != nil {
			return videos, err
		}
		videos = append(videos, v)
		if limit > 0 && len(videos) >= limit {
			break
		}
	}
	return videos, nil
}

// errSeq returns a sequence that yields only err.
func errSeq(err error) iter.Seq2[VideoInfo, error] {
	return func(yield func(VideoInfo, error) bool) {
		yield(VideoInfo{}, err)
	}
}
