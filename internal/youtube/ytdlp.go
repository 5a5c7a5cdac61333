package youtube

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"ytarchive/internal/retry"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 10 * time.Minute
)

// YtdlpLister lists channel tabs with yt-dlp, reading one JSON object per
// line from --flat-playlist -j so results stream as yt-dlp paginates.
type YtdlpLister struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout bounds one yt-dlp invocation. Defaults to 10 minutes.
	Timeout time.Duration

	// ExtraArgs are additional arguments to pass to yt-dlp.
	ExtraArgs []string

	// RetryConfig controls retries of a listing that failed before
	// yielding anything.
	RetryConfig *retry.Config
}

// NewYtdlpLister creates a new yt-dlp based video lister.
func NewYtdlpLister() *YtdlpLister {
	cfg := retry.DefaultConfig()
	return &YtdlpLister{
		Path:        defaultYtdlpPath,
		Timeout:     defaultYtdlpTimeout,
		RetryConfig: &cfg,
	}
}

// Candidates streams the channel tab selected by opts.ContentType.
func (y *YtdlpLister) Candidates(ctx context.Context, channelURL string, opts *ListOptions) iter.Seq2[VideoInfo, error] {
	if opts == nil {
		opts = &ListOptions{}
	}
	return func(yield func(VideoInfo, error) bool) {
		cfg := retry.DefaultConfig()
		if y.RetryConfig != nil {
			cfg = *y.RetryConfig
		}

		yielded, stopped := 0, false
		err := retry.Do(ctx, cfg, ytdlpErrorClassifier, func(ctx context.Context) error {
			err := y.stream(ctx, channelURL, opts, func(v VideoInfo) bool {
				yielded++
				if !yield(v, nil) {
					stopped = true
					return false
				}
				return true
			})
			if err != nil && yielded > 0 {
				// Restarting would yield duplicates.
				return retry.Permanent(err)
			}
			return err
		})
		if err != nil && !stopped {
			yield(VideoInfo{}, err)
		}
	}
}

// stream runs yt-dlp once and passes each parsed entry to emit until emit
// returns false.
func (y *YtdlpLister) stream(ctx context.Context, channelURL string, opts *ListOptions, emit func(VideoInfo) bool) error {
	timeout := y.Timeout
	if timeout <= 0 {
		timeout = defaultYtdlpTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, y.path(), y.args(channelURL, opts)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ListerError{Source: "ytdlp", Channel: channelURL, Err: err}
	}
	if err := cmd.Start(); err != nil {
		if isNotInstalled(err) {
			return &ListerError{Source: "ytdlp", Channel: channelURL, Err: ErrYtdlpNotInstalled}
		}
		return &ListerError{Source: "ytdlp", Channel: channelURL, Err: err}
	}

	videoType := "video"
	if opts.ContentType == ContentTypeStreams {
		videoType = "stream"
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 8<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry ytdlpEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			cancel()
			cmd.Wait()
			return &ListerError{Source: "ytdlp", Channel: channelURL,
				Err: fmt.Errorf("parse yt-dlp output: %w", err)}
		}
		if entry.ID == "" {
			continue
		}
		if !emit(entry.videoInfo(videoType)) {
			cancel()
			cmd.Wait()
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		// Nobody reads the pipe any more; stop yt-dlp instead of waiting
		// for it to block until the timeout.
		cancel()
		cmd.Wait()
		return &ListerError{Source: "ytdlp", Channel: channelURL,
			Err: retry.Permanent(fmt.Errorf("read yt-dlp output: %w", err))}
	}

	if err := cmd.Wait(); err != nil {
		switch {
		case errors.Is(cmdCtx.Err(), context.DeadlineExceeded):
			return &ListerError{Source: "ytdlp", Channel: channelURL, Err: ErrNetworkTimeout}
		case errors.Is(ctx.Err(), context.Canceled):
			return &ListerError{Source: "ytdlp", Channel: channelURL, Err: context.Canceled}
		}
		return &ListerError{Source: "ytdlp", Channel: channelURL, Err: classifyYtdlpStderr(err, stderr.String())}
	}
	return nil
}

func (y *YtdlpLister) args(channelURL string, opts *ListOptions) []string {
	args := []string{"--flat-playlist", "-j", "--no-warnings", "--ignore-no-formats-error"}
	if opts.MaxResults > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(opts.MaxResults))
	}
	args = append(args, y.ExtraArgs...)
	return append(args, normalizeChannelURL(channelURL, opts.ContentType))
}

func (y *YtdlpLister) path() string {
	if y.Path != "" {
		return y.Path
	}
	return defaultYtdlpPath
}

// classifyYtdlpStderr maps common yt-dlp failure messages to sentinels.
func classifyYtdlpStderr(err error, stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "does not exist") || strings.Contains(msg, "404"):
		return ErrChannelNotFound
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return ErrRateLimited
	}
	return fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr))
}

// ytdlpEntry is one line of yt-dlp --flat-playlist -j output.
type ytdlpEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Channel    string  `json:"channel"`
	Uploader   string  `json:"uploader"`
	ChannelID  string  `json:"channel_id"`
	UploadDate string  `json:"upload_date"`
	Timestamp  int64   `json:"timestamp"`
}

func (e ytdlpEntry) videoInfo(videoType string) VideoInfo {
	return VideoInfo{
		ID:          e.ID,
		Title:       e.Title,
		ChannelID:   e.ChannelID,
		ChannelName: coalesce(e.Channel, e.Uploader),
		Duration:    time.Duration(e.Duration * float64(time.Second)),
		Published:   parseYtdlpDate(e.Timestamp, e.UploadDate),
		Type:        videoType,
	}
}

// parseYtdlpDate prefers the unix timestamp and falls back to YYYYMMDD.
func parseYtdlpDate(timestamp int64, uploadDate string) time.Time {
	if timestamp > 0 {
		return time.Unix(timestamp, 0).UTC()
	}
	if uploadDate != "" {
		if t, err := time.Parse("20060102", uploadDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

// isNotInstalled reports whether starting the executable failed because it
// does not exist.
func isNotInstalled(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ytdlpErrorClassifier decides whether a failed listing is worth retrying.
func ytdlpErrorClassifier(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	switch {
	case errors.Is(err, ErrChannelNotFound),
		errors.Is(err, ErrYtdlpNotInstalled),
		errors.Is(err, ErrInvalidURL),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
