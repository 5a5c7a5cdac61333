package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"ytarchive/internal/httpclient"
	"ytarchive/internal/retry"
)

const defaultCaptionProbeTimeout = 2 * time.Minute

// CommandRunner runs an external command and returns its output.
type CommandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// execRunner runs the command with os/exec.
func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// CaptionFetcher retrieves transcripts from YouTube caption tracks. It asks
// yt-dlp for the video's track list, picks a track and downloads it through
// the rate limited HTTP client.
//
// Manual tracks win over auto-generated ones; within each group, Languages
// is searched in order, matching "en" against "en" and then "en-US" style
// variants.
type CaptionFetcher struct {
	// Path is the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout bounds one yt-dlp probe. Defaults to 2 minutes.
	Timeout time.Duration

	// Languages in order of preference. Defaults to ["en"].
	Languages []string

	// ExtraArgs are passed to yt-dlp before the video URL.
	ExtraArgs []string

	// RetryConfig controls retries of transient (unavailable) failures.
	RetryConfig *retry.Config

	client *httpclient.Client
	run    CommandRunner
	logger *slog.Logger
}

// CaptionOption configures a CaptionFetcher.
type CaptionOption func(*CaptionFetcher)

// WithHTTPClient sets the client used to download tracks.
func WithHTTPClient(c *httpclient.Client) CaptionOption {
	return func(f *CaptionFetcher) { f.client = c }
}

// WithCommandRunner replaces os/exec, mainly for tests.
func WithCommandRunner(run CommandRunner) CaptionOption {
	return func(f *CaptionFetcher) { f.run = run }
}

// WithLogger sets the logger for track selection details.
func WithLogger(l *slog.Logger) CaptionOption {
	return func(f *CaptionFetcher) { f.logger = l }
}

// NewCaptionFetcher creates a fetcher with defaults applied.
func NewCaptionFetcher(opts ...CaptionOption) *CaptionFetcher {
	cfg := retry.DefaultConfig()
	f := &CaptionFetcher{
		Path:        defaultYtdlpPath,
		Timeout:     defaultCaptionProbeTimeout,
		Languages:   []string{"en"},
		RetryConfig: &cfg,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = httpclient.New(nil)
	}
	if f.run == nil {
		f.run = execRunner
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Fetch returns the transcript of videoID. Unavailable failures are retried
// per RetryConfig; other kinds return immediately.
func (f *CaptionFetcher) Fetch(ctx context.Context, videoID string) (*Transcript, error) {
	cfg := retry.DefaultConfig()
	if f.RetryConfig != nil {
		cfg = *f.RetryConfig
	}

	var out *Transcript
	err := retry.Do(ctx, cfg, transcriptErrorClassifier, func(ctx context.Context) error {
		t, err := f.fetchOnce(ctx, videoID)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		var te *TranscriptError
		if errors.As(err, &te) {
			// Drop the retry wrapper so callers see the kind directly.
			return nil, te
		}
		return nil, &TranscriptError{VideoID: videoID, Kind: TranscriptUnavailable, Err: err}
	}
	return out, nil
}

func (f *CaptionFetcher) fetchOnce(ctx context.Context, videoID string) (*Transcript, error) {
	info, err := f.probe(ctx, videoID)
	if err != nil {
		return nil, err
	}

	switch info.LiveStatus {
	case "is_upcoming", "is_live", "post_live":
		return nil, &TranscriptError{VideoID: videoID, Kind: TranscriptUnavailable,
			Err: retry.Permanent(fmt.Errorf("live status %s", info.LiveStatus))}
	}

	track, lang, auto, kind := pickTrack(info, f.languages())
	if track == nil {
		return nil, &TranscriptError{VideoID: videoID, Kind: kind,
			Err: fmt.Errorf("no caption track for languages %v", f.languages())}
	}
	f.logger.Debug("youtube: caption track selected",
		"video_id", videoID, "language", lang, "auto", auto, "ext", track.Ext)

	resp, err := f.client.Get(ctx, track.URL)
	if err != nil {
		return nil, classifyDownloadError(videoID, err)
	}

	var text string
	switch track.Ext {
	case "json3":
		text, err = parseJSON3(resp.Body)
	default:
		text, err = parseVTT(resp.Body)
	}
	if err != nil {
		return nil, &TranscriptError{VideoID: videoID, Kind: TranscriptUnavailable, Err: retry.Permanent(err)}
	}

	return &Transcript{
		VideoID:         videoID,
		Title:           info.Title,
		Language:        lang,
		IsAutoGenerated: auto,
		Text:            text,
		UploadDate:      parseYtdlpDate(info.Timestamp, info.UploadDate),
	}, nil
}

func (f *CaptionFetcher) languages() []string {
	if len(f.Languages) == 0 {
		return []string{"en"}
	}
	return f.Languages
}

// probe runs yt-dlp -J for a single video.
func (f *CaptionFetcher) probe(ctx context.Context, videoID string) (*videoCaptionInfo, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultCaptionProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path := f.Path
	if path == "" {
		path = defaultYtdlpPath
	}
	args := []string{"-J", "--skip-download", "--no-warnings", "--no-playlist"}
	args = append(args, f.ExtraArgs...)
	args = append(args, VideoInfo{ID: videoID}.VideoURL())

	stdout, stderr, err := f.run(probeCtx, path, args...)
	if err != nil {
		switch {
		case isNotInstalled(err):
			return nil, &TranscriptError{VideoID: videoID, Kind: TranscriptUnavailable,
				Err: retry.Permanent(ErrYtdlpNotInstalled)}
		case ctx.Err() != nil:
			return nil, &TranscriptError{VideoID: videoID, Kind: TranscriptUnavailable, Err: ctx.Err()}
		case errors.Is(probeCtx.Err(), context.DeadlineExceeded):
			return nil, &TranscriptError{VideoID: videoID, Kind: TranscriptUnavailable, Err: ErrNetworkTimeout}
		}
		return nil, classifyProbeStderr(videoID, err, string(stderr))
	}

	var info videoCaptionInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, &TranscriptError{VideoID: videoID, Kind: TranscriptUnavailable,
			Err: retry.Permanent(fmt.Errorf("parse yt-dlp output: %w", err))}
	}
	return &info, nil
}

// videoCaptionInfo is the subset of yt-dlp -J output used for captions.
type videoCaptionInfo struct {
	ID                string                    `json:"id"`
	Title             string                    `json:"title"`
	UploadDate        string                    `json:"upload_date"`
	Timestamp         int64                     `json:"timestamp"`
	LiveStatus        string                    `json:"live_status"`
	Subtitles         map[string][]captionTrack `json:"subtitles"`
	AutomaticCaptions map[string][]captionTrack `json:"automatic_captions"`
}

type captionTrack struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// pickTrack selects a track, or reports Disabled when the video has no
// tracks and NotFound when none matches the languages.
func pickTrack(info *videoCaptionInfo, languages []string) (*captionTrack, string, bool, TranscriptKind) {
	if len(info.Subtitles) == 0 && len(info.AutomaticCaptions) == 0 {
		return nil, "", false, TranscriptDisabled
	}

	groups := []struct {
		tracks map[string][]captionTrack
		auto   bool
	}{
		{info.Subtitles, false},
		{info.AutomaticCaptions, true},
	}
	for _, g := range groups {
		for _, lang := range languages {
			key, ok := matchLanguage(g.tracks, lang)
			if !ok {
				continue
			}
			if t := preferredFormat(g.tracks[key]); t != nil {
				return t, key, g.auto, 0
			}
		}
	}
	return nil, "", false, TranscriptNotFound
}

// matchLanguage finds lang exactly, then as a prefix ("en" matches "en-US"
// or "en-orig"). Prefix matches are resolved in sorted key order.
func matchLanguage(tracks map[string][]captionTrack, lang string) (string, bool) {
	if _, ok := tracks[lang]; ok {
		return lang, true
	}
	best := ""
	for key := range tracks {
		if strings.HasPrefix(key, lang+"-") && (best == "" || key < best) {
			best = key
		}
	}
	return best, best != ""
}

// preferredFormat returns the json3 variant, falling back to vtt.
func preferredFormat(tracks []captionTrack) *captionTrack {
	var vtt *captionTrack
	for i := range tracks {
		switch tracks[i].Ext {
		case "json3":
			return &tracks[i]
		case "vtt":
			if vtt == nil {
				vtt = &tracks[i]
			}
		}
	}
	return vtt
}

func classifyProbeStderr(videoID string, err error, stderr string) error {
	msg := strings.ToLower(stderr)
	cause := fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr))
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return &TranscriptError{VideoID: videoID, Kind: TranscriptUnavailable, Err: fmt.Errorf("%w: %w", ErrRateLimited, cause)}
	case strings.Contains(msg, "video unavailable"),
		strings.Contains(msg, "private video"),
		strings.Contains(msg, "has been removed"),
		strings.Contains(msg, "members-only"),
		strings.Contains(msg, "not a valid url"):
		return &TranscriptError{VideoID: videoID, Kind: TranscriptNotFound, Err: cause}
	}
	return &TranscriptError{VideoID: videoID, Kind: TranscriptUnavailable, Err: cause}
}

func classifyDownloadError(videoID string, err error) error {
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusNotFound || httpErr.StatusCode == http.StatusGone) {
		return &TranscriptError{VideoID: videoID, Kind: TranscriptNotFound, Err: err}
	}
	var rlErr *httpclient.RateLimitError
	if errors.As(err, &rlErr) {
		err = fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	// The client already retried transient download failures.
	return &TranscriptError{VideoID: videoID, Kind: TranscriptUnavailable, Err: retry.Permanent(err)}
}

// transcriptErrorClassifier retries only transient failures.
func transcriptErrorClassifier(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	return TranscriptKindOf(err) == TranscriptUnavailable
}
