package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"ytarchive/internal/httpclient"
	"ytarchive/internal/retry"
)

// fakeProbe returns canned yt-dlp -J output or a failure.
type fakeProbe struct {
	info   *videoCaptionInfo
	stderr string
	err    error
	calls  atomic.Int32
}

func (f *fakeProbe) run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, []byte(f.stderr), f.err
	}
	out, err := json.Marshal(f.info)
	return out, nil, err
}

func newTestCaptionFetcher(t *testing.T, probe *fakeProbe) *CaptionFetcher {
	t.Helper()
	cfg := httpclient.DefaultConfig()
	cfg.RequestsPerSecond = 0
	cfg.Retry = retry.NoRetry()

	f := NewCaptionFetcher(
		WithCommandRunner(probe.run),
		WithHTTPClient(httpclient.New(cfg)),
	)
	f.RetryConfig = fastRetry(2)
	return f
}

func captionServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/manual.json3", "/auto.json3":
			w.Write([]byte(sampleJSON3))
		case "/manual.vtt":
			w.Write([]byte(sampleVTT))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCaptionFetcher_PrefersManualTrack(t *testing.T) {
	server := captionServer(t)
	probe := &fakeProbe{info: &videoCaptionInfo{
		ID:         "aaaaaaaaaaa",
		Title:      "Sunday Service - Brother Evans",
		UploadDate: "20250112",
		Subtitles: map[string][]captionTrack{
			"en-US": {{Ext: "vtt", URL: server.URL + "/manual.vtt"}, {Ext: "json3", URL: server.URL + "/manual.json3"}},
		},
		AutomaticCaptions: map[string][]captionTrack{
			"en": {{Ext: "json3", URL: server.URL + "/auto.json3"}},
		},
	}}
	f := newTestCaptionFetcher(t, probe)

	tr, err := f.Fetch(context.Background(), "aaaaaaaaaaa")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if tr.Language != "en-US" || tr.IsAutoGenerated {
		t.Errorf("Fetch() picked %s (auto=%v), want manual en-US", tr.Language, tr.IsAutoGenerated)
	}
	if want := "Good morning, church.\nTurn with me to \"Hebrews\" 13:8\n[Music]"; tr.Text != want {
		t.Errorf("Fetch() text = %q, want %q", tr.Text, want)
	}
	if want := time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC); !tr.UploadDate.Equal(want) {
		t.Errorf("Fetch() upload date = %v, want %v", tr.UploadDate, want)
	}
	if tr.Title != "Sunday Service - Brother Evans" {
		t.Errorf("Fetch() title = %q", tr.Title)
	}
}

func TestCaptionFetcher_FallsBackToAuto(t *testing.T) {
	server := captionServer(t)
	probe := &fakeProbe{info: &videoCaptionInfo{
		Subtitles: map[string][]captionTrack{
			"es": {{Ext: "json3", URL: server.URL + "/manual.json3"}},
		},
		AutomaticCaptions: map[string][]captionTrack{
			"en": {{Ext: "json3", URL: server.URL + "/auto.json3"}},
		},
	}}
	f := newTestCaptionFetcher(t, probe)

	tr, err := f.Fetch(context.Background(), "aaaaaaaaaaa")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if tr.Language != "en" || !tr.IsAutoGenerated {
		t.Errorf("Fetch() picked %s (auto=%v), want auto en", tr.Language, tr.IsAutoGenerated)
	}
}

func TestCaptionFetcher_Failures(t *testing.T) {
	server := captionServer(t)

	tests := []struct {
		name      string
		probe     *fakeProbe
		wantKind  TranscriptKind
		wantErr   error
		wantCalls int32
	}{
		{
			name:      "no tracks",
			probe:     &fakeProbe{info: &videoCaptionInfo{}},
			wantKind:  TranscriptDisabled,
			wantErr:   ErrTranscriptDisabled,
			wantCalls: 1,
		},
		{
			name: "no matching language",
			probe: &fakeProbe{info: &videoCaptionInfo{
				Subtitles: map[string][]captionTrack{"fr": {{Ext: "json3", URL: server.URL + "/manual.json3"}}},
			}},
			wantKind:  TranscriptNotFound,
			wantErr:   ErrTranscriptNotFound,
			wantCalls: 1,
		},
		{
			name:      "upcoming stream",
			probe:     &fakeProbe{info: &videoCaptionInfo{LiveStatus: "is_upcoming"}},
			wantKind:  TranscriptUnavailable,
			wantErr:   ErrTranscriptUnavailable,
			wantCalls: 1,
		},
		{
			name: "track gone",
			probe: &fakeProbe{info: &videoCaptionInfo{
				Subtitles: map[string][]captionTrack{"en": {{Ext: "json3", URL: server.URL + "/missing.json3"}}},
			}},
			wantKind:  TranscriptNotFound,
			wantErr:   ErrTranscriptNotFound,
			wantCalls: 1,
		},
		{
			name:      "private video",
			probe:     &fakeProbe{err: errors.New("exit status 1"), stderr: "ERROR: [youtube] aaaaaaaaaaa: Private video"},
			wantKind:  TranscriptNotFound,
			wantErr:   ErrTranscriptNotFound,
			wantCalls: 1,
		},
		{
			name:      "rate limited is retried",
			probe:     &fakeProbe{err: errors.New("exit status 1"), stderr: "ERROR: HTTP Error 429: Too Many Requests"},
			wantKind:  TranscriptUnavailable,
			wantErr:   ErrRateLimited,
			wantCalls: 3,
		},
		{
			name:      "yt-dlp missing",
			probe:     &fakeProbe{err: &exec.Error{Name: "yt-dlp", Err: exec.ErrNotFound}},
			wantKind:  TranscriptUnavailable,
			wantErr:   ErrYtdlpNotInstalled,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestCaptionFetcher(t, tt.probe)

			_, err := f.Fetch(context.Background(), "aaaaaaaaaaa")
			var te *TranscriptError
			if !errors.As(err, &te) {
				t.Fatalf("Fetch() error = %v, want *TranscriptError", err)
			}
			if te.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", te.Kind, tt.wantKind)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Fetch() error = %v, want %v", err, tt.wantErr)
			}
			if te.VideoID != "aaaaaaaaaaa" {
				t.Errorf("VideoID = %q", te.VideoID)
			}
			if got := tt.probe.calls.Load(); got != tt.wantCalls {
				t.Errorf("probe ran %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestMatchLanguage(t *testing.T) {
	tracks := map[string][]captionTrack{"en-GB": nil, "en-US": nil, "es": nil}

	tests := []struct {
		lang   string
		want   string
		wantOK bool
	}{
		{"es", "es", true},
		{"en", "en-GB", true},
		{"fr", "", false},
	}
	for _, tt := range tests {
		got, ok := matchLanguage(tracks, tt.lang)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("matchLanguage(%q) = %q, %v; want %q, %v", tt.lang, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestTranscriptError(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := &TranscriptError{VideoID: "aaaaaaaaaaa", Kind: TranscriptDisabled, Err: cause}

	if !errors.Is(err, ErrTranscriptDisabled) || !errors.Is(err, cause) {
		t.Errorf("TranscriptError does not unwrap to kind and cause: %v", err)
	}
	if TranscriptKindOf(err) != TranscriptDisabled {
		t.Errorf("TranscriptKindOf() = %v", TranscriptKindOf(err))
	}
	if TranscriptKindOf(errors.New("other")) != TranscriptUnavailable {
		t.Error("TranscriptKindOf(plain error) should be unavailable")
	}
}
