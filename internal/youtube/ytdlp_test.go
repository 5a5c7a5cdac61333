package youtube

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// writeFakeYtdlp writes a shell script standing in for yt-dlp. The script
// records its arguments to args.txt next to it.
func writeFakeYtdlp(t *testing.T, body string) (path, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp is a shell script")
	}
	dir := t.TempDir()
	path = filepath.Join(dir, "yt-dlp")
	argsFile = filepath.Join(dir, "args.txt")
	script := "#!/bin/sh\necho \"$@\" >> '" + argsFile + "'\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake yt-dlp: %v", err)
	}
	return path, argsFile
}

func TestYtdlpLister_Candidates(t *testing.T) {
	path, argsFile := writeFakeYtdlp(t, "cat <<'EOF'\n"+sampleFlatPlaylist+"EOF\n")

	lister := &YtdlpLister{Path: path, Timeout: 10 * time.Second, RetryConfig: fastRetry(0)}
	videos, err := Collect(lister.Candidates(context.Background(), "https://www.youtube.com/@TucsonTabernacle",
		&ListOptions{MaxResults: 11, ContentType: ContentTypeStreams}), 0)
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}

	want := []VideoInfo{
		{
			ID:          "aaaaaaaaaaa",
			Title:       "Sunday Service - Brother Evans",
			ChannelID:   testChannelID,
			ChannelName: "Tucson Tabernacle",
			Published:   time.Date(2025, 1, 10, 10, 40, 0, 0, time.UTC),
			Duration:    90 * time.Minute,
			Type:        "stream",
		},
		{
			ID:          "bbbbbbbbbbb",
			Title:       "Wednesday Service",
			ChannelName: "Tucson Tabernacle",
			Published:   time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
			Duration:    3600*time.Second + 500*time.Millisecond,
			Type:        "stream",
		},
		{ID: "ccccccccccc", Title: "Youth Night - Guerra", Type: "stream"},
	}
	if diff := cmp.Diff(want, videos); diff != "" {
		t.Errorf("Candidates() mismatch (-want +got):\n%s", diff)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	got := strings.TrimSpace(string(args))
	for _, part := range []string{"--flat-playlist", "-j", "--playlist-end 11", "https://www.youtube.com/@TucsonTabernacle/streams"} {
		if !strings.Contains(got, part) {
			t.Errorf("yt-dlp args %q missing %q", got, part)
		}
	}
}

func TestYtdlpLister_EarlyStop(t *testing.T) {
	// Emits one entry, then blocks; stopping must not wait for the sleep.
	path, _ := writeFakeYtdlp(t, `echo '{"id": "aaaaaaaaaaa", "title": "first"}'
exec sleep 30
`)

	lister := &YtdlpLister{Path: path, Timeout: time.Minute, RetryConfig: fastRetry(0)}

	start := time.Now()
	videos, err := Collect(lister.Candidates(context.Background(), testChannelID, nil), 1)
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	if len(videos) != 1 || videos[0].ID != "aaaaaaaaaaa" {
		t.Errorf("Candidates() = %+v, want the first entry", videos)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("early stop took %v, subprocess was not killed", elapsed)
	}
}

func TestYtdlpLister_OversizedLineStopsProcess(t *testing.T) {
	// A 9 MB line overflows the scanner; yt-dlp keeps running afterwards.
	path, _ := writeFakeYtdlp(t, `head -c 9000000 /dev/zero | tr '\0' 'a'
echo
exec sleep 30
`)

	lister := &YtdlpLister{Path: path, Timeout: time.Minute, RetryConfig: fastRetry(0)}

	start := time.Now()
	_, err := Collect(lister.Candidates(context.Background(), testChannelID, nil), 0)
	if err == nil {
		t.Fatal("Candidates() error = nil, want read failure")
	}
	var listerErr *ListerError
	if !errors.As(err, &listerErr) {
		t.Errorf("Candidates() error = %v, want *ListerError", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("read failure took %v, subprocess was not killed", elapsed)
	}
}

func TestYtdlpLister_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{
			name:    "channel not found",
			body:    "echo 'ERROR: [youtube:tab] This channel does not exist.' >&2\nexit 1\n",
			wantErr: ErrChannelNotFound,
		},
		{
			name:    "rate limited",
			body:    "echo 'ERROR: HTTP Error 429: Too Many Requests' >&2\nexit 1\n",
			wantErr: ErrRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, _ := writeFakeYtdlp(t, tt.body)
			lister := &YtdlpLister{Path: path, Timeout: 10 * time.Second, RetryConfig: fastRetry(1)}

			_, err := Collect(lister.Candidates(context.Background(), testChannelID, nil), 0)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Candidates() error = %v, want %v", err, tt.wantErr)
			}
			var listerErr *ListerError
			if !errors.As(err, &listerErr) || listerErr.Source != "ytdlp" {
				t.Errorf("Candidates() error = %v, want *ListerError from ytdlp", err)
			}
		})
	}
}

func TestYtdlpLister_NoRetryAfterYield(t *testing.T) {
	path, argsFile := writeFakeYtdlp(t, `echo '{"id": "aaaaaaaaaaa", "title": "first"}'
echo 'ERROR: HTTP Error 429: Too Many Requests' >&2
exit 1
`)
	lister := &YtdlpLister{Path: path, Timeout: 10 * time.Second, RetryConfig: fastRetry(3)}

	videos, err := Collect(lister.Candidates(context.Background(), testChannelID, nil), 0)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Candidates() error = %v, want ErrRateLimited", err)
	}
	if len(videos) != 1 {
		t.Errorf("Candidates() yielded %d videos, want 1", len(videos))
	}

	args, _ := os.ReadFile(argsFile)
	if runs := strings.Count(string(args), "\n"); runs != 1 {
		t.Errorf("yt-dlp ran %d times, want 1", runs)
	}
}

func TestYtdlpLister_NotInstalled(t *testing.T) {
	lister := &YtdlpLister{Path: "/nonexistent/path/to/yt-dlp", RetryConfig: fastRetry(2)}

	_, err := Collect(lister.Candidates(context.Background(), "https://www.youtube.com/@test", nil), 0)
	if !errors.Is(err, ErrYtdlpNotInstalled) {
		t.Errorf("Candidates() error = %v, want ErrYtdlpNotInstalled", err)
	}
}

func TestParseYtdlpDate(t *testing.T) {
	tests := []struct {
		name       string
		timestamp  int64
		uploadDate string
		want       time.Time
	}{
		{"timestamp", 1704067200, "", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"upload_date", 0, "20240115", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"timestamp preferred over upload_date", 1704067200, "20240115", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"malformed upload_date", 0, "2024-01-15", time.Time{}},
		{"no date", 0, "", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseYtdlpDate(tt.timestamp, tt.uploadDate); !got.Equal(tt.want) {
				t.Errorf("parseYtdlpDate() = %v, want %v", got, tt.want)
			}
		})
	}
}
