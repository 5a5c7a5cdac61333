package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestRSSLister(t *testing.T, handler http.HandlerFunc) *RSSLister {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	lister := NewRSSListerWithClient(server.Client())
	lister.FeedURLTemplate = server.URL + "/feeds/videos.xml?channel_id=%s"
	lister.RetryConfig = fastRetry(1)
	return lister
}

func TestRSSLister_Candidates(t *testing.T) {
	lister := newTestRSSLister(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("channel_id") != testChannelID {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(sampleAtomFeed))
	})

	videos, err := Collect(lister.Candidates(context.Background(), "https://www.youtube.com/channel/"+testChannelID, nil), 0)
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}

	want := []VideoInfo{
		{
			ID:          "aaaaaaaaaaa",
			Title:       "Sunday Service - Brother Evans",
			ChannelID:   testChannelID,
			ChannelName: "Tucson Tabernacle",
			Published:   time.Date(2025, 1, 12, 18, 0, 0, 0, time.UTC),
			Type:        "video",
		},
		{
			// No yt:videoId; taken from the watch link.
			ID:          "bbbbbbbbbbb",
			Title:       "Wednesday Service",
			ChannelID:   testChannelID,
			ChannelName: "Tucson Tabernacle",
			Published:   time.Date(2025, 1, 8, 2, 0, 0, 0, time.UTC),
			Type:        "video",
		},
		{
			// Neither; taken from the entry id.
			ID:          "ccccccccccc",
			Title:       "Youth Night",
			ChannelID:   testChannelID,
			ChannelName: "Tucson Tabernacle",
			Type:        "video",
		},
	}
	if diff := cmp.Diff(want, videos); diff != "" {
		t.Errorf("Candidates() mismatch (-want +got):\n%s", diff)
	}
}

func TestRSSLister_StopsEarly(t *testing.T) {
	lister := newTestRSSLister(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleAtomFeed))
	})

	videos, err := Collect(lister.Candidates(context.Background(), testChannelID, nil), 1)
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	if len(videos) != 1 || videos[0].ID != "aaaaaaaaaaa" {
		t.Errorf("Candidates() = %+v, want only the newest video", videos)
	}
}

func TestRSSLister_Errors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{"not found", http.StatusNotFound, ErrChannelNotFound},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := newTestRSSLister(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			_, err := Collect(lister.Candidates(context.Background(), testChannelID, nil), 0)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Candidates() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRSSLister_RequiresChannelID(t *testing.T) {
	lister := NewRSSLister()

	_, err := Collect(lister.Candidates(context.Background(), "https://www.youtube.com/@TucsonTabernacle", nil), 0)
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("Candidates() error = %v, want ErrInvalidURL", err)
	}
}
