package youtube

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"ytarchive/internal/retry"
)

const (
	rssFeedURLTemplate = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"
	defaultTimeout     = 30 * time.Second
)

// RSSLister lists videos from a channel's Atom feed. The feed only carries
// the 15 most recent uploads and does not separate streams from videos,
// which is enough for a periodic incremental sync.
type RSSLister struct {
	parser *gofeed.Parser

	// FeedURLTemplate receives the channel ID. Defaults to YouTube's feed URL.
	FeedURLTemplate string

	// RetryConfig controls retries of failed feed fetches.
	RetryConfig *retry.Config
}

// NewRSSLister creates a new RSS-based video lister.
func NewRSSLister() *RSSLister {
	return NewRSSListerWithClient(&http.Client{Timeout: defaultTimeout})
}

// NewRSSListerWithClient creates a new RSS lister with a custom HTTP client.
func NewRSSListerWithClient(client *http.Client) *RSSLister {
	parser := gofeed.NewParser()
	parser.Client = client
	cfg := retry.DefaultConfig()
	return &RSSLister{
		parser:          parser,
		FeedURLTemplate: rssFeedURLTemplate,
		RetryConfig:     &cfg,
	}
}

// Candidates fetches the feed once and yields its entries in feed order.
// The channelURL must contain a channel ID (UC...); handles are rejected.
func (r *RSSLister) Candidates(ctx context.Context, channelURL string, opts *ListOptions) iter.Seq2[VideoInfo, error] {
	channelID, err := extractChannelID(channelURL)
	if err != nil {
		return errSeq(&ListerError{Source: "rss", Channel: channelURL, Err: err})
	}

	return func(yield func(VideoInfo, error) bool) {
		cfg := retry.DefaultConfig()
		if r.RetryConfig != nil {
			cfg = *r.RetryConfig
		}

		var feed *gofeed.Feed
		err := retry.Do(ctx, cfg, rssErrorClassifier, func(ctx context.Context) error {
			f, err := r.parser.ParseURLWithContext(fmt.Sprintf(r.FeedURLTemplate, channelID), ctx)
			if err != nil {
				return &ListerError{Source: "rss", Channel: channelURL, Err: classifyFeedError(ctx, err)}
			}
			feed = f
			return nil
		})
		if err != nil {
			yield(VideoInfo{}, err)
			return
		}

		for _, v := range feedToVideoInfo(feed, channelID) {
			if !yield(v, nil) {
				return
			}
		}
	}
}

func classifyFeedError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ErrNetworkTimeout
	}
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusNotFound:
			return ErrChannelNotFound
		case http.StatusTooManyRequests:
			return ErrRateLimited
		}
	}
	return err
}

// feedToVideoInfo converts feed items, skipping items without a video ID.
func feedToVideoInfo(feed *gofeed.Feed, channelID string) []VideoInfo {
	channelName := ""
	if len(feed.Authors) > 0 && feed.Authors[0] != nil {
		channelName = feed.Authors[0].Name
	}

	videos := make([]VideoInfo, 0, len(feed.Items))
	for _, item := range feed.Items {
		id := itemVideoID(item)
		if id == "" {
			continue
		}
		v := VideoInfo{
			ID:          id,
			Title:       item.Title,
			ChannelID:   channelID,
			ChannelName: channelName,
			Type:        "video",
		}
		if item.PublishedParsed != nil {
			v.Published = item.PublishedParsed.UTC()
		}
		videos = append(videos, v)
	}
	return videos
}

// itemVideoID reads yt:videoId, falling back to the link's v parameter and
// the yt:video:<id> GUID.
func itemVideoID(item *gofeed.Item) string {
	if exts, ok := item.Extensions["yt"]; ok {
		if vals := exts["videoId"]; len(vals) > 0 && vals[0].Value != "" {
			return vals[0].Value
		}
	}
	if u, err := url.Parse(item.Link); err == nil {
		if id := u.Query().Get("v"); id != "" {
			return id
		}
	}
	if id, ok := strings.CutPrefix(item.GUID, "yt:video:"); ok {
		return id
	}
	return ""
}

// rssErrorClassifier determines if an RSS error is retryable.
func rssErrorClassifier(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	return !errors.Is(err, ErrChannelNotFound) && !errors.Is(err, ErrInvalidURL)
}
