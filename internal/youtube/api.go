package youtube

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"ytarchive/internal/retry"
)

// apiPageSize is the largest page playlistItems.list accepts.
const apiPageSize = 50

// APILister lists a channel's uploads playlist through the YouTube Data API v3.
// Pages are requested lazily, so a consumer that stops after a few videos
// spends only a few quota units.
type APILister struct {
	service     *yt.Service
	RetryConfig *retry.Config
}

// NewAPILister creates a Data API lister. Extra client options are applied
// after the API key, which lets tests point the service at a local server.
func NewAPILister(ctx context.Context, apiKey string, opts ...option.ClientOption) (*APILister, error) {
	if apiKey == "" {
		return nil, errors.New("youtube: api key required")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube: create api service: %w", err)
	}

	cfg := retry.DefaultConfig()
	return &APILister{service: service, RetryConfig: &cfg}, nil
}

// Candidates resolves the channel, then walks its uploads playlist page by
// page. Each page is filtered to the requested content type using the
// videos' live streaming details.
func (a *APILister) Candidates(ctx context.Context, channelURL string, opts *ListOptions) iter.Seq2[VideoInfo, error] {
	return func(yield func(VideoInfo, error) bool) {
		wrap := func(err error) error {
			return &ListerError{Source: "api", Channel: channelURL, Err: err}
		}

		playlistID, channelID, channelName, err := a.uploadsPlaylist(ctx, channelURL)
		if err != nil {
			yield(VideoInfo{}, wrap(err))
			return
		}

		contentType := ContentTypeVideos
		if opts != nil {
			contentType = opts.ContentType
		}

		pageToken := ""
		for {
			page, next, err := a.playlistPage(ctx, playlistID, pageToken)
			if err != nil {
				yield(VideoInfo{}, wrap(err))
				return
			}

			live, err := a.liveVideoIDs(ctx, page)
			if err != nil {
				yield(VideoInfo{}, wrap(err))
				return
			}

			for _, v := range page {
				_, isLive := live[v.ID]
				if isLive != (contentType == ContentTypeStreams) {
					continue
				}
				v.ChannelID = channelID
				v.ChannelName = channelName
				v.Type = "video"
				if isLive {
					v.Type = "stream"
				}
				if !yield(v, nil) {
					return
				}
			}

			if next == "" {
				return
			}
			pageToken = next
		}
	}
}

func (a *APILister) retryConfig() retry.Config {
	if a.RetryConfig != nil {
		return *a.RetryConfig
	}
	return retry.DefaultConfig()
}

// uploadsPlaylist looks the channel up by ID or handle and returns its
// uploads playlist.
func (a *APILister) uploadsPlaylist(ctx context.Context, channelURL string) (playlistID, channelID, channelName string, err error) {
	id, idErr := extractChannelID(channelURL)
	handle, isHandle := extractHandle(channelURL)
	if idErr != nil && !isHandle {
		return "", "", "", idErr
	}

	err = retry.Do(ctx, a.retryConfig(), apiErrorClassifier, func(ctx context.Context) error {
		call := a.service.Channels.List([]string{"id", "contentDetails", "snippet"}).Context(ctx)
		if idErr == nil {
			call = call.Id(id)
		} else {
			call = call.ForHandle(handle)
		}

		resp, err := call.Do()
		if err != nil {
			return classifyAPIError(ctx, err)
		}
		if len(resp.Items) == 0 {
			return ErrChannelNotFound
		}

		ch := resp.Items[0]
		channelID = ch.Id
		if ch.Snippet != nil {
			channelName = ch.Snippet.Title
		}
		if ch.ContentDetails == nil || ch.ContentDetails.RelatedPlaylists == nil || ch.ContentDetails.RelatedPlaylists.Uploads == "" {
			return retry.Permanent(fmt.Errorf("youtube: channel %s has no uploads playlist", channelID))
		}
		playlistID = ch.ContentDetails.RelatedPlaylists.Uploads
		return nil
	})
	return playlistID, channelID, channelName, err
}

// playlistPage fetches one page of playlist items.
func (a *APILister) playlistPage(ctx context.Context, playlistID, pageToken string) ([]VideoInfo, string, error) {
	var (
		videos []VideoInfo
		next   string
	)
	err := retry.Do(ctx, a.retryConfig(), apiErrorClassifier, func(ctx context.Context) error {
		call := a.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(apiPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return classifyAPIError(ctx, err)
		}

		videos = videos[:0]
		for _, item := range resp.Items {
			if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
				continue
			}
			v := VideoInfo{ID: item.ContentDetails.VideoId}
			if item.Snippet != nil {
				v.Title = item.Snippet.Title
				if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
					v.Published = t.UTC()
				}
			}
			videos = append(videos, v)
		}
		next = resp.NextPageToken
		return nil
	})
	return videos, next, err
}

// liveVideoIDs returns the subset of page that were broadcast live.
func (a *APILister) liveVideoIDs(ctx context.Context, page []VideoInfo) (map[string]struct{}, error) {
	live := make(map[string]struct{})
	if len(page) == 0 {
		return live, nil
	}

	ids := make([]string, len(page))
	for i, v := range page {
		ids[i] = v.ID
	}

	err := retry.Do(ctx, a.retryConfig(), apiErrorClassifier, func(ctx context.Context) error {
		resp, err := a.service.Videos.List([]string{"id", "liveStreamingDetails"}).
			Id(ids...).
			Context(ctx).
			Do()
		if err != nil {
			return classifyAPIError(ctx, err)
		}
		clear(live)
		for _, item := range resp.Items {
			if item.LiveStreamingDetails != nil {
				live[item.Id] = struct{}{}
			}
		}
		return nil
	})
	return live, err
}

// classifyAPIError maps googleapi errors onto the package sentinels.
func classifyAPIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ErrNetworkTimeout
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusNotFound:
			return retry.Permanent(fmt.Errorf("%w: %v", ErrChannelNotFound, err))
		case gerr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case gerr.Code == http.StatusForbidden && hasReason(gerr, "quotaExceeded"):
			// Daily quota does not come back within a retry window.
			return retry.Permanent(fmt.Errorf("%w: %v", ErrRateLimited, err))
		case gerr.Code == http.StatusForbidden && hasReason(gerr, "rateLimitExceeded"):
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case gerr.Code >= 400 && gerr.Code < 500:
			return retry.Permanent(err)
		}
	}
	return err
}

func hasReason(gerr *googleapi.Error, reason string) bool {
	for _, item := range gerr.Errors {
		if item.Reason == reason {
			return true
		}
	}
	return strings.Contains(gerr.Message, reason)
}

// apiErrorClassifier determines if an API error is retryable.
func apiErrorClassifier(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	return !errors.Is(err, ErrChannelNotFound) && !errors.Is(err, ErrInvalidURL)
}
