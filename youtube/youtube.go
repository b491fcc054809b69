// Package youtube resolves video references through the YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/himanshub16/upnext-live/config"
	"github.com/himanshub16/upnext-live/logging"
	"github.com/himanshub16/upnext-live/radio"
)

var (
	ErrInvalidReference = errors.New("not a youtube video reference")
	ErrVideoNotFound    = errors.New("video not found")
)

var (
	videoIDPattern = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?|shorts|live)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)
	linkInText     = regexp.MustCompile(`(?:https?://)?(?:www\.|m\.|music\.)?(?:youtube\.com/(?:[^/\s]+/\S+/|(?:v|e(?:mbed)?|shorts|live)/|\S*[?&]v=)|youtu\.be/)[^"&?/\s]{11}`)
	bareVideoID    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	isoDuration    = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)
)

// Client implements radio.Resolver.
type Client struct {
	apiKey     string
	baseURL    string
	maxRetries uint64
	http       *http.Client
	newBackOff func() backoff.BackOff
}

var _ radio.Resolver = (*Client)(nil)

func New(cfg config.YouTubeConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://www.googleapis.com/youtube/v3"
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    base,
		maxRetries: cfg.MaxRetries,
		http:       &http.Client{Timeout: 10 * time.Second},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
	}
}

// VideoID extracts the 11 character video id from a link or a bare id.
func VideoID(reference string) (string, bool) {
	reference = strings.TrimSpace(reference)
	if m := videoIDPattern.FindStringSubmatch(reference); m != nil {
		return m[1], true
	}
	if bareVideoID.MatchString(reference) {
		return reference, true
	}
	return "", false
}

// FindReference returns the first YouTube link found in free text.
func (c *Client) FindReference(text string) (string, bool) {
	m := linkInText.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// Resolve looks the referenced video up. Transport failures and 5xx answers
// are retried; anything else fails immediately.
func (c *Client) Resolve(ctx context.Context, reference string) (*radio.Metadata, error) {
	id, ok := VideoID(reference)
	if !ok {
		return nil, ErrInvalidReference
	}

	var resp videosResponse
	op := func() error {
		return c.fetch(ctx, id, &resp)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	err := backoff.RetryNotify(op, bo, func(err error, wait time.Duration) {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Str("video_id", id).Dur("retry_in", wait).Msg("youtube lookup failed, retrying")
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, ErrVideoNotFound
	}

	item := resp.Items[0]
	duration, err := ParseDuration(item.ContentDetails.Duration)
	if err != nil {
		return nil, err
	}
	return &radio.Metadata{
		VideoID:         id,
		Title:           item.Snippet.Title,
		Author:          item.Snippet.ChannelTitle,
		DurationSeconds: duration,
		ThumbnailURL:    thumbnail(id, item.Snippet.Thumbnails),
	}, nil
}

func (c *Client) fetch(ctx context.Context, id string, out *videosResponse) error {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("part", "snippet,contentDetails")
	q.Set("id", id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos?"+q.Encode(), nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("youtube api: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(fmt.Errorf("youtube api: status %d", resp.StatusCode))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode youtube response: %w", err))
	}
	return nil
}

func thumbnail(id string, thumbs map[string]struct {
	URL string `json:"url"`
}) string {
	for _, size := range []string{"medium", "high", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return "https://img.youtube.com/vi/" + id + "/mqdefault.jpg"
}

// ParseDuration converts an ISO 8601 duration such as PT1H2M3S to seconds.
func ParseDuration(s string) (int64, error) {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	var total int64
	for i, unit := range []int64{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += n * unit
	}
	return total, nil
}
