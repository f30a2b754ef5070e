// Package feeds ingests candidate articles from the hosted feed-reader
// service, from direct RSS feeds, and resolves aggregator redirect URLs
// to their publisher destinations.
package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pivotmedia/newsroom/internal/errclass"
	"github.com/pivotmedia/newsroom/internal/pkg/httpretry"
)

// Item is one candidate article as reported by an upstream feed.
type Item struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	FeedTitle   string    `json:"feed_title"`
}

// ReaderClient talks to the hosted feed-reader API.
type ReaderClient struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewReaderClient creates a feed-reader API client with retry support.
func NewReaderClient(baseURL, apiKey string) *ReaderClient {
	return &ReaderClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 30 * time.Second,
		}, 3),
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (c *ReaderClient) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// Refresh asks the reader service to re-poll all subscribed feeds now.
// A refresh failure is logged and swallowed: stale feed data is still
// usable for a cycle.
func (c *ReaderClient) Refresh(ctx context.Context) {
	endpoint := fmt.Sprintf("%s/feeds/refresh", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		log.Printf("[Feeds] refresh request build failed: %v", err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Feeds] refresh failed, continuing with cached data: %v", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[Feeds] refresh returned status %d, continuing with cached data", resp.StatusCode)
	}
}

// Articles returns up to limit items published within the last
// sinceHours hours, newest first.
func (c *ReaderClient) Articles(ctx context.Context, limit, sinceHours int) ([]Item, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("since_hours", strconv.Itoa(sinceHours))
	endpoint := fmt.Sprintf("%s/articles?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating articles request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errclass.New(errclass.Transient, "feeds.articles", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading articles response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errclass.Newf(errclass.FromStatus(resp.StatusCode), "feeds.articles",
			"status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var payload struct {
		Articles []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			PublishedAt string `json:"published_at"`
			FeedTitle   string `json:"feed_title"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing articles response: %w", err)
	}

	items := make([]Item, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		published, perr := time.Parse(time.RFC3339, a.PublishedAt)
		if perr != nil {
			// Items without a parseable timestamp cannot be
			// freshness-filtered downstream, skip them.
			continue
		}
		items = append(items, Item{
			Title:       a.Title,
			URL:         a.URL,
			PublishedAt: published,
			FeedTitle:   a.FeedTitle,
		})
	}
	log.Printf("[Feeds] reader returned %d articles (limit=%d, since=%dh)", len(items), limit, sinceHours)
	return items, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
