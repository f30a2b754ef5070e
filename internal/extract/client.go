// Package extract retries thin article bodies through a headless
// browser scraping service. Only paywalled or script-heavy sources
// whose feed body came back short get one retry each.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/pivotmedia/newsroom/internal/errclass"
	"github.com/pivotmedia/newsroom/internal/pkg/httpretry"
)

// Result is the scraping service's answer for one URL.
type Result struct {
	Success       bool   `json:"success"`
	Content       string `json:"content"`
	ContentLength int    `json:"content_length"`
	SessionReplay string `json:"session_replay"`
	Error         string `json:"error"`
}

// Client talks to the headless-browser extraction service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates an extraction service client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 90 * time.Second,
		}, 2),
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// Scrape renders the URL in a browser session and returns the
// extracted article text.
func (c *Client) Scrape(ctx context.Context, articleURL string) (*Result, error) {
	payload, err := json.Marshal(map[string]string{"url": articleURL})
	if err != nil {
		return nil, fmt.Errorf("marshaling scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errclass.New(errclass.Transient, "extract.scrape", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading scrape response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errclass.Newf(errclass.FromStatus(resp.StatusCode), "extract.scrape",
			"status %d", resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing scrape response: %w", err)
	}
	if !result.Success {
		return &result, fmt.Errorf("extraction failed: %s", result.Error)
	}
	log.Printf("[Extract] scraped %s (%d chars, session %s)", articleURL, result.ContentLength, result.SessionReplay)
	return &result, nil
}
