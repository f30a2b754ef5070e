// Package mautic is the email gateway client. Issues are created as
// gateway emails, bound to a transport, and sent to a segment.
package mautic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pivotmedia/newsroom/internal/pkg/httpretry"
)

// Client is the Mautic API client
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient httpretry.HTTPDoer
}

// Config holds the gateway connection settings.
type Config struct {
	BaseURL  string
	Username string
	Password string
}

// NewClient creates a new Mautic API client
func NewClient(config Config) *Client {
	return &Client{
		baseURL:  config.BaseURL,
		username: config.Username,
		password: config.Password,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 60 * time.Second,
		}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// doRequest performs an authenticated request to the Mautic API
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	reqURL := fmt.Sprintf("%s%s", c.baseURL, endpoint)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// EmailDefinition is the payload for creating or updating a gateway
// email.
type EmailDefinition struct {
	Name           string `json:"name"`
	Subject        string `json:"subject"`
	CustomHTML     string `json:"customHtml"`
	Description    string `json:"description,omitempty"`
	FromAddress    string `json:"fromAddress,omitempty"`
	FromName       string `json:"fromName,omitempty"`
	ReplyToAddress string `json:"replyToAddress,omitempty"`
	IsPublished    bool   `json:"isPublished"`
	EmailType      string `json:"emailType"`
}

// Email is a gateway email record.
type Email struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
}

type emailEnvelope struct {
	Email Email `json:"email"`
}

// CreateEmail creates a new template email on the gateway.
func (c *Client) CreateEmail(ctx context.Context, def EmailDefinition) (*Email, error) {
	def.IsPublished = true
	def.EmailType = "template"

	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/emails/new", def)
	if err != nil {
		return nil, err
	}

	var response emailEnvelope
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse create response: %w", err)
	}
	if response.Email.ID == 0 {
		return nil, fmt.Errorf("create email returned no id")
	}
	return &response.Email, nil
}

// UpdateEmail patches an existing gateway email.
func (c *Client) UpdateEmail(ctx context.Context, emailID int, patch map[string]interface{}) (*Email, error) {
	endpoint := fmt.Sprintf("/api/emails/%d/edit", emailID)
	respBody, err := c.doRequest(ctx, http.MethodPatch, endpoint, patch)
	if err != nil {
		return nil, err
	}

	var response emailEnvelope
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse update response: %w", err)
	}
	return &response.Email, nil
}

// AttachTransport binds the email to a delivery transport.
func (c *Client) AttachTransport(ctx context.Context, emailID, transportID int) error {
	endpoint := fmt.Sprintf("/api/emails/%d/transport", emailID)
	_, err := c.doRequest(ctx, http.MethodPost, endpoint, map[string]int{
		"transport_id": transportID,
	})
	return err
}

// SendResult is the gateway's response to a segment send.
type SendResult struct {
	Success     int `json:"success"`
	SentCount   int `json:"sentCount"`
	FailedCount int `json:"failedRecipients"`
}

// SendToSegment queues the email to a contact segment.
func (c *Client) SendToSegment(ctx context.Context, emailID, segmentID int) (*SendResult, error) {
	endpoint := fmt.Sprintf("/api/emails/%d/send?listId=%d", emailID, segmentID)
	respBody, err := c.doRequest(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var result SendResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse send response: %w", err)
	}
	return &result, nil
}

// Stats is the gateway's engagement snapshot for one email.
type Stats struct {
	SentCount        int     `json:"sentCount"`
	ReadCount        int     `json:"readCount"`
	ReadRate         float64 `json:"readRate"`
	ClickCount       int     `json:"clickCount"`
	ClickRate        float64 `json:"clickRate"`
	UnsubscribeCount int     `json:"unsubscribeCount"`
	BounceCount      int     `json:"bounceCount"`
}

// GetStats fetches the engagement snapshot for an email.
func (c *Client) GetStats(ctx context.Context, emailID int) (*Stats, error) {
	endpoint := fmt.Sprintf("/api/emails/%d", emailID)
	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Email struct {
			ID    int   `json:"id"`
			Stats Stats `json:"stats"`
		} `json:"email"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse stats response: %w", err)
	}
	return &response.Email.Stats, nil
}
