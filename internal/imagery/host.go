package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pivotmedia/newsroom/internal/errclass"
	"github.com/pivotmedia/newsroom/internal/pkg/httpretry"
)

// CloudflareHost uploads finished images to Cloudflare Images and
// returns the public variant URL embedded in issues.
type CloudflareHost struct {
	accountID  string
	apiToken   string
	httpClient httpretry.HTTPDoer
	apiBase    string
	now        func() time.Time
}

// NewCloudflareHost creates the image host uploader.
func NewCloudflareHost(accountID, apiToken string) *CloudflareHost {
	return &CloudflareHost{
		accountID: accountID,
		apiToken:  apiToken,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 60 * time.Second,
		}, 3),
		apiBase: "https://api.cloudflare.com/client/v4",
		now:     time.Now,
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (h *CloudflareHost) SetHTTPClient(client httpretry.HTTPDoer) {
	h.httpClient = client
}

// SetAPIBase overrides the API base (useful for testing)
func (h *CloudflareHost) SetAPIBase(base string) {
	h.apiBase = base
}

var idSanitizeRe = regexp.MustCompile(`[^a-z0-9-]+`)

// UploadID builds the deterministic hosting ID for a story's image.
func UploadID(storyID, source string, ts time.Time) string {
	clean := func(s string) string {
		return idSanitizeRe.ReplaceAllString(strings.ToLower(s), "-")
	}
	return fmt.Sprintf("pivot5-%s-%s-%d", clean(storyID), clean(source), ts.Unix())
}

// Upload stores the image and returns its first variant URL. An ID
// collision (409) is retried once with a millisecond timestamp.
func (h *CloudflareHost) Upload(ctx context.Context, storyID, source string, data []byte) (string, error) {
	ts := h.now()
	id := UploadID(storyID, source, ts)

	variant, status, err := h.upload(ctx, id, data)
	if err != nil {
		return "", err
	}
	if status == http.StatusConflict {
		id = fmt.Sprintf("pivot5-%s-%s-%d",
			idSanitizeRe.ReplaceAllString(strings.ToLower(storyID), "-"),
			idSanitizeRe.ReplaceAllString(strings.ToLower(source), "-"),
			ts.UnixMilli())
		variant, status, err = h.upload(ctx, id, data)
		if err != nil {
			return "", err
		}
	}
	if status < 200 || status >= 300 {
		return "", errclass.Newf(errclass.FromStatus(status), "cloudflare.upload", "status %d", status)
	}
	if variant == "" {
		return "", fmt.Errorf("upload response has no variants")
	}
	return variant, nil
}

func (h *CloudflareHost) upload(ctx context.Context, id string, data []byte) (string, int, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("id", id); err != nil {
		return "", 0, err
	}
	part, err := writer.CreateFormFile("file", id+".jpg")
	if err != nil {
		return "", 0, err
	}
	if _, err := part.Write(data); err != nil {
		return "", 0, err
	}
	if err := writer.Close(); err != nil {
		return "", 0, err
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/images/v1", h.apiBase, h.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", 0, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.apiToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", 0, errclass.New(errclass.Transient, "cloudflare.upload", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("reading upload response: %w", err)
	}
	if resp.StatusCode == http.StatusConflict {
		return "", resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, nil
	}

	var parsed struct {
		Result struct {
			Variants []string `json:"variants"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("parsing upload response: %w", err)
	}
	if len(parsed.Result.Variants) == 0 {
		return "", resp.StatusCode, nil
	}
	return parsed.Result.Variants[0], resp.StatusCode, nil
}
