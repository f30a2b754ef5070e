// Package imagery generates, optimizes, and hosts story artwork.
package imagery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/pivotmedia/newsroom/internal/errclass"
	"github.com/pivotmedia/newsroom/internal/pkg/httpretry"
)

// Image source labels recorded on the story.
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
	SourceNone     = "none"
)

// Generator produces image bytes from a text prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// FallbackPrompt builds the generic prompt used when decoration did not
// supply one.
func FallbackPrompt(headline string) string {
	return "Abstract editorial illustration representing: " + headline
}

// GeminiGenerator generates images through the Imagen REST API.
type GeminiGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient httpretry.HTTPDoer
}

// NewGeminiGenerator creates the primary image generator.
func NewGeminiGenerator(baseURL, apiKey, model string) *GeminiGenerator {
	return &GeminiGenerator{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 120 * time.Second,
		}, 3),
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (g *GeminiGenerator) SetHTTPClient(client httpretry.HTTPDoer) {
	g.httpClient = client
}

// Generate produces one 16:9 image for the prompt.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	payload := map[string]interface{}{
		"instances": []map[string]string{{"prompt": prompt}},
		"parameters": map[string]interface{}{
			"sampleCount": 1,
			"aspectRatio": "16:9",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling imagen request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:predict?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating imagen request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, errclass.New(errclass.Transient, "imagen.generate", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading imagen response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errclass.Newf(errclass.FromStatus(resp.StatusCode), "imagen.generate",
			"status %d", resp.StatusCode)
	}

	var parsed struct {
		Predictions []struct {
			BytesBase64Encoded string `json:"bytesBase64Encoded"`
		} `json:"predictions"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parsing imagen response: %w", err)
	}
	if len(parsed.Predictions) == 0 || parsed.Predictions[0].BytesBase64Encoded == "" {
		return nil, fmt.Errorf("imagen response has no predictions")
	}
	return base64.StdEncoding.DecodeString(parsed.Predictions[0].BytesBase64Encoded)
}

// OpenAIGenerator is the fallback image generator.
type OpenAIGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient httpretry.HTTPDoer
}

// NewOpenAIGenerator creates the fallback image generator.
func NewOpenAIGenerator(baseURL, apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 120 * time.Second,
		}, 3),
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (o *OpenAIGenerator) SetHTTPClient(client httpretry.HTTPDoer) {
	o.httpClient = client
}

// Generate produces one wide-format image for the prompt.
func (o *OpenAIGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	payload := map[string]interface{}{
		"model":  o.model,
		"prompt": prompt,
		"size":   "1536x1024",
		"n":      1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, errclass.New(errclass.Transient, "openai.images", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading image response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errclass.Newf(errclass.FromStatus(resp.StatusCode), "openai.images",
			"status %d", resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parsing image response: %w", err)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image response has no data")
	}
	return base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
}

// Strategy tries the primary generator and falls back to the secondary.
// Either may be nil when unconfigured.
type Strategy struct {
	Primary  Generator
	Fallback Generator
}

// Generate returns the image bytes and the source label of whichever
// generator succeeded.
func (s *Strategy) Generate(ctx context.Context, prompt string) ([]byte, string, error) {
	if s.Primary != nil {
		data, err := s.Primary.Generate(ctx, prompt)
		if err == nil {
			return data, SourcePrimary, nil
		}
		log.Printf("[Imagery] primary generator failed: %v", err)
	}
	if s.Fallback != nil {
		data, err := s.Fallback.Generate(ctx, prompt)
		if err == nil {
			return data, SourceFallback, nil
		}
		log.Printf("[Imagery] fallback generator failed: %v", err)
		return nil, SourceNone, err
	}
	return nil, SourceNone, fmt.Errorf("no image generator configured")
}
