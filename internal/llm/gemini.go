package llm

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

// Headline is one (id, headline) pair for bulk classification.
type Headline struct {
	ID       string `json:"id"`
	Headline string `json:"headline"`
}

// GeminiClient handles bulk prefilter classification and article body
// cleaning against the Gemini REST API.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	model      string
	chunkSize  int
	httpClient httpretry.HTTPDoer
}

// NewGeminiClient creates a Gemini API client with retry support.
func NewGeminiClient(baseURL, apiKey, model string, chunkSize int) *GeminiClient {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	return &GeminiClient{
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
		chunkSize: chunkSize,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 120 * time.Second,
		}, 3),
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (g *GeminiClient) SetHTTPClient(client httpretry.HTTPDoer) {
	g.httpClient = client
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  *geminiGenCfg   `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenCfg struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// generate sends one prompt and returns the first candidate's text.
func (g *GeminiClient) generate(ctx context.Context, system, user, mimeType string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: user}}}},
	}
	if system != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if mimeType != "" {
		payload.GenerationConfig = &geminiGenCfg{ResponseMimeType: mimeType}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", errclass.New(errclass.Transient, "gemini.generate", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading gemini response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errclass.Newf(errclass.FromStatus(resp.StatusCode), "gemini.generate",
			"status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parsing gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response has no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// Classify runs the slot's classification prompt over the headlines in
// chunks and returns the set of matching IDs. Individual chunk failures
// are tolerated; the call fails only when every chunk fails.
func (g *GeminiClient) Classify(ctx context.Context, slot int, headlines []Headline) (map[string]bool, error) {
	matches := make(map[string]bool)
	system := ClassifierSystemPrompt(slot)

	chunks := 0
	failed := 0
	for start := 0; start < len(headlines); start += g.chunkSize {
		end := start + g.chunkSize
		if end > len(headlines) {
			end = len(headlines)
		}
		chunks++

		user, err := json.Marshal(headlines[start:end])
		if err != nil {
			return nil, fmt.Errorf("marshaling classification chunk: %w", err)
		}

		raw, err := g.generate(ctx, system, string(user), "application/json")
		if err != nil {
			failed++
			log.Printf("[Gemini] slot %d chunk %d classification failed: %v", slot, chunks, err)
			continue
		}

		ids, perr := parseMatchIDs(raw)
		if perr != nil {
			failed++
			log.Printf("[Gemini] slot %d chunk %d unparseable: %v", slot, chunks, perr)
			continue
		}
		for _, id := range ids {
			matches[id] = true
		}
	}

	if chunks > 0 && failed == chunks {
		return nil, fmt.Errorf("all %d classification chunks failed for slot %d", chunks, slot)
	}
	log.Printf("[Gemini] slot %d: %d matches across %d headlines (%d/%d chunks ok)",
		slot, len(matches), len(headlines), chunks-failed, chunks)
	return matches, nil
}

// parseMatchIDs reads the classifier's matches array. The prompt asks
// for [{story_id, headline}] objects but models sometimes return bare
// ID strings; both shapes are accepted.
func parseMatchIDs(raw string) ([]string, error) {
	var objects struct {
		Matches []struct {
			StoryID  string `json:"story_id"`
			Headline string `json:"headline"`
		} `json:"matches"`
	}
	if err := ParseJSON(raw, &objects); err == nil && len(objects.Matches) > 0 && objects.Matches[0].StoryID != "" {
		ids := make([]string, 0, len(objects.Matches))
		for _, m := range objects.Matches {
			if m.StoryID != "" {
				ids = append(ids, m.StoryID)
			}
		}
		return ids, nil
	}

	var plain struct {
		Matches []string `json:"matches"`
	}
	if err := ParseJSON(raw, &plain); err != nil {
		return nil, err
	}
	return plain.Matches, nil
}

// Clean reduces scraped page text to article prose.
func (g *GeminiClient) Clean(ctx context.Context, text string) (string, error) {
	return g.generate(ctx, CleanSystemPrompt, text, "")
}
