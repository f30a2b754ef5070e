package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func geminiBody(text string) string {
	resp := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{
				"parts": []map[string]string{{"text": text}},
			}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestClassifyChunksAndMerges(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// First chunk matches h1, second matches h3.
		if calls == 1 {
			fmt.Fprint(w, geminiBody(`{"matches": ["h1"]}`))
			return
		}
		fmt.Fprint(w, geminiBody(`{"matches": ["h3"]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(server.URL, "key", "gemini-2.0-flash", 2)
	client.SetHTTPClient(server.Client())

	headlines := []Headline{
		{ID: "h1", Headline: "a"},
		{ID: "h2", Headline: "b"},
		{ID: "h3", Headline: "c"},
	}
	matches, err := client.Classify(context.Background(), 2, headlines)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if !matches["h1"] || !matches["h3"] || matches["h2"] {
		t.Errorf("matches = %v", matches)
	}
}

func TestParseMatchIDs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"objects", `{"matches": [{"story_id": "h1", "headline": "A"}, {"story_id": "h2", "headline": "B"}]}`, []string{"h1", "h2"}},
		{"bare strings", `{"matches": ["h1", "h2"]}`, []string{"h1", "h2"}},
		{"empty", `{"matches": []}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMatchIDs(tt.raw)
			if err != nil {
				t.Fatalf("parseMatchIDs: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ids[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestClassifyToleratesPartialFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, geminiBody(`{"matches": ["h2"]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(server.URL, "key", "gemini-2.0-flash", 1)
	client.SetHTTPClient(server.Client())

	matches, err := client.Classify(context.Background(), 1, []Headline{
		{ID: "h1", Headline: "a"},
		{ID: "h2", Headline: "b"},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !matches["h2"] || len(matches) != 1 {
		t.Errorf("matches = %v", matches)
	}
}

func TestClassifyAllChunksFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewGeminiClient(server.URL, "key", "gemini-2.0-flash", 10)
	client.SetHTTPClient(server.Client())

	if _, err := client.Classify(context.Background(), 1, []Headline{{ID: "h1"}}); err == nil {
		t.Fatal("expected error when every chunk fails")
	}
}

func TestClean(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiBody("clean prose"))
	}))
	defer server.Close()

	client := NewGeminiClient(server.URL, "key", "gemini-2.0-flash", 100)
	client.SetHTTPClient(server.Client())

	got, err := client.Clean(context.Background(), "<nav>menu</nav> article text")
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if got != "clean prose" {
		t.Errorf("Clean = %q", got)
	}
}
