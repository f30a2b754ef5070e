package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScrape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ex-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["url"] != "https://wsj.com/article" {
			t.Errorf("url = %q", req["url"])
		}
		json.NewEncoder(w).Encode(Result{
			Success:       true,
			Content:       "full article body",
			ContentLength: 17,
			SessionReplay: "sess-1",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "ex-key")
	client.SetHTTPClient(server.Client())

	result, err := client.Scrape(context.Background(), "https://wsj.com/article")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if result.Content != "full article body" {
		t.Errorf("Content = %q", result.Content)
	}
	if result.SessionReplay != "sess-1" {
		t.Errorf("SessionReplay = %q", result.SessionReplay)
	}
}

func TestScrapeReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{Success: false, Error: "paywall challenge"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "ex-key")
	client.SetHTTPClient(server.Client())

	result, err := client.Scrape(context.Background(), "https://wsj.com/article")
	if err == nil {
		t.Fatal("expected error on unsuccessful extraction")
	}
	if result == nil || result.Error != "paywall challenge" {
		t.Errorf("result = %+v", result)
	}
}
