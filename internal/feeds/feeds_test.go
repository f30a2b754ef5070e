package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestArticlesParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer reader-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "250" {
			t.Errorf("limit = %q", got)
		}
		w.Write([]byte(`{"articles":[
			{"title":"OpenAI ships GPT-5","url":"https://example.com/a","published_at":"2026-08-24T10:00:00Z","feed_title":"Example"},
			{"title":"No timestamp","url":"https://example.com/b","published_at":"not-a-date","feed_title":"Example"}
		]}`))
	}))
	defer server.Close()

	client := NewReaderClient(server.URL, "reader-key")
	client.SetHTTPClient(server.Client())

	items, err := client.Articles(context.Background(), 250, 24)
	if err != nil {
		t.Fatalf("Articles: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (unparseable timestamp dropped)", len(items))
	}
	if items[0].Title != "OpenAI ships GPT-5" {
		t.Errorf("title = %q", items[0].Title)
	}
	if items[0].PublishedAt.Hour() != 10 {
		t.Errorf("published = %v", items[0].PublishedAt)
	}
}

func TestArticlesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewReaderClient(server.URL, "bad-key")
	client.SetHTTPClient(server.Client())

	if _, err := client.Articles(context.Background(), 10, 24); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestResolveAllFollowsRedirects(t *testing.T) {
	dest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer dest.Close()

	agg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, dest.URL+"/story", http.StatusFound)
	}))
	defer agg.Close()

	resolver := NewResolver(2)
	resolver.SetPacing(0, 0, nil)

	got := resolver.ResolveAll(context.Background(), []string{agg.URL + "/x", agg.URL + "/y"})
	want := dest.URL + "/story"
	for i, u := range got {
		if u != want {
			t.Errorf("resolved[%d] = %q, want %q", i, u, want)
		}
	}
}

func TestResolveRateLimitBackoff(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	resolver := NewResolver(1)
	resolver.SetPacing(0, 0, []time.Duration{time.Millisecond})

	got := resolver.ResolveAll(context.Background(), []string{server.URL + "/s"})
	if got[0] != server.URL+"/s" {
		t.Errorf("resolved = %q", got[0])
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestResolveGivesUpAfterBackoffs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	resolver := NewResolver(1)
	resolver.SetPacing(0, 0, []time.Duration{time.Millisecond, time.Millisecond})

	got := resolver.ResolveAll(context.Background(), []string{server.URL})
	if got[0] != "" {
		t.Errorf("resolved = %q, want empty", got[0])
	}
}
