package feeds

import (
	"context"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// Resolver follows aggregator redirect URLs to their publisher
// destination so fingerprinting and source attribution see the real
// article URL.
type Resolver struct {
	httpClient *http.Client
	parallel   int

	// pacing between consecutive requests on one worker
	pace time.Duration
	// pause between batches
	batchPause time.Duration
	// escalating waits after a 429 from the aggregator
	backoffs []time.Duration
}

// NewResolver creates a redirect resolver with bounded parallelism.
func NewResolver(parallel int) *Resolver {
	if parallel <= 0 {
		parallel = 10
	}
	return &Resolver{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		parallel:   parallel,
		pace:       300 * time.Millisecond,
		batchPause: time.Second,
		backoffs:   []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second},
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (r *Resolver) SetHTTPClient(client *http.Client) {
	r.httpClient = client
}

// SetPacing overrides the request pacing and batch pause. Tests use
// this to avoid real sleeps.
func (r *Resolver) SetPacing(pace, batchPause time.Duration, backoffs []time.Duration) {
	r.pace = pace
	r.batchPause = batchPause
	r.backoffs = backoffs
}

// ResolveAll resolves each URL, preserving input order. Unresolvable
// URLs map to "" and are dropped by the caller. Work proceeds in
// batches of the configured parallelism with a pause between batches,
// so the aggregator sees a steady rather than bursty request pattern.
func (r *Resolver) ResolveAll(ctx context.Context, urls []string) []string {
	resolved := make([]string, len(urls))

	for start := 0; start < len(urls); start += r.parallel {
		end := start + r.parallel
		if end > len(urls) {
			end = len(urls)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				resolved[i] = r.resolve(ctx, urls[i])
			}(i)
		}
		wg.Wait()

		if end < len(urls) {
			select {
			case <-ctx.Done():
				return resolved
			case <-time.After(r.batchPause):
			}
		}
	}

	ok := 0
	for _, u := range resolved {
		if u != "" {
			ok++
		}
	}
	log.Printf("[Feeds] resolved %d/%d aggregator URLs", ok, len(urls))
	return resolved
}

// resolve follows redirects to the publisher URL. On a 429 it waits
// through the escalating backoff schedule before retrying; exhausting
// the schedule abandons the URL.
func (r *Resolver) resolve(ctx context.Context, rawURL string) string {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(r.pace):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return ""
		}
		resp, err := r.httpClient.Do(req)
		if err != nil {
			return ""
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt >= len(r.backoffs) {
				log.Printf("[Feeds] rate limited resolving %s, giving up", rawURL)
				return ""
			}
			wait := r.backoffs[attempt]
			log.Printf("[Feeds] rate limited resolving %s, waiting %s", rawURL, wait)
			select {
			case <-ctx.Done():
				return ""
			case <-time.After(wait):
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return ""
		}
		// The client followed redirects; the final URL is on the
		// request attached to the response.
		return resp.Request.URL.String()
	}
}
