package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pivotmedia/newsroom/internal/execlog"
	"github.com/pivotmedia/newsroom/internal/feeds"
	"github.com/pivotmedia/newsroom/internal/store"
	"github.com/pivotmedia/newsroom/internal/story"
)

// IngestOptions parameterize one ingest invocation. SinceHours above
// the default supports backfills up to 120 hours.
type IngestOptions struct {
	SinceHours int
	Limit      int
}

func (o IngestOptions) withDefaults(s Settings) IngestOptions {
	if o.SinceHours <= 0 {
		o.SinceHours = s.SinceHours
	}
	if o.SinceHours > 120 {
		o.SinceHours = 120
	}
	if o.Limit <= 0 {
		o.Limit = s.ArticleLimit
	}
	return o
}

// Ingest pulls the feed reader, resolves aggregator wrappers, dedups
// against known fingerprints, and appends new Articles. Returns the
// number of rows written.
func (p *Pipeline) Ingest(ctx context.Context, opts IngestOptions) (int, error) {
	opts = opts.withDefaults(p.settings)
	rec := p.recorder("ingest", "ingest", 0)

	p.reader.Refresh(ctx)
	items, err := p.reader.Articles(ctx, opts.Limit, opts.SinceHours)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return 0, fmt.Errorf("fetching reader articles: %w", err)
	}
	rec.Info("fetched reader articles", map[string]interface{}{"count": len(items)})

	n, err := p.ingestItems(ctx, rec, items, opts.SinceHours)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return 0, err
	}
	rec.SetSummary("inserted", n)
	rec.Complete(ctx, execlog.StatusSuccess, "", "")
	return n, nil
}

// DirectIngest consumes the configured non-aggregator feeds and merges
// them into the same Article entity.
func (p *Pipeline) DirectIngest(ctx context.Context, sinceHours int) (int, error) {
	if sinceHours <= 0 {
		sinceHours = p.settings.SinceHours
	}
	rec := p.recorder("direct-feed", "ingest", 0)

	if p.direct == nil {
		rec.Info("no direct feeds configured", nil)
		rec.Complete(ctx, execlog.StatusSuccess, "", "")
		return 0, nil
	}
	items := p.direct.Fetch(ctx, sinceHours)
	rec.Info("fetched direct feed items", map[string]interface{}{"count": len(items)})

	n, err := p.ingestItems(ctx, rec, items, sinceHours)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return 0, err
	}
	rec.SetSummary("inserted", n)
	rec.Complete(ctx, execlog.StatusSuccess, "", "")
	return n, nil
}

// ingestItems runs the shared normalize/dedup/write tail of both
// ingest variants.
func (p *Pipeline) ingestItems(ctx context.Context, rec *execlog.Recorder, items []feeds.Item, sinceHours int) (int, error) {
	articles := p.buildArticles(ctx, items, sinceHours)
	if len(articles) == 0 {
		rec.Info("nothing eligible after normalization", nil)
		return 0, nil
	}

	known, err := p.store.KnownFingerprints(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading known fingerprints: %w", err)
	}

	fresh := articles[:0]
	seen := make(map[string]bool, len(articles))
	for _, a := range articles {
		if known[a.Fingerprint] || seen[a.Fingerprint] {
			continue
		}
		seen[a.Fingerprint] = true
		fresh = append(fresh, a)
	}
	if len(fresh) == 0 {
		rec.Info("all items already ingested", nil)
		return 0, nil
	}

	if _, err := p.store.InsertArticles(ctx, fresh); err != nil {
		return 0, fmt.Errorf("inserting articles: %w", err)
	}
	return len(fresh), nil
}

// buildArticles normalizes feed items into Article rows: aggregator
// URLs are resolved to their publishers, blocked hosts and stale or
// undated items are dropped, and fingerprints computed.
func (p *Pipeline) buildArticles(ctx context.Context, items []feeds.Item, sinceHours int) []store.Article {
	// Resolve aggregator wrappers in one bounded-concurrency pass.
	var wrapped []string
	var wrappedIdx []int
	for i, item := range items {
		if story.IsAggregator(item.URL) {
			wrapped = append(wrapped, item.URL)
			wrappedIdx = append(wrappedIdx, i)
		}
	}
	if len(wrapped) > 0 && p.resolver != nil {
		resolved := p.resolver.ResolveAll(ctx, wrapped)
		for j, idx := range wrappedIdx {
			if resolved[j] != "" && !story.IsAggregator(resolved[j]) {
				items[idx].URL = resolved[j]
			}
		}
	}

	cutoff := time.Now().Add(-time.Duration(sinceHours) * time.Hour)
	now := time.Now().UTC()

	var out []store.Article
	for _, item := range items {
		if story.IsBlocked(item.URL) {
			continue
		}
		if item.PublishedAt.IsZero() || item.PublishedAt.Before(cutoff) {
			continue
		}
		fp := story.Fingerprint(item.URL)
		if fp == "" {
			continue
		}
		source := story.SourceFromURL(item.URL)
		if story.IsAggregator(item.URL) {
			source = story.AggregatorSourceName
		}
		out = append(out, store.Article{
			Fingerprint:  fp,
			URL:          item.URL,
			Title:        item.Title,
			SourceName:   source,
			PublishedAt:  item.PublishedAt,
			IngestedAt:   now,
			NeedsScoring: true,
			FitStatus:    store.FitPending,
		})
	}
	return out
}
