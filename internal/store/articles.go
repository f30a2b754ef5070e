package store

import (
	"context"
	"time"
)

// Article is a raw ingested feed item.
type Article struct {
	RowID        string
	Fingerprint  string
	URL          string
	Title        string
	SourceName   string
	PublishedAt  time.Time
	IngestedAt   time.Time
	NeedsScoring bool
	FitStatus    string
	RawBody      string
}

// Article fit statuses.
const (
	FitPending  = "pending"
	FitScored   = "scored"
	FitRejected = "rejected"
)

func articleFromRecord(r Record) Article {
	return Article{
		RowID:        r.ID,
		Fingerprint:  r.Str("fingerprint"),
		URL:          r.Str("url"),
		Title:        r.Str("title"),
		SourceName:   r.Str("source_name"),
		PublishedAt:  r.Time("published_at"),
		IngestedAt:   r.Time("ingested_at"),
		NeedsScoring: r.Bool("needs_scoring"),
		FitStatus:    r.Str("fit_status"),
		RawBody:      r.Str("raw_body"),
	}
}

func (a Article) fields() map[string]interface{} {
	return map[string]interface{}{
		"fingerprint":   a.Fingerprint,
		"url":           a.URL,
		"title":         a.Title,
		"source_name":   a.SourceName,
		"published_at":  a.PublishedAt.UTC().Format(time.RFC3339),
		"ingested_at":   a.IngestedAt.UTC().Format(time.RFC3339),
		"needs_scoring": a.NeedsScoring,
		"fit_status":    a.FitStatus,
		"raw_body":      a.RawBody,
	}
}

// KnownFingerprints loads every article fingerprint in one paginated
// pass. Ingest uses the set to drop duplicates before writing.
func (s *Store) KnownFingerprints(ctx context.Context) (map[string]bool, error) {
	records, err := s.client.Find(ctx, s.tables.Articles, Query{
		Fields: []string{"fingerprint"},
	})
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(records))
	for _, r := range records {
		if fp := r.Str("fingerprint"); fp != "" {
			known[fp] = true
		}
	}
	return known, nil
}

// InsertArticles appends articles in backend-sized write batches.
func (s *Store) InsertArticles(ctx context.Context, articles []Article) ([]string, error) {
	rows := make([]map[string]interface{}, len(articles))
	for i, a := range articles {
		rows[i] = a.fields()
	}
	return s.client.InsertBatch(ctx, s.tables.Articles, rows)
}

// ArticlesNeedingScoring returns articles flagged for the scoring pass.
func (s *Store) ArticlesNeedingScoring(ctx context.Context, limit int) ([]Article, error) {
	records, err := s.client.Find(ctx, s.tables.Articles, Query{
		Filter:     IsTrue("needs_scoring"),
		Sorts:      []SortSpec{{Field: "ingested_at", Desc: true}},
		MaxRecords: limit,
	})
	if err != nil {
		return nil, err
	}
	articles := make([]Article, len(records))
	for i, r := range records {
		articles[i] = articleFromRecord(r)
	}
	return articles, nil
}

// MarkArticleScored clears the scoring flag and records the fit status.
func (s *Store) MarkArticleScored(ctx context.Context, rowID, fitStatus string) error {
	return s.client.Update(ctx, s.tables.Articles, rowID, map[string]interface{}{
		"needs_scoring": false,
		"fit_status":    fitStatus,
	})
}
