package store

import (
	"context"
	"time"
)

// Select is an article that passed scoring, plus derived content.
type Select struct {
	RowID            string
	StoryID          string
	Fingerprint      string
	Headline         string
	URL              string
	SourceName       string
	SourceScore      int
	RawBody          string
	CleanedBody      string
	InterestScore    float64
	Topic            string
	Sentiment        string
	PublishedAt      time.Time
	AIProcessedAt    time.Time
	ExtractorSession string
	ExtractorUsed    bool
}

func selectFromRecord(r Record) Select {
	return Select{
		RowID:            r.ID,
		StoryID:          r.Str("story_id"),
		Fingerprint:      r.Str("fingerprint"),
		Headline:         r.Str("headline"),
		URL:              r.Str("url"),
		SourceName:       r.Str("source_name"),
		SourceScore:      r.Int("source_score"),
		RawBody:          r.Str("raw_body"),
		CleanedBody:      r.Str("cleaned_body"),
		InterestScore:    r.Float("interest_score"),
		Topic:            r.Str("topic"),
		Sentiment:        r.Str("sentiment"),
		PublishedAt:      r.Time("published_at"),
		AIProcessedAt:    r.Time("ai_processed_at"),
		ExtractorSession: r.Str("extractor_session"),
		ExtractorUsed:    r.Bool("extractor_used"),
	}
}

func (sel Select) fields() map[string]interface{} {
	return map[string]interface{}{
		"story_id":        sel.StoryID,
		"fingerprint":     sel.Fingerprint,
		"headline":        sel.Headline,
		"url":             sel.URL,
		"source_name":     sel.SourceName,
		"source_score":    sel.SourceScore,
		"raw_body":        sel.RawBody,
		"interest_score":  sel.InterestScore,
		"topic":           sel.Topic,
		"sentiment":       sel.Sentiment,
		"published_at":    sel.PublishedAt.UTC().Format(time.RFC3339),
		"ai_processed_at": sel.AIProcessedAt.UTC().Format(time.RFC3339),
	}
}

// InsertSelects projects scored articles into the Selects table.
func (s *Store) InsertSelects(ctx context.Context, selects []Select) ([]string, error) {
	rows := make([]map[string]interface{}, len(selects))
	for i, sel := range selects {
		rows[i] = sel.fields()
	}
	return s.client.InsertBatch(ctx, s.tables.Selects, rows)
}

// SelectsSince returns selects AI-processed within the lookback window,
// newest first. The prefilter gathers its batch from here.
func (s *Store) SelectsSince(ctx context.Context, hoursBack int) ([]Select, error) {
	records, err := s.client.Find(ctx, s.tables.Selects, Query{
		Filter: IsAfterNow("ai_processed_at", hoursBack),
		Sorts:  []SortSpec{{Field: "ai_processed_at", Desc: true}},
	})
	if err != nil {
		return nil, err
	}
	selects := make([]Select, len(records))
	for i, r := range records {
		selects[i] = selectFromRecord(r)
	}
	return selects, nil
}

// SelectByFingerprint looks up one select by fingerprint.
func (s *Store) SelectByFingerprint(ctx context.Context, fingerprint string) (*Select, error) {
	records, err := s.client.Find(ctx, s.tables.Selects, Query{
		Filter:     Eq("fingerprint", fingerprint),
		MaxRecords: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	sel := selectFromRecord(records[0])
	return &sel, nil
}

// SelectByStoryID looks up one select by story ID.
func (s *Store) SelectByStoryID(ctx context.Context, storyID string) (*Select, error) {
	records, err := s.client.Find(ctx, s.tables.Selects, Query{
		Filter:     Eq("story_id", storyID),
		MaxRecords: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	sel := selectFromRecord(records[0])
	return &sel, nil
}

// ShortBodySelects returns recent selects from the given sources whose
// raw body is shorter than minLen and which have not already burned
// their extractor retry.
func (s *Store) ShortBodySelects(ctx context.Context, sources []string, minLen, hoursBack int) ([]Select, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	records, err := s.client.Find(ctx, s.tables.Selects, Query{
		Filter: And(
			In("source_name", sources...),
			LenLt("raw_body", minLen),
			IsNotTrue("extractor_used"),
			IsAfterNow("ai_processed_at", hoursBack),
		),
	})
	if err != nil {
		return nil, err
	}
	selects := make([]Select, len(records))
	for i, r := range records {
		selects[i] = selectFromRecord(r)
	}
	return selects, nil
}

// UpdateSelectBody replaces the raw body after an extractor retry and
// marks the retry as consumed.
func (s *Store) UpdateSelectBody(ctx context.Context, rowID, rawBody, session string) error {
	return s.client.Update(ctx, s.tables.Selects, rowID, map[string]interface{}{
		"raw_body":          rawBody,
		"extractor_session": session,
		"extractor_used":    true,
	})
}

// CacheCleanedBody stores the cleaned article text so later decoration
// passes skip the cleaner call.
func (s *Store) CacheCleanedBody(ctx context.Context, rowID, cleaned string) error {
	return s.client.Update(ctx, s.tables.Selects, rowID, map[string]interface{}{
		"cleaned_body": cleaned,
	})
}

// RecentDecoratedSummaries returns headline/topic pairs of recently
// decorated stories; the selector feeds them to the model as context.
func (s *Store) RecentDecoratedSummaries(ctx context.Context, hoursBack, limit int) ([]Select, error) {
	records, err := s.client.Find(ctx, s.tables.Selects, Query{
		Filter: And(
			IsAfterNow("ai_processed_at", hoursBack),
			NotEmpty("cleaned_body"),
		),
		Sorts:      []SortSpec{{Field: "ai_processed_at", Desc: true}},
		MaxRecords: limit,
		Fields:     []string{"story_id", "fingerprint", "headline", "topic", "source_name"},
	})
	if err != nil {
		return nil, err
	}
	selects := make([]Select, len(records))
	for i, r := range records {
		selects[i] = selectFromRecord(r)
	}
	return selects, nil
}
