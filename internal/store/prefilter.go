package store

import (
	"context"
	"strconv"
	"time"
)

// PrefilterRow records one (article, eligible slot) pair for a run.
type PrefilterRow struct {
	RowID        string
	StoryID      string
	Fingerprint  string
	Headline     string
	URL          string
	SourceName   string
	Slot         int
	PublishedAt  time.Time
	PrefilteredAt time.Time
}

func prefilterFromRecord(r Record) PrefilterRow {
	return PrefilterRow{
		RowID:         r.ID,
		StoryID:       r.Str("story_id"),
		Fingerprint:   r.Str("fingerprint"),
		Headline:      r.Str("headline"),
		URL:           r.Str("url"),
		SourceName:    r.Str("source_name"),
		Slot:          r.Int("slot"),
		PublishedAt:   r.Time("published_at"),
		PrefilteredAt: r.Time("prefiltered_at"),
	}
}

func (p PrefilterRow) fields() map[string]interface{} {
	return map[string]interface{}{
		"story_id":       p.StoryID,
		"fingerprint":    p.Fingerprint,
		"headline":       p.Headline,
		"url":            p.URL,
		"source_name":    p.SourceName,
		"slot":           p.Slot,
		"published_at":   p.PublishedAt.UTC().Format(time.RFC3339),
		"prefiltered_at": p.PrefilteredAt.UTC().Format(time.RFC3339),
	}
}

// InsertPrefilterRows writes one slot's rows. Called once per slot so a
// mid-run crash preserves finished slots.
func (s *Store) InsertPrefilterRows(ctx context.Context, rows []PrefilterRow) ([]string, error) {
	fields := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		fields[i] = row.fields()
	}
	return s.client.InsertBatch(ctx, s.tables.Prefilter, fields)
}

// PrefilterCandidates returns rows for one slot whose article was
// published inside the freshness window, newest first, capped.
func (s *Store) PrefilterCandidates(ctx context.Context, slot, freshnessHours, limit int) ([]PrefilterRow, error) {
	records, err := s.client.Find(ctx, s.tables.Prefilter, Query{
		Filter: And(
			Eq("slot", strconv.Itoa(slot)),
			IsAfterNow("published_at", freshnessHours),
		),
		Sorts:      []SortSpec{{Field: "published_at", Desc: true}},
		MaxRecords: limit,
	})
	if err != nil {
		return nil, err
	}
	rows := make([]PrefilterRow, len(records))
	for i, r := range records {
		rows[i] = prefilterFromRecord(r)
	}
	return rows, nil
}
