package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pivotmedia/newsroom/internal/execlog"
	"github.com/pivotmedia/newsroom/internal/llm"
	"github.com/pivotmedia/newsroom/internal/store"
	"github.com/pivotmedia/newsroom/internal/story"
)

// Prefilter routes recently-scored Selects into the five slot pools.
// Each slot classifies the full batch under its own topical prompt;
// slot 1 additionally unions a deterministic Tier-1 company match.
// Slots are written as they finish, and one slot's failure does not
// stop the rest.
func (p *Pipeline) Prefilter(ctx context.Context, lookbackHours int) error {
	if lookbackHours <= 0 {
		lookbackHours = p.settings.LookbackHours
	}
	if lookbackHours > 120 {
		lookbackHours = 120
	}
	rec := p.recorder("prefilter", "prefilter", 0)

	selects, err := p.store.SelectsSince(ctx, lookbackHours)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return fmt.Errorf("loading selects: %w", err)
	}

	eligible := eligibleSelects(selects, p.settings.MinSourceScore)
	rec.Info("gathered candidates", map[string]interface{}{
		"lookback_hours": lookbackHours,
		"selects":        len(selects),
		"eligible":       len(eligible),
	})
	if len(eligible) == 0 {
		rec.Complete(ctx, execlog.StatusSuccess, "", "")
		return nil
	}

	// Exclude what yesterday's issue already ran.
	excluded := map[string]bool{}
	if issues, err := p.store.RecentIssues(ctx, story.VariantPivot5, 2); err == nil && len(issues) > 0 {
		for _, ref := range issues[0].Slots {
			if ref.Fingerprint != "" {
				excluded[ref.Fingerprint] = true
			}
			if ref.Headline != "" {
				excluded[story.NormalizeHeadline(ref.Headline)] = true
			}
		}
	} else if err != nil {
		rec.Warn("loading yesterday's issue failed", map[string]interface{}{"error": err.Error()})
	}

	batch := eligible[:0:0]
	for _, sel := range eligible {
		if excluded[sel.Fingerprint] || excluded[story.NormalizeHeadline(sel.Headline)] {
			continue
		}
		batch = append(batch, sel)
	}

	headlines := make([]llm.Headline, len(batch))
	byID := make(map[string]store.Select, len(batch))
	for i, sel := range batch {
		headlines[i] = llm.Headline{ID: sel.StoryID, Headline: sel.Headline}
		byID[sel.StoryID] = sel
	}

	written := map[string]bool{} // fingerprint+slot pairs this run
	var failedSlots int
	for slot := 1; slot <= 5; slot++ {
		if err := p.prefilterSlot(ctx, rec, slot, headlines, batch, byID, written); err != nil {
			failedSlots++
			rec.Error("slot failed", map[string]interface{}{"slot": slot, "error": err.Error()})
		}
	}

	switch {
	case failedSlots == 5:
		rec.Complete(ctx, execlog.StatusFailed, "all slots failed", "")
		return fmt.Errorf("prefilter: all slots failed")
	case failedSlots > 0:
		rec.Complete(ctx, execlog.StatusPartial, fmt.Sprintf("%d slots failed", failedSlots), "")
	default:
		rec.Complete(ctx, execlog.StatusSuccess, "", "")
	}
	return nil
}

// prefilterSlot classifies one slot and persists its rows immediately,
// so a mid-run crash preserves finished slots.
func (p *Pipeline) prefilterSlot(ctx context.Context, rec *execlog.Recorder, slot int, headlines []llm.Headline, batch []store.Select, byID map[string]store.Select, written map[string]bool) error {
	matches, err := p.classifier.Classify(ctx, slot, headlines)
	if err != nil {
		return fmt.Errorf("classifying slot %d: %w", slot, err)
	}

	// Slot 1 also takes any headline naming a Tier-1 company, whatever
	// the classifier thought.
	if slot == 1 {
		for _, sel := range batch {
			if p.companies.Match(sel.Headline) != "" {
				matches[sel.StoryID] = true
			}
		}
	}

	now := time.Now().UTC()
	var rows []store.PrefilterRow
	for id := range matches {
		sel, ok := byID[id]
		if !ok {
			continue
		}
		pair := sel.Fingerprint + "/" + strconv.Itoa(slot)
		if written[pair] {
			continue
		}
		written[pair] = true
		rows = append(rows, store.PrefilterRow{
			StoryID:       sel.StoryID,
			Fingerprint:   sel.Fingerprint,
			Headline:      sel.Headline,
			URL:           sel.URL,
			SourceName:    sel.SourceName,
			Slot:          slot,
			PublishedAt:   sel.PublishedAt,
			PrefilteredAt: now,
		})
	}
	if len(rows) == 0 {
		rec.Info("slot empty", map[string]interface{}{"slot": slot})
		return nil
	}
	if _, err := p.store.InsertPrefilterRows(ctx, rows); err != nil {
		return fmt.Errorf("writing slot %d rows: %w", slot, err)
	}
	rec.Info("slot persisted", map[string]interface{}{"slot": slot, "rows": len(rows)})
	return nil
}

// eligibleSelects drops rows below the credibility floor. Unknown
// sources grade as 3.
func eligibleSelects(selects []store.Select, minScore int) []store.Select {
	var out []store.Select
	for _, sel := range selects {
		score := sel.SourceScore
		if score == 0 {
			score = sourceScoreFor(sel.SourceName)
		}
		if score < minScore {
			continue
		}
		out = append(out, sel)
	}
	return out
}
