package pipeline

import (
	"context"
	"fmt"

	"github.com/pivotmedia/newsroom/internal/execlog"
)

// ExtractorRetry sweeps recent Selects from paywalled sources whose raw
// body came back too short and gives each exactly one headless-browser
// retry. Metered: rows that already used their retry are excluded at
// the query.
func (p *Pipeline) ExtractorRetry(ctx context.Context, hoursBack int) (int, error) {
	if hoursBack <= 0 {
		hoursBack = 24
	}
	rec := p.recorder("extractor-retry", "extract", 0)

	if p.extractor == nil || len(p.settings.ExtractSources) == 0 {
		rec.Info("extractor not configured", nil)
		rec.Complete(ctx, execlog.StatusSuccess, "", "")
		return 0, nil
	}

	selects, err := p.store.ShortBodySelects(ctx, p.settings.ExtractSources, p.settings.MinBodyLength, hoursBack)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return 0, fmt.Errorf("loading short-body selects: %w", err)
	}

	var replaced int
	for _, sel := range selects {
		result, err := p.extractor.Scrape(ctx, sel.URL)
		if err != nil {
			rec.Warn("extraction failed", map[string]interface{}{"url": sel.URL, "error": err.Error()})
			// Burn the retry anyway so the row is not swept again.
			if uerr := p.store.UpdateSelectBody(ctx, sel.RowID, sel.RawBody, ""); uerr != nil {
				rec.Warn("marking retry consumed failed", map[string]interface{}{"row": sel.RowID, "error": uerr.Error()})
			}
			continue
		}
		if result.ContentLength < p.settings.MinBodyLength {
			rec.Warn("extracted content still too short", map[string]interface{}{
				"url": sel.URL, "length": result.ContentLength,
			})
			if uerr := p.store.UpdateSelectBody(ctx, sel.RowID, sel.RawBody, result.SessionReplay); uerr != nil {
				rec.Warn("marking retry consumed failed", map[string]interface{}{"row": sel.RowID, "error": uerr.Error()})
			}
			continue
		}
		if err := p.store.UpdateSelectBody(ctx, sel.RowID, result.Content, result.SessionReplay); err != nil {
			rec.Warn("replacing body failed", map[string]interface{}{"row": sel.RowID, "error": err.Error()})
			continue
		}
		replaced++
	}

	rec.SetSummary("swept", len(selects))
	rec.SetSummary("replaced", replaced)
	rec.Complete(ctx, execlog.StatusSuccess, "", "")
	return replaced, nil
}
