package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pivotmedia/newsroom/internal/execlog"
	"github.com/pivotmedia/newsroom/internal/llm"
	"github.com/pivotmedia/newsroom/internal/store"
	"github.com/pivotmedia/newsroom/internal/story"
)

const (
	cleanFallbackBudget = 8000
	rawExcerptBudget    = 10000
)

// Decorate picks up the variant's pending Issue and writes a decorated
// IssueStory per slot reference. Already-decorated fingerprints are
// skipped, so reruns resume where they left off.
func (p *Pipeline) Decorate(ctx context.Context, v story.Variant) error {
	rec := p.recorder("decorate-"+string(v), "decorate", 0)

	issue, err := p.store.PendingIssue(ctx, v)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return fmt.Errorf("loading pending issue: %w", err)
	}
	if issue == nil {
		rec.Info("no pending issue", nil)
		rec.Complete(ctx, execlog.StatusSuccess, "", "")
		return nil
	}
	rec.Info("decorating issue", map[string]interface{}{"issue_id": issue.IssueID})

	existing, err := p.store.StoriesForIssue(ctx, v, issue.IssueID)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return fmt.Errorf("loading existing stories: %w", err)
	}
	done := make(map[string]bool, len(existing))
	for _, st := range existing {
		done[st.Fingerprint] = true
	}

	decorated := len(existing)
	var failed int

	for _, ref := range issue.Slots {
		if done[ref.Fingerprint] {
			continue
		}
		if err := p.decorateRef(ctx, v, issue, ref, false); err != nil {
			failed++
			rec.Error("decoration failed", map[string]interface{}{"slot": ref.Slot, "error": err.Error()})
			continue
		}
		decorated++
	}
	if v == story.VariantSignal {
		for _, ref := range issue.QuickHits {
			if done[ref.Fingerprint] {
				continue
			}
			if err := p.decorateRef(ctx, v, issue, ref, true); err != nil {
				failed++
				rec.Error("quick-hit decoration failed", map[string]interface{}{"hit": ref.Slot, "error": err.Error()})
				continue
			}
			decorated++
		}
	}

	if decorated == 0 {
		rec.Complete(ctx, execlog.StatusFailed, "no story could be decorated", "")
		return fmt.Errorf("decorate %s: no story could be decorated", issue.IssueID)
	}

	if err := p.store.UpdateIssue(ctx, v, issue, map[string]interface{}{"status": store.StatusDecorated}); err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return fmt.Errorf("advancing issue %s: %w", issue.IssueID, err)
	}

	rec.SetSummary("decorated", decorated)
	rec.SetSummary("failed", failed)
	status := execlog.StatusSuccess
	if failed > 0 {
		status = execlog.StatusPartial
	}
	rec.Complete(ctx, status, "", "")
	return nil
}

// decorateRef produces and persists one IssueStory.
func (p *Pipeline) decorateRef(ctx context.Context, v story.Variant, issue *store.Issue, ref store.SlotRef, quickHit bool) error {
	sel, err := p.lookupSelect(ctx, ref)
	if err != nil {
		return err
	}

	body := p.cleanBody(ctx, sel)

	var st store.IssueStory
	switch {
	case v == story.VariantPivot5:
		st, err = p.decoratePivot5(ctx, sel, body)
	case quickHit:
		st, err = p.decorateQuickHit(ctx, sel, body, ref.Slot)
	default:
		st, err = p.decorateSignalSection(ctx, sel, body, ref.Slot)
	}
	if err != nil {
		return err
	}

	st.IssueID = issue.IssueID
	st.StoryID = sel.StoryID
	st.Fingerprint = sel.Fingerprint
	st.SourceName = sel.SourceName
	st.RawExcerpt = clip(body, rawExcerptBudget)
	if !quickHit {
		st.SlotOrder = ref.Slot
	}

	_, err = p.store.InsertIssueStory(ctx, v, st)
	return err
}

func (p *Pipeline) lookupSelect(ctx context.Context, ref store.SlotRef) (*store.Select, error) {
	if ref.Fingerprint != "" {
		if sel, err := p.store.SelectByFingerprint(ctx, ref.Fingerprint); err != nil {
			return nil, err
		} else if sel != nil {
			return sel, nil
		}
	}
	if ref.StoryID != "" {
		if sel, err := p.store.SelectByStoryID(ctx, ref.StoryID); err != nil {
			return nil, err
		} else if sel != nil {
			return sel, nil
		}
	}
	return nil, fmt.Errorf("no select found for slot %d (%s)", ref.Slot, ref.Headline)
}

// cleanBody returns the article prose for decoration: the cached clean
// body, a fresh cleaner call, or the truncated raw text as last resort.
func (p *Pipeline) cleanBody(ctx context.Context, sel *store.Select) string {
	if sel.CleanedBody != "" {
		return sel.CleanedBody
	}
	raw := sel.RawBody
	if raw == "" {
		return sel.Headline
	}
	cleaned, err := p.classifier.Clean(ctx, raw)
	if err != nil || cleaned == "" {
		return clip(raw, cleanFallbackBudget)
	}
	if err := p.store.CacheCleanedBody(ctx, sel.RowID, cleaned); err == nil {
		sel.CleanedBody = cleaned
	}
	return cleaned
}

func (p *Pipeline) decoratePivot5(ctx context.Context, sel *store.Select, body string) (store.IssueStory, error) {
	raw, err := p.completer.Complete(ctx, llm.DecorationSystemPrompt, llm.DecorationUserPrompt(sel.Headline, sel.SourceName, body))
	if err != nil {
		return store.IssueStory{}, err
	}
	d, err := llm.ParseDecoration(raw)
	if err != nil {
		return store.IssueStory{}, err
	}

	bullets := p.emphasizeBullets(ctx, d.Bullets)

	return store.IssueStory{
		Headline:    d.Headline,
		Dek:         d.Dek,
		Bullets:     bullets,
		Label:       d.Label,
		ImagePrompt: d.ImagePrompt,
		ImageStatus: store.ImageNeeded,
	}, nil
}

// emphasizeBullets runs the bolding pass. Failures keep the plain
// bullets.
func (p *Pipeline) emphasizeBullets(ctx context.Context, bullets [3]string) [3]string {
	payload, err := json.Marshal(bullets[:])
	if err != nil {
		return bullets
	}
	raw, err := p.completer.Complete(ctx, llm.EmphasisSystemPrompt, string(payload))
	if err != nil {
		return bullets
	}
	var result llm.EmphasisResult
	if err := llm.ParseJSON(raw, &result); err != nil {
		return bullets
	}
	out := bullets
	for i := 0; i < 3 && i < len(result.Bullets); i++ {
		if result.Bullets[i] != "" {
			out[i] = result.Bullets[i]
		}
	}
	return out
}

func (p *Pipeline) decorateSignalSection(ctx context.Context, sel *store.Select, body string, slot int) (store.IssueStory, error) {
	raw, err := p.completer.Complete(ctx, llm.SignalDecorationSystemPrompt, llm.DecorationUserPrompt(sel.Headline, sel.SourceName, body))
	if err != nil {
		return store.IssueStory{}, err
	}
	var d llm.SignalDecoration
	if err := llm.ParseJSON(raw, &d); err != nil {
		return store.IssueStory{}, err
	}
	return store.IssueStory{
		Section:      story.SignalSectionForSlot(slot),
		Headline:     d.Headline,
		OneLiner:     d.OneLiner,
		Lead:         d.Lead,
		WhyItMatters: d.WhyItMatters,
		WhatsNext:    d.WhatsNext,
	}, nil
}

func (p *Pipeline) decorateQuickHit(ctx context.Context, sel *store.Select, body string, position int) (store.IssueStory, error) {
	raw, err := p.completer.Complete(ctx, llm.QuickHitSystemPrompt, llm.DecorationUserPrompt(sel.Headline, sel.SourceName, body))
	if err != nil {
		return store.IssueStory{}, err
	}
	var hit llm.QuickHit
	if err := llm.ParseJSON(raw, &hit); err != nil {
		return store.IssueStory{}, err
	}
	return store.IssueStory{
		Section:     "signal",
		Headline:    hit.Headline,
		SignalBlurb: hit.SignalBlurb,
		// Quick-hits sort after the four long-form sections.
		SlotOrder: 10 + position,
	}, nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
