package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/pivotmedia/newsroom/internal/execlog"
	"github.com/pivotmedia/newsroom/internal/llm"
	"github.com/pivotmedia/newsroom/internal/store"
	"github.com/pivotmedia/newsroom/internal/story"
)

// dedupIndex blocks stories featured in the variant's recent issues.
type dedupIndex struct {
	fingerprints map[string]bool
	headlines    map[string]bool
	storyIDs     map[string]bool
}

func newDedupIndex(issues []store.Issue) *dedupIndex {
	d := &dedupIndex{
		fingerprints: map[string]bool{},
		headlines:    map[string]bool{},
		storyIDs:     map[string]bool{},
	}
	for _, iss := range issues {
		for _, ref := range append(iss.Slots, iss.QuickHits...) {
			d.add(ref.Fingerprint, ref.Headline, ref.StoryID)
		}
	}
	return d
}

func (d *dedupIndex) add(fingerprint, headline, storyID string) {
	if fingerprint != "" {
		d.fingerprints[fingerprint] = true
	}
	if headline != "" {
		d.headlines[story.NormalizeHeadline(headline)] = true
	}
	if storyID != "" {
		d.storyIDs[storyID] = true
	}
}

func (d *dedupIndex) blocked(fingerprint, headline, storyID string) bool {
	return d.fingerprints[fingerprint] ||
		d.headlines[story.NormalizeHeadline(headline)] ||
		(storyID != "" && d.storyIDs[storyID])
}

// runState is the cumulative selection context for one run: everything
// chosen so far, so later slots stay diverse.
type runState struct {
	picked    *dedupIndex
	ids       []string
	companies []string
	sources   map[string]int
	recent    []string // headline/topic lines of recently decorated stories
}

func newRunState() *runState {
	return &runState{
		picked: &dedupIndex{
			fingerprints: map[string]bool{},
			headlines:    map[string]bool{},
			storyIDs:     map[string]bool{},
		},
		sources: map[string]int{},
	}
}

func (s *runState) record(row store.PrefilterRow, company string) {
	s.picked.add(row.Fingerprint, row.Headline, row.StoryID)
	s.ids = append(s.ids, row.StoryID)
	if company != "" {
		s.companies = append(s.companies, company)
	}
	if row.SourceName != "" {
		s.sources[row.SourceName]++
	}
}

func (s *runState) context(yesterday []string, yesterdaySlotOne string) llm.SelectionContext {
	return llm.SelectionContext{
		SelectedIDs:        s.ids,
		SelectedCompanies:  s.companies,
		SourceCounts:       s.sources,
		YesterdayHeadlines: yesterday,
		YesterdaySlotOne:   yesterdaySlotOne,
		RecentSummaries:    s.recent,
	}
}

// SelectIssue runs slot-by-slot selection for the variant and persists
// a pending Issue. Slots that cannot be filled are recorded as errors;
// the Issue is still created as long as at least one slot succeeds.
func (p *Pipeline) SelectIssue(ctx context.Context, v story.Variant) (string, error) {
	rec := p.recorder("select-"+string(v), "select", 0)

	recent, err := p.store.RecentIssues(ctx, v, p.settings.DedupDays)
	if err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return "", fmt.Errorf("loading recent issues: %w", err)
	}
	dedup := newDedupIndex(recent)

	var yesterday []string
	var yesterdaySlotOne string
	if len(recent) > 0 {
		for _, ref := range recent[0].Slots {
			yesterday = append(yesterday, ref.Headline)
			if ref.Slot == 1 {
				yesterdaySlotOne = ref.Headline
			}
		}
	}

	state := newRunState()
	if summaries, err := p.store.RecentDecoratedSummaries(ctx, 48, 30); err != nil {
		rec.Warn("loading recent summaries failed", map[string]interface{}{"error": err.Error()})
	} else {
		state.recent = summaryLines(summaries)
	}

	var slotRefs, quickHits []store.SlotRef
	var slotErrs int

	for _, slot := range story.SlotOrder(v) {
		freshness := p.clock.SlotFreshnessHours(v, slot)
		rows, err := p.store.PrefilterCandidates(ctx, slot, freshness, p.settings.SlotLimit)
		if err != nil {
			slotErrs++
			rec.Error("loading candidates failed", map[string]interface{}{"slot": slot, "error": err.Error()})
			continue
		}
		candidates := filterCandidates(rows, dedup, state.picked)
		if len(candidates) == 0 {
			slotErrs++
			rec.Warn("no candidates after dedup", map[string]interface{}{"slot": slot})
			continue
		}

		if v == story.VariantSignal && slot == 2 {
			hits, err := p.selectQuickHits(ctx, candidates, state, yesterday)
			if err != nil {
				slotErrs++
				rec.Error("quick-hit selection failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			quickHits = hits
			rec.Info("quick-hits selected", map[string]interface{}{"count": len(hits)})
			continue
		}

		row, company, err := p.selectSlot(ctx, v, slot, candidates, state, yesterday, yesterdaySlotOne)
		if err != nil {
			slotErrs++
			rec.Error("slot selection failed", map[string]interface{}{"slot": slot, "error": err.Error()})
			continue
		}
		state.record(*row, company)
		slotRefs = append(slotRefs, store.SlotRef{
			Slot:        slot,
			StoryID:     row.StoryID,
			Fingerprint: row.Fingerprint,
			Headline:    row.Headline,
		})
		rec.Info("slot selected", map[string]interface{}{"slot": slot, "headline": row.Headline})
	}

	if len(slotRefs) == 0 {
		rec.Complete(ctx, execlog.StatusFailed, "no slot could be filled", "")
		return "", fmt.Errorf("selection: no slot could be filled")
	}

	subject := p.subjectLine(ctx, rec, slotRefs)
	issueDate := p.clock.NextIssueDate()
	issueID := story.IssueLabel(v, issueDate)

	fields := store.IssueFields(issueID, issueDate, subject, slotRefs)
	if v == story.VariantSignal {
		store.AddQuickHits(fields, quickHits)
	}
	if _, err := p.store.CreateIssue(ctx, v, fields); err != nil {
		rec.Complete(ctx, execlog.StatusFailed, err.Error(), "")
		return "", fmt.Errorf("creating issue %s: %w", issueID, err)
	}

	rec.SetSummary("issue_id", issueID)
	rec.SetSummary("slots_filled", len(slotRefs))
	rec.SetSummary("quick_hits", len(quickHits))
	status := execlog.StatusSuccess
	if slotErrs > 0 {
		status = execlog.StatusPartial
	}
	rec.Complete(ctx, status, "", "")
	return issueID, nil
}

// selectSlot asks the reasoning model for one pick and reconciles it
// back to a concrete candidate.
func (p *Pipeline) selectSlot(ctx context.Context, v story.Variant, slot int, candidates []store.PrefilterRow, state *runState, yesterday []string, yesterdaySlotOne string) (*store.PrefilterRow, string, error) {
	user := llm.SelectionUserPrompt(slot, candidateLines(candidates), state.context(yesterday, yesterdaySlotOne))
	raw, err := p.completer.Complete(ctx, llm.SelectionSystemPrompt(slot), user)
	if err != nil {
		return nil, "", err
	}
	result, err := llm.ParseSelection(raw)
	if err != nil {
		return nil, "", err
	}
	row := reconcileSelection(result, candidates)
	if row == nil {
		return nil, "", fmt.Errorf("slot %d: model picked %q which is not a candidate", slot, result.SelectedID)
	}
	return row, result.SelectedCompany, nil
}

// selectQuickHits picks the five Signal quick-hits in one call, holding
// each to the same dedup invariants as full slots.
func (p *Pipeline) selectQuickHits(ctx context.Context, candidates []store.PrefilterRow, state *runState, yesterday []string) ([]store.SlotRef, error) {
	user := llm.SelectionUserPrompt(2, candidateLines(candidates), state.context(yesterday, ""))
	raw, err := p.completer.Complete(ctx, llm.SignalsSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	var result llm.SignalsResult
	if err := llm.ParseJSON(raw, &result); err != nil {
		return nil, err
	}

	var hits []store.SlotRef
	for _, pick := range result.Signals {
		sel := llm.SelectionResult{SelectedID: pick.SelectedID, SelectedHeadline: pick.SelectedHeadline}
		row := reconcileSelection(&sel, candidates)
		if row == nil {
			continue
		}
		if state.picked.blocked(row.Fingerprint, row.Headline, row.StoryID) {
			continue
		}
		state.record(*row, "")
		hits = append(hits, store.SlotRef{
			Slot:        len(hits) + 1,
			StoryID:     row.StoryID,
			Fingerprint: row.Fingerprint,
			Headline:    row.Headline,
		})
		if len(hits) == 5 {
			break
		}
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("no quick-hit reconciled against the candidate list")
	}
	return hits, nil
}

// subjectLine asks for the issue subject and sanitizes it; on any
// failure it falls back to the top story's headline.
func (p *Pipeline) subjectLine(ctx context.Context, rec *execlog.Recorder, refs []store.SlotRef) string {
	headlines := make([]string, len(refs))
	for i, ref := range refs {
		headlines[i] = ref.Headline
	}
	fallback := headlines[0]

	raw, err := p.completer.Complete(ctx, llm.SubjectSystemPrompt, llm.SubjectUserPrompt(headlines))
	if err != nil {
		rec.Warn("subject generation failed", map[string]interface{}{"error": err.Error()})
		return sanitizeSubject(fallback, p.settings.SubjectMaxLen, fallback)
	}
	return sanitizeSubject(raw, p.settings.SubjectMaxLen, fallback)
}

// summaryLines formats recently decorated stories as prompt context.
func summaryLines(selects []store.Select) []string {
	lines := make([]string, 0, len(selects))
	for _, sel := range selects {
		line := sel.Headline
		if sel.Topic != "" {
			line += " (" + sel.Topic + ")"
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func candidateLines(rows []store.PrefilterRow) []llm.CandidateLine {
	lines := make([]llm.CandidateLine, len(rows))
	for i, row := range rows {
		lines[i] = llm.CandidateLine{
			ID:       row.StoryID,
			PivotID:  row.RowID,
			Headline: row.Headline,
			Source:   row.SourceName,
		}
	}
	return lines
}

// filterCandidates drops rows blocked by history or by this run's
// already-selected set.
func filterCandidates(rows []store.PrefilterRow, history, picked *dedupIndex) []store.PrefilterRow {
	var out []store.PrefilterRow
	for _, row := range rows {
		if history.blocked(row.Fingerprint, row.Headline, row.StoryID) {
			continue
		}
		if picked.blocked(row.Fingerprint, row.Headline, row.StoryID) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// reconcileSelection maps a model pick back to a candidate: exact story
// ID first, then a trimmed case-insensitive headline match that also
// corrects the ID.
func reconcileSelection(result *llm.SelectionResult, candidates []store.PrefilterRow) *store.PrefilterRow {
	for i := range candidates {
		if candidates[i].StoryID == result.SelectedID {
			return &candidates[i]
		}
	}
	want := story.NormalizeHeadline(result.SelectedHeadline)
	if want == "" {
		return nil
	}
	for i := range candidates {
		if story.NormalizeHeadline(candidates[i].Headline) == want {
			result.SelectedID = candidates[i].StoryID
			return &candidates[i]
		}
	}
	return nil
}

// sanitizeSubject strips quotes and whitespace and enforces the length
// cap, substituting the fallback when the result is unusable.
func sanitizeSubject(s string, maxLen int, fallback string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.ReplaceAll(s, "\n", " ")
	if s == "" {
		s = fallback
	}
	if maxLen > 0 && len(s) > maxLen {
		s = strings.TrimSpace(s[:maxLen])
	}
	return s
}
