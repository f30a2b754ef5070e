package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pivotmedia/newsroom/internal/feeds"
	"github.com/pivotmedia/newsroom/internal/llm"
	"github.com/pivotmedia/newsroom/internal/store"
)

func TestSummaryLinesFeedSelectionContext(t *testing.T) {
	lines := summaryLines([]store.Select{
		{Headline: "OpenAI ships GPT-5", Topic: "models"},
		{Headline: "Nvidia earnings beat"},
		{},
	})
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "OpenAI ships GPT-5 (models)" {
		t.Errorf("lines[0] = %q", lines[0])
	}

	prompt := llm.SelectionUserPrompt(3, nil, llm.SelectionContext{RecentSummaries: lines})
	if !strings.Contains(prompt, "## Recently covered") || !strings.Contains(prompt, lines[0]) {
		t.Errorf("prompt missing recent summaries:\n%s", prompt)
	}
}

func TestBuildArticlesFiltersAndFingerprints(t *testing.T) {
	p := New(Deps{})
	now := time.Now()
	items := []feeds.Item{
		{Title: "Fresh story", URL: "https://www.reuters.com/tech/ai-story?utm_source=rss", PublishedAt: now.Add(-2 * time.Hour)},
		{Title: "Blocked host", URL: "https://youtube.com/watch?v=x", PublishedAt: now.Add(-1 * time.Hour)},
		{Title: "Too old", URL: "https://techcrunch.com/old", PublishedAt: now.Add(-48 * time.Hour)},
		{Title: "No date", URL: "https://techcrunch.com/undated"},
	}

	got := p.buildArticles(context.Background(), items, 10)
	if len(got) != 1 {
		t.Fatalf("got %d articles, want 1", len(got))
	}
	a := got[0]
	if a.SourceName != "Reuters" {
		t.Errorf("SourceName = %q, want Reuters", a.SourceName)
	}
	if a.Fingerprint == "" || len(a.Fingerprint) != 32 {
		t.Errorf("bad fingerprint %q", a.Fingerprint)
	}
	if !a.NeedsScoring || a.FitStatus != store.FitPending {
		t.Errorf("scoring flags wrong: %+v", a)
	}
}

func TestIngestOptionsDefaultsAndCap(t *testing.T) {
	s := DefaultSettings()

	got := IngestOptions{}.withDefaults(s)
	if got.SinceHours != 10 || got.Limit != 1000 {
		t.Errorf("defaults = %+v", got)
	}

	got = IngestOptions{SinceHours: 500}.withDefaults(s)
	if got.SinceHours != 120 {
		t.Errorf("backfill cap: SinceHours = %d, want 120", got.SinceHours)
	}
}

func TestEligibleSelectsCredibilityFloor(t *testing.T) {
	selects := []store.Select{
		{Headline: "kept explicit", SourceScore: 4},
		{Headline: "dropped explicit", SourceScore: 1},
		{Headline: "kept unknown source", SourceName: "Some Blog"}, // defaults to 3
		{Headline: "kept at floor", SourceName: "Forbes"}, // grades exactly 2
	}
	got := eligibleSelects(selects, 2)
	if len(got) != 3 {
		t.Fatalf("got %d eligible, want 3", len(got))
	}
	for _, sel := range got {
		if sel.Headline == "dropped explicit" {
			t.Error("row below the floor survived")
		}
	}
}

func TestSourceScoreDefaults(t *testing.T) {
	if got := sourceScoreFor("Reuters"); got != 5 {
		t.Errorf("Reuters = %d, want 5", got)
	}
	if got := sourceScoreFor("Random Newsletter"); got != 3 {
		t.Errorf("unknown = %d, want 3", got)
	}
}

func TestDedupIndexBlocksHistory(t *testing.T) {
	issues := []store.Issue{{
		Slots: []store.SlotRef{
			{Slot: 1, StoryID: "s1", Fingerprint: "fp1", Headline: "OpenAI Ships GPT-5"},
		},
		QuickHits: []store.SlotRef{
			{Slot: 1, StoryID: "q1", Fingerprint: "fpq", Headline: "Meta hires lab"},
		},
	}}
	d := newDedupIndex(issues)

	if !d.blocked("fp1", "anything", "") {
		t.Error("fingerprint match not blocked")
	}
	if !d.blocked("", "  openai ships gpt-5 ", "") {
		t.Error("case-insensitive headline match not blocked")
	}
	if !d.blocked("", "other", "q1") {
		t.Error("quick-hit story ID not blocked")
	}
	if d.blocked("fresh", "new headline", "new-id") {
		t.Error("fresh story blocked")
	}
}

func TestFilterCandidates(t *testing.T) {
	history := newDedupIndex([]store.Issue{{
		Slots: []store.SlotRef{{Fingerprint: "old", Headline: "Old Story"}},
	}})
	state := newRunState()
	state.record(store.PrefilterRow{StoryID: "picked", Fingerprint: "fp-picked", Headline: "Picked Today", SourceName: "Reuters"}, "openai")

	rows := []store.PrefilterRow{
		{StoryID: "a", Fingerprint: "old", Headline: "Old Story"},
		{StoryID: "picked", Fingerprint: "fp-picked", Headline: "Picked Today"},
		{StoryID: "b", Fingerprint: "new", Headline: "Brand New"},
	}
	got := filterCandidates(rows, history, state.picked)
	if len(got) != 1 || got[0].StoryID != "b" {
		t.Errorf("filterCandidates = %+v, want only b", got)
	}
	if state.sources["Reuters"] != 1 {
		t.Errorf("source count = %d, want 1", state.sources["Reuters"])
	}
}

func TestReconcileSelection(t *testing.T) {
	candidates := []store.PrefilterRow{
		{StoryID: "rec1", Headline: "Nvidia Eyes $3B Deal"},
		{StoryID: "rec2", Headline: "OpenAI Raises Again"},
	}

	// Exact ID match.
	row := reconcileSelection(&llm.SelectionResult{SelectedID: "rec2"}, candidates)
	if row == nil || row.StoryID != "rec2" {
		t.Fatalf("exact ID reconcile failed: %+v", row)
	}

	// Headline fallback corrects the ID.
	result := &llm.SelectionResult{SelectedID: "hallucinated", SelectedHeadline: " nvidia eyes $3b deal "}
	row = reconcileSelection(result, candidates)
	if row == nil || row.StoryID != "rec1" {
		t.Fatalf("headline reconcile failed: %+v", row)
	}
	if result.SelectedID != "rec1" {
		t.Errorf("ID not corrected, got %q", result.SelectedID)
	}

	// No match at all.
	if row := reconcileSelection(&llm.SelectionResult{SelectedID: "nope", SelectedHeadline: "missing"}, candidates); row != nil {
		t.Errorf("expected nil, got %+v", row)
	}
}

func TestSanitizeSubject(t *testing.T) {
	if got := sanitizeSubject(`"OpenAI ships GPT-5"`, 90, "fallback"); got != "OpenAI ships GPT-5" {
		t.Errorf("quotes not stripped: %q", got)
	}
	long := sanitizeSubject(makeString('a', 200), 90, "fallback")
	if len(long) > 90 {
		t.Errorf("length cap not enforced: %d chars", len(long))
	}
	if got := sanitizeSubject("   ", 90, "fallback"); got != "fallback" {
		t.Errorf("empty subject fallback: %q", got)
	}
}

func makeString(c byte, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return string(b)
}
