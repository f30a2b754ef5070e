package compile

import (
	"strings"
	"testing"
	"time"

	"github.com/pivotmedia/newsroom/internal/store"
)

func testIssue() *store.Issue {
	return &store.Issue{
		IssueID:   "Pivot 5 - Jan 05",
		IssueDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestEscapeKeepBold(t *testing.T) {
	got := EscapeKeepBold(`<b>OpenAI</b> raised <script> & more`)
	want := `<b>OpenAI</b> raised &lt;script&gt; &amp; more`
	if got != want {
		t.Errorf("EscapeKeepBold = %q, want %q", got, want)
	}
}

func TestRenderPivot5(t *testing.T) {
	c := NewCompiler("Pivot 5", "Daily AI Briefing")
	stories := []store.IssueStory{
		{
			Headline: "OpenAI ships GPT-5",
			Dek:      "The model everyone was waiting for.",
			Bullets:  [3]string{"<b>Benchmarks</b> up 20%", "API pricing unchanged", ""},
			Label:    "RESEARCH",
			ImageURL: "https://img.example/one.webp",
		},
		{
			Headline: "Nvidia earnings beat",
			Dek:      "Data center revenue again.",
			Bullets:  [3]string{"Revenue $40B", "Guidance raised", "Stock up 8%"},
		},
	}

	html, err := c.RenderPivot5(testIssue(), stories)
	if err != nil {
		t.Fatalf("RenderPivot5: %v", err)
	}
	for _, want := range []string{
		"Pivot 5",
		"Monday, January 5, 2026",
		"1. OpenAI ships GPT-5",
		"2. Nvidia earnings beat",
		"<b>Benchmarks</b> up 20%",
		"https://img.example/one.webp",
		"ENTERPRISE", // default label on the second story
		"{unsubscribe_url}",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
	if strings.Contains(html, "RESEARCH\n") && !strings.Contains(html, "RESEARCH") {
		t.Error("explicit label lost")
	}
}

func TestRenderSignal(t *testing.T) {
	c := NewCompiler("Pivot 5", "Daily AI Briefing")
	issue := &store.Issue{
		IssueID:   "Signal - Jan 05",
		IssueDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	stories := []store.IssueStory{
		{
			Section:      "top_story",
			Headline:     "OpenAI ships GPT-5",
			OneLiner:     "GPT-5 is out.",
			Lead:         "First paragraph.\n\nSecond paragraph.",
			WhyItMatters: "Big deal.",
			WhatsNext:    "More models.",
		},
		{
			Section:     "signal",
			Headline:    "Meta hires lab",
			SignalBlurb: "Another acqui-hire.",
		},
	}

	html, err := c.RenderSignal(issue, stories)
	if err != nil {
		t.Fatalf("RenderSignal: %v", err)
	}
	for _, want := range []string{
		"AT A GLANCE",
		"GPT-5 is out.",
		"TOP STORY",
		"First paragraph.",
		"Second paragraph.",
		"Why it matters:",
		"THE SIGNALS",
		"1. <b>Meta hires lab</b> Another acqui-hire.",
		"#059669",
		"Georgia",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
	if strings.Contains(html, "<img") {
		t.Error("Signal variant must not contain images")
	}
	if strings.Contains(html, "<a ") {
		t.Error("Signal variant must not contain links")
	}
}

func TestRenderSignalBulletedFields(t *testing.T) {
	c := NewCompiler("Pivot 5", "Daily AI Briefing")
	issue := &store.Issue{
		IssueID:   "Signal - Jan 05",
		IssueDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	stories := []store.IssueStory{
		{
			Section:      "top_story",
			Headline:     "OpenAI ships GPT-5",
			OneLiner:     "GPT-5 is out.",
			Lead:         "Lead paragraph.",
			WhyItMatters: "• First point with <b>bold</b> text.\n• Second point.",
			WhatsNext:    "Watch the API rollout.",
		},
	}

	html, err := c.RenderSignal(issue, stories)
	if err != nil {
		t.Fatalf("RenderSignal: %v", err)
	}
	for _, want := range []string{
		"&bull; First point with <b>bold</b> text.",
		"&bull; Second point.",
		"What's next:</b> Watch the API rollout.",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
	if strings.Contains(html, "&lt;b&gt;") {
		t.Error("bold markers escaped to visible text")
	}
	if strings.Contains(html, "First point with <b>bold</b> text.\n• Second point.") {
		t.Error("bullets collapsed into one paragraph")
	}
}

func TestBulletLines(t *testing.T) {
	got := bulletLines("• One.\n• Two.")
	if len(got) != 2 || got[0] != "One." || got[1] != "Two." {
		t.Errorf("bulletLines = %v", got)
	}
	if bulletLines("no bullets here") != nil {
		t.Error("plain text should return nil")
	}
}

func TestDeliverable(t *testing.T) {
	c := NewCompiler("Pivot 5", "Daily AI Briefing")
	rich := `<html><body style="font-family:Helvetica,Arial,sans-serif;">
<h1>Pivot 5</h1>
<img src="https://img.example/x.png">
<p><a href="https://example.com/story">Read more</a></p>
<p><a href="{unsubscribe_url}">Unsubscribe</a></p>
</body></html>`

	out, err := c.Deliverable(rich)
	if err != nil {
		t.Fatalf("Deliverable: %v", err)
	}
	if strings.Contains(out, "<img") {
		t.Error("images not stripped")
	}
	if strings.Contains(out, "https://example.com/story") {
		t.Error("external link not stripped")
	}
	if !strings.Contains(out, "Read more") {
		t.Error("link text lost")
	}
	if !strings.Contains(out, "{unsubscribe_url}") {
		t.Error("unsubscribe placeholder lost")
	}
	if strings.Contains(out, "Pivot 5") {
		t.Error("brand name not replaced")
	}
	if !strings.Contains(out, "Daily AI Briefing") {
		t.Error("generic brand missing")
	}
	if !strings.Contains(out, "font-family:Arial,sans-serif") {
		t.Error("font family not rewritten")
	}
}
