package llm

import (
	"fmt"
	"strings"
)

// slotCriteria encodes each slot's topical brief for prefilter
// classification and selection.
var slotCriteria = map[int]string{
	1: "Macro AI stories: jobs, the economy, policy, and AI's impact on society at large.",
	2: "Tier-1 AI vendors and research: major model releases, lab announcements, and significant research results from the largest AI companies.",
	3: "AI in vertical industries: healthcare, finance, legal, manufacturing, retail, and other sector-specific deployments.",
	4: "Emerging AI companies: startups, funding rounds, new entrants, and notable pivots.",
	5: "Consumer and human-interest AI: products people use, culture, and stories with broad mainstream appeal.",
}

// SlotCriteria returns the topical brief for a slot.
func SlotCriteria(slot int) string {
	return slotCriteria[slot]
}

// ClassifierSystemPrompt builds the per-slot system prompt for bulk
// prefilter classification.
func ClassifierSystemPrompt(slot int) string {
	return fmt.Sprintf(`You are a newsletter editor triaging AI news articles.

Slot %d criteria: %s

You will receive a JSON array of articles, each with an "id" and a "headline".
Return ONLY a JSON object of the form {"matches": ["id", ...]} listing the ids
of articles that fit the slot criteria. Return {"matches": []} if none fit.
No prose, no markdown fences.`, slot, slotCriteria[slot])
}

// CandidateLine is one candidate presented to the selection model.
type CandidateLine struct {
	ID       string
	PivotID  string
	Headline string
	Source   string
}

// SelectionContext carries the cumulative run state fed to the model so
// picks stay diverse across slots.
type SelectionContext struct {
	SelectedIDs        []string
	SelectedCompanies  []string
	SourceCounts       map[string]int
	YesterdayHeadlines []string
	// Slot-1 rotation: yesterday's lead headline, so the model avoids
	// featuring the same company two days running.
	YesterdaySlotOne string
	// Recently decorated stories across both variants, to steer picks
	// away from angles already covered.
	RecentSummaries []string
}

// SelectionSystemPrompt is the system prompt for single-slot selection.
func SelectionSystemPrompt(slot int) string {
	return fmt.Sprintf(`You are the lead editor of a daily AI newsletter choosing the story for slot %d.

Slot %d criteria: %s

Pick exactly one candidate. Favor consequential, well-sourced stories.
Respect diversity: avoid companies and sources already featured today, and
avoid stories substantially similar to yesterday's coverage.

Respond with ONLY a JSON object:
{"selected_id": "...", "selected_pivotId": "...", "selected_headline": "...",
 "selected_source": "...", "selected_company": "...", "reasoning": "..."}`,
		slot, slot, slotCriteria[slot])
}

// SelectionUserPrompt renders the candidates and run context for one
// selection call.
func SelectionUserPrompt(slot int, candidates []CandidateLine, sel SelectionContext) string {
	var b strings.Builder
	b.WriteString("## Candidates\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- id=%s pivotId=%s source=%s headline=%q\n", c.ID, c.PivotID, c.Source, c.Headline)
	}

	if len(sel.SelectedIDs) > 0 || len(sel.SelectedCompanies) > 0 {
		b.WriteString("\n## Already selected today\n")
		if len(sel.SelectedIDs) > 0 {
			fmt.Fprintf(&b, "Story IDs: %s\n", strings.Join(sel.SelectedIDs, ", "))
		}
		if len(sel.SelectedCompanies) > 0 {
			fmt.Fprintf(&b, "Companies: %s\n", strings.Join(sel.SelectedCompanies, ", "))
		}
		if len(sel.SourceCounts) > 0 {
			b.WriteString("Source usage:\n")
			for source, n := range sel.SourceCounts {
				fmt.Fprintf(&b, "- %s: %d\n", source, n)
			}
		}
	}
	if len(sel.YesterdayHeadlines) > 0 {
		b.WriteString("\n## Yesterday's headlines\n")
		for _, h := range sel.YesterdayHeadlines {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	if len(sel.RecentSummaries) > 0 {
		b.WriteString("\n## Recently covered\n")
		for _, s := range sel.RecentSummaries {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	if slot == 1 && sel.YesterdaySlotOne != "" {
		fmt.Fprintf(&b, "\nYesterday's lead story was: %q. Infer which company it featured and avoid leading with the same company today.\n", sel.YesterdaySlotOne)
	}
	return b.String()
}

// SignalsSystemPrompt asks for the five quick-hit picks in one call.
const SignalsSystemPrompt = `You are the editor of the Signal newsletter choosing five quick-hit items.

Pick exactly five distinct candidates. Each needs a one-sentence blurb in a
crisp, factual register. Avoid companies and stories already featured today.

Respond with ONLY a JSON object:
{"signals": [{"selected_id": "...", "selected_pivotId": "...",
 "selected_headline": "...", "selected_source": "...", "blurb": "..."}, ...]}`

// DecorationSystemPrompt is the Pivot 5 editorial decoration prompt.
const DecorationSystemPrompt = `You are a newsletter writer producing the editorial package for one story.

From the article provided, produce:
- "headline": punchy, under 12 words
- "dek": one-sentence summary, under 30 words
- "bullets": exactly three bullet strings, each a concrete fact or implication
- "label": a one-word topical tag in CAPS (e.g. ENTERPRISE, RESEARCH, POLICY)
- "image_prompt": a description for an abstract editorial illustration

Respond with ONLY a JSON object with those keys.`

// SignalDecorationSystemPrompt is the Signal long-form section prompt.
const SignalDecorationSystemPrompt = `You are a newsletter writer producing a long-form section for the Signal newsletter.

From the article provided, produce:
- "headline": clear and factual, under 14 words
- "one_liner": one-sentence at-a-glance summary
- "lead": two short paragraphs separated by a blank line
- "why_it_matters": one paragraph
- "whats_next": one paragraph

Respond with ONLY a JSON object with those keys.`

// EmphasisSystemPrompt asks the model to bold the key phrase in each
// bullet.
const EmphasisSystemPrompt = `You will receive a JSON array of bullet strings. For each, wrap the single
most important phrase in <b></b> tags, changing nothing else.
Respond with ONLY a JSON object: {"bullets": ["...", "...", "..."]}`

// SubjectSystemPrompt asks for the issue's subject line.
const SubjectSystemPrompt = `You write subject lines for a daily AI newsletter.

From the selected headlines provided, write one subject line under 90
characters that leads with the most compelling story. No quotes, no emoji.
Respond with ONLY the subject line text.`

// DecorationUserPrompt renders one story for decoration.
func DecorationUserPrompt(headline, source, body string) string {
	return fmt.Sprintf("Headline: %s\nSource: %s\n\nArticle:\n%s", headline, source, body)
}

// SubjectUserPrompt renders the day's headlines for the subject call.
func SubjectUserPrompt(headlines []string) string {
	var b strings.Builder
	b.WriteString("Today's stories:\n")
	for i, h := range headlines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h)
	}
	return b.String()
}

// ScoringSystemPrompt asks the model to grade one ingested article.
const ScoringSystemPrompt = `You are a newsletter editor grading an AI news article for reader interest.

Score from 0 to 10 how interesting this story is to a business audience
following AI. Also classify its topic (one or two words) and sentiment
(positive, negative, or neutral).

Respond with ONLY a JSON object:
{"interest_score": 7.5, "topic": "...", "sentiment": "..."}`

// ScoringUserPrompt renders one article for scoring.
func ScoringUserPrompt(headline, source, body string) string {
	return fmt.Sprintf("Headline: %s\nSource: %s\n\nArticle:\n%s", headline, source, body)
}

// QuickHitSystemPrompt asks for the signal_blurb of one quick-hit.
const QuickHitSystemPrompt = `You are a newsletter writer producing a quick-hit item.

From the article provided, produce:
- "headline": clear and factual, under 12 words
- "signal_blurb": exactly one sentence, 25 words or fewer

Respond with ONLY a JSON object with those keys.`

// CleanSystemPrompt asks the cleaner model to reduce scraped HTML text
// to readable article prose.
const CleanSystemPrompt = `You receive raw text scraped from a news article page. Return only the
article's body prose: drop navigation, bylines, captions, ads, related-story
links, and boilerplate. Preserve paragraph breaks. Return plain text only.`
