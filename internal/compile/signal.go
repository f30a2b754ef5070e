package compile

import (
	"fmt"
	"strings"

	"github.com/pivotmedia/newsroom/internal/store"
	"github.com/pivotmedia/newsroom/internal/story"
)

// signalTemplate is the Signal layout: a text-first digest with no
// links and no images. At-a-glance summaries up top, full sections,
// then the five numbered quick-hits.
const signalTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Signal</title>
</head>
<body style="margin:0;padding:0;background-color:#ffffff;font-family:Georgia,serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:24px 0;">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="max-width:600px;">
<tr><td style="padding:0 24px 16px;">
<h1 style="margin:0;font-size:26px;color:#059669;">Signal</h1>
<p style="margin:6px 0 0;font-size:14px;color:#555555;">{{ issue_date }}</p>
</td></tr>
<tr><td style="padding:0 24px 20px;">
<p style="margin:0 0 8px;font-size:13px;font-weight:bold;letter-spacing:1px;color:#059669;">AT A GLANCE</p>
{% for section in sections %}
<p style="margin:0 0 6px;font-size:14px;color:#333333;">&bull; {{ section.one_liner | escape }}</p>
{% endfor %}
</td></tr>
{% for section in sections %}
<tr><td style="padding:0 24px 24px;">
<p style="margin:0 0 4px;font-size:12px;font-weight:bold;letter-spacing:1px;color:#059669;">{{ section.kicker }}</p>
<h2 style="margin:0 0 10px;font-size:20px;color:#111111;">{{ section.headline | escape }}</h2>
{% for para in section.lead_paragraphs %}
<p style="margin:0 0 10px;font-size:15px;line-height:1.5;color:#333333;">{{ para | escape_keep_bold }}</p>
{% endfor %}
{% if section.why_bullets %}
<p style="margin:0 0 4px;font-size:15px;line-height:1.5;color:#333333;"><b>Why it matters:</b></p>
{% for bullet in section.why_bullets %}
<p style="margin:0 0 6px 12px;font-size:15px;line-height:1.5;color:#333333;">&bull; {{ bullet | escape_keep_bold }}</p>
{% endfor %}
{% else %}
<p style="margin:0 0 10px;font-size:15px;line-height:1.5;color:#333333;"><b>Why it matters:</b> {{ section.why_it_matters | escape_keep_bold }}</p>
{% endif %}
{% if section.next_bullets %}
<p style="margin:0 0 4px;font-size:15px;line-height:1.5;color:#333333;"><b>What's next:</b></p>
{% for bullet in section.next_bullets %}
<p style="margin:0 0 6px 12px;font-size:15px;line-height:1.5;color:#333333;">&bull; {{ bullet | escape_keep_bold }}</p>
{% endfor %}
{% else %}
<p style="margin:0;font-size:15px;line-height:1.5;color:#333333;"><b>What's next:</b> {{ section.whats_next | escape_keep_bold }}</p>
{% endif %}
</td></tr>
{% endfor %}
<tr><td style="padding:0 24px 24px;">
<p style="margin:0 0 8px;font-size:13px;font-weight:bold;letter-spacing:1px;color:#059669;">THE SIGNALS</p>
{% for hit in signals %}
<p style="margin:0 0 8px;font-size:14px;line-height:1.5;color:#333333;">{{ forloop.index }}. <b>{{ hit.headline | escape }}</b> {{ hit.blurb | escape }}</p>
{% endfor %}
</td></tr>
<tr><td style="padding:16px 24px;border-top:1px solid #dddddd;">
<p style="margin:0;font-size:12px;color:#999999;">You are receiving this because you subscribed to Signal. {unsubscribe_url}</p>
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`

// sectionKickers maps Signal sections to their display kickers.
var sectionKickers = map[string]string{
	"top_story":       "TOP STORY",
	"ai_at_work":      "AI AT WORK",
	"emerging_moves":  "EMERGING MOVES",
	"beyond_business": "BEYOND BUSINESS",
}

// bulletLines splits decoration text that marks bullets with "•" into
// individual items. Returns nil when the text carries no bullets, in
// which case the template renders it inline.
func bulletLines(text string) []string {
	if !strings.Contains(text, "•") {
		return nil
	}
	var out []string
	for _, part := range strings.Split(text, "•") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RenderSignal compiles the Signal variant. Long-form sections come in
// slot order; quick-hits are the five signal entries.
func (c *Compiler) RenderSignal(issue *store.Issue, stories []store.IssueStory) (string, error) {
	var sections []map[string]interface{}
	var signals []map[string]interface{}

	for _, st := range stories {
		if st.Section == "signal" || st.SignalBlurb != "" {
			signals = append(signals, map[string]interface{}{
				"headline": st.Headline,
				"blurb":    st.SignalBlurb,
			})
			continue
		}
		kicker := sectionKickers[st.Section]
		if kicker == "" {
			kicker = strings.ToUpper(strings.ReplaceAll(st.Section, "_", " "))
		}
		var paragraphs []string
		for _, p := range strings.Split(st.Lead, "\n\n") {
			p = strings.TrimSpace(p)
			if p != "" {
				paragraphs = append(paragraphs, p)
			}
		}
		sections = append(sections, map[string]interface{}{
			"kicker":          kicker,
			"headline":        st.Headline,
			"one_liner":       st.OneLiner,
			"lead_paragraphs": paragraphs,
			"why_it_matters":  st.WhyItMatters,
			"why_bullets":     bulletLines(st.WhyItMatters),
			"whats_next":      st.WhatsNext,
			"next_bullets":    bulletLines(st.WhatsNext),
		})
	}

	ctx := map[string]interface{}{
		"issue_date": issue.IssueDate.Format("Monday, January 2, 2006"),
		"sections":   sections,
		"signals":    signals,
	}

	html, err := c.templates.Render("signal", signalTemplate, ctx)
	if err != nil {
		return "", fmt.Errorf("rendering issue %s: %w", issue.IssueID, err)
	}
	return html, nil
}

// Render compiles the variant-appropriate rich HTML for an issue.
func (c *Compiler) Render(v story.Variant, issue *store.Issue, stories []store.IssueStory) (string, error) {
	if v == story.VariantSignal {
		return c.RenderSignal(issue, stories)
	}
	return c.RenderPivot5(issue, stories)
}
