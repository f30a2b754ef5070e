package compile

import (
	"fmt"

	"github.com/pivotmedia/newsroom/internal/store"
)

// pivot5Template is the rich Pivot 5 layout: header, five story blocks
// with image/label/headline/dek/bullets, and a footer carrying the
// unsubscribe placeholder.
const pivot5Template = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{ brand | escape }}</title>
</head>
<body style="margin:0;padding:0;background-color:#f4f4f5;font-family:Helvetica,Arial,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color:#f4f4f5;">
<tr><td align="center" style="padding:24px 0;">
<table role="presentation" width="636" cellpadding="0" cellspacing="0" style="max-width:636px;background-color:#ffffff;">
<tr><td style="padding:32px 32px 16px;">
<h1 style="margin:0;font-size:28px;color:#111827;">{{ brand | escape }}</h1>
<p style="margin:8px 0 0;font-size:14px;color:#6b7280;">{{ issue_date }}</p>
</td></tr>
{% for story in stories %}
<tr><td style="padding:16px 32px;">
{% if story.image_url != "" %}
<img src="{{ story.image_url }}" alt="" width="572" style="display:block;width:100%;height:auto;border-radius:8px;margin-bottom:12px;">
{% endif %}
<p style="margin:0 0 4px;font-size:12px;font-weight:bold;letter-spacing:1px;color:#dc2626;">{{ story.label | default: "ENTERPRISE" | escape }}</p>
<h2 style="margin:0 0 8px;font-size:20px;color:#111827;">{{ forloop.index }}. {{ story.headline | escape }}</h2>
<p style="margin:0 0 12px;font-size:15px;color:#374151;">{{ story.dek | escape }}</p>
<ul style="margin:0;padding-left:20px;">
{% for bullet in story.bullets %}
<li style="margin:0 0 6px;font-size:14px;color:#374151;">{{ bullet | escape_keep_bold }}</li>
{% endfor %}
</ul>
</td></tr>
{% endfor %}
<tr><td style="padding:24px 32px;border-top:1px solid #e5e7eb;">
<p style="margin:0;font-size:12px;color:#9ca3af;">You are receiving this because you subscribed to {{ brand | escape }}.<br>
<a href="{unsubscribe_url}" style="color:#9ca3af;">Unsubscribe</a></p>
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`

// RenderPivot5 compiles the rich Pivot 5 variant for an issue.
func (c *Compiler) RenderPivot5(issue *store.Issue, stories []store.IssueStory) (string, error) {
	storyCtx := make([]map[string]interface{}, 0, len(stories))
	for _, st := range stories {
		bullets := make([]string, 0, 3)
		for _, b := range st.Bullets {
			if b != "" {
				bullets = append(bullets, b)
			}
		}
		storyCtx = append(storyCtx, map[string]interface{}{
			"headline":  st.Headline,
			"dek":       st.Dek,
			"bullets":   bullets,
			"label":     st.Label,
			"image_url": st.ImageURL,
		})
	}

	ctx := map[string]interface{}{
		"brand":      c.brand,
		"issue_date": issue.IssueDate.Format("Monday, January 2, 2006"),
		"stories":    storyCtx,
	}

	html, err := c.templates.Render("pivot5", pivot5Template, ctx)
	if err != nil {
		return "", fmt.Errorf("rendering issue %s: %w", issue.IssueID, err)
	}
	return html, nil
}
