package compile

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Deliverable rewrites rich HTML into the deliverability variant: no
// images, links stripped to their text (the unsubscribe placeholder
// excepted), a single safe font, and the brand name replaced.
func (c *Compiler) Deliverable(richHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(richHTML))
	if err != nil {
		return "", fmt.Errorf("parsing rich HTML: %w", err)
	}

	doc.Find("img").Remove()

	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if strings.Contains(href, "{unsubscribe_url}") {
			return
		}
		sel.ReplaceWithHtml(sel.Text())
	})

	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		style, _ := sel.Attr("style")
		sel.SetAttr("style", rewriteFontFamily(style))
	})

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("serializing deliverable HTML: %w", err)
	}
	return strings.ReplaceAll(out, c.brand, c.deliverableBrand), nil
}

// rewriteFontFamily forces every font-family declaration to Arial.
func rewriteFontFamily(style string) string {
	parts := strings.Split(style, ";")
	for i, part := range parts {
		if strings.Contains(strings.ToLower(part), "font-family") {
			parts[i] = "font-family:Arial,sans-serif"
		}
	}
	return strings.Join(parts, ";")
}
