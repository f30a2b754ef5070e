// Package compile turns a decorated Issue into sendable email HTML
// using Liquid templates. It produces a rich variant, a links-free
// Signal variant, and a deliverability variant for reputation-sensitive
// sends.
package compile

import (
	"fmt"
	"html"
	"log"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// TemplateService handles Liquid template rendering with caching
type TemplateService struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateService creates a new template service with custom filters
func NewTemplateService() *TemplateService {
	engine := liquid.NewEngine()

	ts := &TemplateService{engine: engine}
	ts.registerCustomFilters()
	return ts
}

func (ts *TemplateService) registerCustomFilters() {
	// Default value filter: {{ label | default: "ENTERPRISE" }}
	ts.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// HTML escape that keeps <b> emphasis: {{ bullet | escape_keep_bold }}
	ts.engine.RegisterFilter("escape_keep_bold", EscapeKeepBold)

	// Plain HTML escape: {{ headline | escape }}
	ts.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	// Truncate with ellipsis: {{ dek | truncate: 200 }}
	ts.engine.RegisterFilter("truncate", func(s string, length int) string {
		if len(s) <= length {
			return s
		}
		if length <= 3 {
			return s[:length]
		}
		return s[:length-3] + "..."
	})
}

// Render processes a template with the given context, caching parses
// by key.
func (ts *TemplateService) Render(cacheKey string, templateStr string, ctx map[string]interface{}) (string, error) {
	if cacheKey != "" {
		if cached, ok := ts.cache.Load(cacheKey); ok {
			tpl := cached.(*liquid.Template)
			return tpl.RenderString(ctx)
		}
	}

	tpl, err := ts.engine.ParseString(templateStr)
	if err != nil {
		log.Printf("[Compile] template parse error: %v", err)
		return "", err
	}

	if cacheKey != "" {
		ts.cache.Store(cacheKey, tpl)
	}

	result, err := tpl.RenderString(ctx)
	if err != nil {
		log.Printf("[Compile] template render error: %v", err)
		return "", err
	}
	return result, nil
}

// EscapeKeepBold HTML-escapes text while preserving <b>/</b> markers
// added by the emphasis pass.
func EscapeKeepBold(s string) string {
	const (
		openPlaceholder  = "\x00BOLD-OPEN\x00"
		closePlaceholder = "\x00BOLD-CLOSE\x00"
	)
	s = strings.ReplaceAll(s, "<b>", openPlaceholder)
	s = strings.ReplaceAll(s, "</b>", closePlaceholder)
	s = html.EscapeString(s)
	s = strings.ReplaceAll(s, openPlaceholder, "<b>")
	s = strings.ReplaceAll(s, closePlaceholder, "</b>")
	return s
}
