package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// SelectionResult is the model's pick for one slot or section.
type SelectionResult struct {
	SelectedID       string `json:"selected_id"`
	SelectedPivotID  string `json:"selected_pivotId"`
	SelectedHeadline string `json:"selected_headline"`
	SelectedSource   string `json:"selected_source"`
	SelectedCompany  string `json:"selected_company"`
	Reasoning        string `json:"reasoning"`
}

// SignalPick is one quick-hit selection inside a signals batch.
type SignalPick struct {
	SelectedID       string `json:"selected_id"`
	SelectedPivotID  string `json:"selected_pivotId"`
	SelectedHeadline string `json:"selected_headline"`
	SelectedSource   string `json:"selected_source"`
	Blurb            string `json:"blurb"`
}

// SignalsResult is the batch response for the five quick-hit picks.
type SignalsResult struct {
	Signals []SignalPick `json:"signals"`
}

// Score is the model's interest grading of one ingested article.
type Score struct {
	InterestScore float64 `json:"interest_score"`
	Topic         string  `json:"topic"`
	Sentiment     string  `json:"sentiment"`
}

// QuickHit is the decoration package for one Signal quick-hit.
type QuickHit struct {
	Headline    string `json:"headline"`
	SignalBlurb string `json:"signal_blurb"`
}

// EmphasisResult is the response of the bullet-bolding pass.
type EmphasisResult struct {
	Bullets []string `json:"bullets"`
}

// Decoration is the model's editorial package for one Pivot 5 story.
type Decoration struct {
	Headline    string    `json:"headline"`
	Dek         string    `json:"dek"`
	Bullets     [3]string `json:"-"`
	RawBullets  []string  `json:"bullets"`
	Label       string    `json:"label"`
	ImagePrompt string    `json:"image_prompt"`
}

// SignalDecoration is the editorial package for one Signal long-form
// section.
type SignalDecoration struct {
	Headline     string `json:"headline"`
	OneLiner     string `json:"one_liner"`
	Lead         string `json:"lead"`
	WhyItMatters string `json:"why_it_matters"`
	WhatsNext    string `json:"whats_next"`
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// StripFences removes a markdown code fence wrapper if the model added
// one, returning the inner text.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// firstJSONObject extracts the first balanced {...} block, tolerating
// prose the model wrapped around it.
func firstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

// ParseJSON decodes a model response into target, stripping code
// fences and surrounding prose first.
func ParseJSON(raw string, target interface{}) error {
	cleaned := StripFences(raw)
	obj := firstJSONObject(cleaned)
	if obj == "" {
		return fmt.Errorf("no JSON object in model response: %s", truncate(cleaned, 200))
	}
	if err := json.Unmarshal([]byte(obj), target); err != nil {
		return fmt.Errorf("parsing model response: %w", err)
	}
	return nil
}

var selectedIDRe = regexp.MustCompile(`"selected_id"\s*:\s*"([^"]+)"`)

// ParseSelection decodes a selection response, falling back to a regex
// scan for selected_id when strict JSON parsing fails.
func ParseSelection(raw string) (*SelectionResult, error) {
	var result SelectionResult
	if err := ParseJSON(raw, &result); err != nil {
		if m := selectedIDRe.FindStringSubmatch(raw); m != nil {
			return &SelectionResult{SelectedID: m[1]}, nil
		}
		return nil, err
	}
	if result.SelectedID == "" {
		return nil, fmt.Errorf("selection response has no selected_id")
	}
	return &result, nil
}

// ParseDecoration decodes a Pivot 5 decoration response and normalizes
// the bullet list to exactly three entries.
func ParseDecoration(raw string) (*Decoration, error) {
	var d Decoration
	if err := ParseJSON(raw, &d); err != nil {
		return nil, err
	}
	for i := 0; i < 3 && i < len(d.RawBullets); i++ {
		d.Bullets[i] = strings.TrimSpace(d.RawBullets[i])
	}
	return &d, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
