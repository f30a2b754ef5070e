package llm

import (
	"testing"
)

func TestParseSelectionWithFences(t *testing.T) {
	raw := "```json\n{\"selected_id\": \"rec42\", \"selected_pivotId\": \"abc123\", \"selected_headline\": \"OpenAI ships GPT-5\", \"selected_source\": \"Reuters\", \"selected_company\": \"openai\", \"reasoning\": \"biggest launch of the day\"}\n```"
	got, err := ParseSelection(raw)
	if err != nil {
		t.Fatalf("ParseSelection: %v", err)
	}
	if got.SelectedID != "rec42" {
		t.Errorf("SelectedID = %q", got.SelectedID)
	}
	if got.SelectedPivotID != "abc123" {
		t.Errorf("SelectedPivotID = %q", got.SelectedPivotID)
	}
	if got.SelectedCompany != "openai" {
		t.Errorf("SelectedCompany = %q", got.SelectedCompany)
	}
}

func TestParseSelectionSurroundingProse(t *testing.T) {
	raw := `Here is my pick:
{"selected_id": "rec7", "selected_headline": "Nvidia earnings"}
Let me know if you need anything else.`
	got, err := ParseSelection(raw)
	if err != nil {
		t.Fatalf("ParseSelection: %v", err)
	}
	if got.SelectedID != "rec7" {
		t.Errorf("SelectedID = %q", got.SelectedID)
	}
}

func TestParseSelectionRegexFallback(t *testing.T) {
	// Malformed JSON (trailing comma inside a broken structure) should
	// still yield the id via the regex fallback.
	raw := `{"selected_id": "rec9", "reasoning": "unterminated`
	got, err := ParseSelection(raw)
	if err != nil {
		t.Fatalf("ParseSelection: %v", err)
	}
	if got.SelectedID != "rec9" {
		t.Errorf("SelectedID = %q", got.SelectedID)
	}
}

func TestParseSelectionNoID(t *testing.T) {
	if _, err := ParseSelection(`{"reasoning": "nothing fit"}`); err == nil {
		t.Fatal("expected error when selected_id is absent")
	}
}

func TestParseDecorationNormalizesBullets(t *testing.T) {
	raw := `{"headline": "H", "dek": "D", "bullets": [" one ", "two", "three", "four"], "label": "RESEARCH", "image_prompt": "abstract"}`
	got, err := ParseDecoration(raw)
	if err != nil {
		t.Fatalf("ParseDecoration: %v", err)
	}
	if got.Bullets != [3]string{"one", "two", "three"} {
		t.Errorf("Bullets = %v", got.Bullets)
	}
	if got.Label != "RESEARCH" {
		t.Errorf("Label = %q", got.Label)
	}
}

func TestParseJSONSignals(t *testing.T) {
	raw := "```\n{\"signals\": [{\"selected_id\": \"a\", \"blurb\": \"b1\"}, {\"selected_id\": \"b\", \"blurb\": \"b2\"}]}\n```"
	var result SignalsResult
	if err := ParseJSON(raw, &result); err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if len(result.Signals) != 2 || result.Signals[1].Blurb != "b2" {
		t.Errorf("Signals = %+v", result.Signals)
	}
}

func TestStripFencesPassthrough(t *testing.T) {
	if got := StripFences(`{"a": 1}`); got != `{"a": 1}` {
		t.Errorf("StripFences = %q", got)
	}
}
