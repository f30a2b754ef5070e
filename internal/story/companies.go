package story

import "strings"

// DefaultTier1Companies is the deterministic slot-1 vocabulary: any
// headline naming one of these is slot-1 eligible regardless of what
// the classifier says.
var DefaultTier1Companies = []string{"openai", "google", "meta", "nvidia"}

// CompanyFilter matches headlines against a configured vocabulary of
// Tier-1 company names, case-insensitively.
type CompanyFilter struct {
	names []string
}

// NewCompanyFilter builds a filter; an empty vocabulary falls back to
// the defaults.
func NewCompanyFilter(names []string) *CompanyFilter {
	if len(names) == 0 {
		names = DefaultTier1Companies
	}
	lowered := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			lowered = append(lowered, n)
		}
	}
	return &CompanyFilter{names: lowered}
}

// Match returns the first vocabulary company the headline mentions, or
// "" when none do.
func (f *CompanyFilter) Match(headline string) string {
	lower := strings.ToLower(headline)
	for _, name := range f.names {
		if strings.Contains(lower, name) {
			return name
		}
	}
	return ""
}

// NormalizeHeadline lowers and trims a headline for dedup comparisons.
func NormalizeHeadline(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
