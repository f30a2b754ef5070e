package story

import (
	"fmt"
	"time"
)

// Variant identifies which newsletter the pipeline is producing.
type Variant string

const (
	VariantPivot5 Variant = "pivot5"
	VariantSignal Variant = "signal"
)

// Label prefix per variant, used to build human issue IDs.
func (v Variant) labelPrefix() string {
	if v == VariantSignal {
		return "Signal"
	}
	return "Pivot 5"
}

// DefaultTimezone is the civil clock for all editorial date rules.
const DefaultTimezone = "America/New_York"

// CivilClock wraps the configured editorial timezone. All weekday and
// freshness decisions go through it; UTC-only arithmetic is a bug here.
type CivilClock struct {
	loc *time.Location
	now func() time.Time
}

// NewCivilClock loads the named timezone, defaulting to America/New_York.
func NewCivilClock(name string) (*CivilClock, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return &CivilClock{loc: loc, now: time.Now}, nil
}

// SetNow overrides the wall clock. Tests only.
func (c *CivilClock) SetNow(now func() time.Time) {
	c.now = now
}

// Now returns the current civil time.
func (c *CivilClock) Now() time.Time {
	return c.now().In(c.loc)
}

// Location returns the civil timezone.
func (c *CivilClock) Location() *time.Location {
	return c.loc
}

// NextIssueDate returns the publication date for an issue planned now.
// Publishing days are Mon-Fri: a Friday run targets Monday (+3), a
// Saturday run targets Monday (+2), everything else targets tomorrow.
func (c *CivilClock) NextIssueDate() time.Time {
	now := c.Now()
	switch now.Weekday() {
	case time.Friday:
		return now.AddDate(0, 0, 3)
	case time.Saturday:
		return now.AddDate(0, 0, 2)
	default:
		return now.AddDate(0, 0, 1)
	}
}

// IssueLabel builds the human issue ID for a variant and date, e.g.
// "Pivot 5 - Jan 02" or "Signal - Jan 02".
func IssueLabel(v Variant, date time.Time) string {
	return fmt.Sprintf("%s - %s", v.labelPrefix(), date.Format("Jan 02"))
}

// pivot5BaseFreshness is hours of lookback per slot for Pivot 5.
var pivot5BaseFreshness = map[int]int{
	1: 24,
	2: 48,
	3: 7 * 24,
	4: 48,
	5: 7 * 24,
}

// signalFreshness is hours of lookback per slot for Signal. The top
// story stays at 24h even on Mondays; no weekend extension.
var signalFreshness = map[int]int{
	1: 24,
	2: 72,
	3: 72,
	4: 72,
	5: 72,
}

// SlotFreshnessHours returns the candidate lookback window for a slot.
// For Pivot 5, runs on Sunday or Monday extend any base window of 48h
// or less to 72h, because weekend news volume is thin.
func (c *CivilClock) SlotFreshnessHours(v Variant, slot int) int {
	if v == VariantSignal {
		if h, ok := signalFreshness[slot]; ok {
			return h
		}
		return 72
	}

	base, ok := pivot5BaseFreshness[slot]
	if !ok {
		base = 48
	}
	wd := c.Now().Weekday()
	if (wd == time.Sunday || wd == time.Monday) && base <= 48 {
		return 72
	}
	return base
}

// SignalSlotOrder is the Signal selection sequence: the four long-form
// sections first, the five quick-hits last so they can dodge everything
// already chosen.
var SignalSlotOrder = []int{1, 3, 4, 5, 2}

// Pivot5SlotOrder is the plain 1..5 sequence.
var Pivot5SlotOrder = []int{1, 2, 3, 4, 5}

// SlotOrder returns the selection order for a variant.
func SlotOrder(v Variant) []int {
	if v == VariantSignal {
		return SignalSlotOrder
	}
	return Pivot5SlotOrder
}

// SignalSectionForSlot maps a Signal source slot to its section key.
func SignalSectionForSlot(slot int) string {
	switch slot {
	case 1:
		return "top_story"
	case 3:
		return "ai_at_work"
	case 4:
		return "emerging_moves"
	case 5:
		return "beyond_business"
	default:
		return "signal"
	}
}
