package story

import (
	"testing"
	"time"
)

func clockAt(t *testing.T, value string) *CivilClock {
	t.Helper()
	c, err := NewCivilClock(DefaultTimezone)
	if err != nil {
		t.Fatalf("NewCivilClock: %v", err)
	}
	parsed, err := time.ParseInLocation("2006-01-02 15:04", value, c.Location())
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	c.SetNow(func() time.Time { return parsed })
	return c
}

func TestNextIssueDateSkipsWeekend(t *testing.T) {
	tests := []struct {
		now      string // civil time, 2026-01-02 is a Friday
		wantDate string
	}{
		{"2026-01-02 21:25", "2026-01-05"}, // Friday -> Monday
		{"2026-01-03 10:00", "2026-01-05"}, // Saturday -> Monday
		{"2026-01-04 10:00", "2026-01-05"}, // Sunday -> Monday
		{"2026-01-05 10:00", "2026-01-06"}, // Monday -> Tuesday
		{"2026-01-07 23:50", "2026-01-08"}, // Wednesday -> Thursday
	}
	for _, tt := range tests {
		c := clockAt(t, tt.now)
		got := c.NextIssueDate().Format("2006-01-02")
		if got != tt.wantDate {
			t.Errorf("NextIssueDate at %s = %s, want %s", tt.now, got, tt.wantDate)
		}
	}
}

func TestIssueLabel(t *testing.T) {
	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if got := IssueLabel(VariantPivot5, date); got != "Pivot 5 - Jan 05" {
		t.Errorf("IssueLabel pivot5 = %q", got)
	}
	if got := IssueLabel(VariantSignal, date); got != "Signal - Jan 05" {
		t.Errorf("IssueLabel signal = %q", got)
	}
}

func TestSlotFreshnessWeekendExtension(t *testing.T) {
	// 2026-01-04 is a Sunday, 2026-01-07 a Wednesday.
	sunday := clockAt(t, "2026-01-04 06:00")
	wednesday := clockAt(t, "2026-01-07 06:00")

	tests := []struct {
		clock *CivilClock
		v     Variant
		slot  int
		want  int
	}{
		{sunday, VariantPivot5, 1, 72},       // 24h base extended
		{sunday, VariantPivot5, 2, 72},       // 48h base extended
		{sunday, VariantPivot5, 3, 7 * 24},   // 7d base untouched
		{wednesday, VariantPivot5, 1, 24},    // no extension midweek
		{wednesday, VariantPivot5, 4, 48},    // no extension midweek
		{sunday, VariantSignal, 1, 24},       // Signal top story never extends
		{sunday, VariantSignal, 3, 72},
	}
	for _, tt := range tests {
		got := tt.clock.SlotFreshnessHours(tt.v, tt.slot)
		if got != tt.want {
			t.Errorf("SlotFreshnessHours(%s, slot %d) = %d, want %d", tt.v, tt.slot, got, tt.want)
		}
	}
}

func TestSlotOrder(t *testing.T) {
	pivot := SlotOrder(VariantPivot5)
	if len(pivot) != 5 || pivot[0] != 1 || pivot[4] != 5 {
		t.Errorf("pivot5 slot order = %v", pivot)
	}
	signal := SlotOrder(VariantSignal)
	want := []int{1, 3, 4, 5, 2}
	for i, s := range want {
		if signal[i] != s {
			t.Fatalf("signal slot order = %v, want %v", signal, want)
		}
	}
}
