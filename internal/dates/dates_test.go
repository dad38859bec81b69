package dates

import (
	"errors"
	"testing"
	"time"
)

func testCalendar() *Calendar {
	return NewCalendar(time.UTC, IsraeliHolidays(time.UTC))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve_RelativeExpressions(t *testing.T) {
	t.Parallel()

	// Monday.
	ref := date(2025, time.September, 1)
	c := testCalendar()

	cases := []struct {
		expr string
		from time.Time
		to   time.Time
	}{
		{"today", date(2025, time.September, 1), date(2025, time.September, 1)},
		{"yesterday", date(2025, time.August, 31), date(2025, time.August, 31)},
		{"this week", date(2025, time.August, 31), date(2025, time.September, 6)},
		{"last week", date(2025, time.August, 24), date(2025, time.August, 30)},
		{"this month", date(2025, time.September, 1), date(2025, time.September, 30)},
		{"last month", date(2025, time.August, 1), date(2025, time.August, 31)},
		{"this quarter", date(2025, time.July, 1), date(2025, time.September, 30)},
		{"last quarter", date(2025, time.April, 1), date(2025, time.June, 30)},
		{"this year", date(2025, time.January, 1), date(2025, time.December, 31)},
		{"last year", date(2024, time.January, 1), date(2024, time.December, 31)},
		{"last 7 days", date(2025, time.August, 26), date(2025, time.September, 1)},
		{"last 1 day", date(2025, time.September, 1), date(2025, time.September, 1)},
		{"2025-03-15", date(2025, time.March, 15), date(2025, time.March, 15)},
		{"2025-01-01..2025-01-31", date(2025, time.January, 1), date(2025, time.January, 31)},
		{"august", date(2025, time.August, 1), date(2025, time.August, 31)},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.expr, func(t *testing.T) {
			t.Parallel()
			got, err := c.Resolve(tc.expr, ref)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tc.expr, err)
			}
			if !got.From.Equal(tc.from) || !got.To.Equal(tc.to) {
				t.Errorf("Resolve(%q) = [%s, %s], want [%s, %s]", tc.expr,
					got.From.Format("2006-01-02"), got.To.Format("2006-01-02"),
					tc.from.Format("2006-01-02"), tc.to.Format("2006-01-02"))
			}
		})
	}
}

func TestResolve_LastMonthAcrossYearBoundary(t *testing.T) {
	t.Parallel()

	c := testCalendar()
	got, err := c.Resolve("last month", date(2025, time.January, 15))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !got.From.Equal(date(2024, time.December, 1)) || !got.To.Equal(date(2024, time.December, 31)) {
		t.Errorf("got [%s, %s], want December 2024",
			got.From.Format("2006-01-02"), got.To.Format("2006-01-02"))
	}
}

func TestResolve_HolidayRelative(t *testing.T) {
	t.Parallel()

	c := testCalendar()
	ref := date(2025, time.November, 1)

	// Most recent yom kippur before the reference is 2025-10-02.
	got, err := c.Resolve("before yom kippur", ref)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !got.From.IsZero() {
		t.Errorf("lower bound should be unbounded, got %s", got.From.Format("2006-01-02"))
	}
	if !got.To.Equal(date(2025, time.October, 1)) {
		t.Errorf("To = %s, want the eve 2025-10-01", got.To.Format("2006-01-02"))
	}

	got, err = c.Resolve("since sukkot", ref)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	// Sukkot 2025 runs Oct 7-13; "since" starts the day after it ends.
	if !got.From.Equal(date(2025, time.October, 14)) || !got.To.Equal(ref) {
		t.Errorf("got [%s, %s]", got.From.Format("2006-01-02"), got.To.Format("2006-01-02"))
	}

	got, err = c.Resolve("around passover", ref)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !got.From.Equal(date(2025, time.April, 12)) || !got.To.Equal(date(2025, time.April, 20)) {
		t.Errorf("got [%s, %s], want eve through day after",
			got.From.Format("2006-01-02"), got.To.Format("2006-01-02"))
	}
}

func TestResolve_LastHolidayGeneric(t *testing.T) {
	t.Parallel()

	c := testCalendar()
	// Most recent holiday before the reference is sukkot, Oct 7-13.
	ref := date(2025, time.November, 1)

	got, err := c.Resolve("before the last holiday", ref)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !got.From.IsZero() {
		t.Errorf("lower bound should be unbounded, got %s", got.From.Format("2006-01-02"))
	}
	if !got.To.Equal(date(2025, time.October, 6)) {
		t.Errorf("To = %s, want the eve 2025-10-06", got.To.Format("2006-01-02"))
	}

	got, err = c.Resolve("since last holiday", ref)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !got.From.Equal(date(2025, time.October, 14)) || !got.To.Equal(ref) {
		t.Errorf("got [%s, %s]", got.From.Format("2006-01-02"), got.To.Format("2006-01-02"))
	}

	got, err = c.Resolve("the last holiday", ref)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !got.From.Equal(date(2025, time.October, 6)) || !got.To.Equal(date(2025, time.October, 14)) {
		t.Errorf("got [%s, %s], want eve through day after",
			got.From.Format("2006-01-02"), got.To.Format("2006-01-02"))
	}

	empty := NewCalendar(time.UTC, nil)
	if _, err := empty.Resolve("before the last holiday", ref); err == nil {
		t.Error("empty holiday table: want error, got none")
	}
}

func TestResolve_Ambiguous(t *testing.T) {
	t.Parallel()

	c := testCalendar()

	// A month name later than the reference month could mean last year's or
	// the upcoming one.
	_, err := c.Resolve("november", date(2025, time.June, 1))
	if !errors.Is(err, ErrAmbiguousDate) {
		t.Errorf("future month: got %v, want ErrAmbiguousDate", err)
	}

	// Before any table occurrence has passed, a holiday with several future
	// occurrences is ambiguous.
	_, err = c.Resolve("around purim", date(2024, time.January, 1))
	if !errors.Is(err, ErrAmbiguousDate) {
		t.Errorf("future holiday: got %v, want ErrAmbiguousDate", err)
	}
}

func TestResolve_Unrecognized(t *testing.T) {
	t.Parallel()

	c := testCalendar()
	for _, expr := range []string{"", "whenever", "last -3 days", "2025-13-45", "before flag day"} {
		if _, err := c.Resolve(expr, date(2025, time.September, 1)); err == nil {
			t.Errorf("Resolve(%q) succeeded, want error", expr)
		}
	}
}

func TestHolidayOn(t *testing.T) {
	t.Parallel()

	c := testCalendar()
	h, ok := c.HolidayOn(date(2025, time.October, 10))
	if !ok || h.Name != "sukkot" {
		t.Errorf("mid-sukkot lookup = %v %v, want sukkot", h, ok)
	}
	if _, ok := c.HolidayOn(date(2025, time.November, 3)); ok {
		t.Error("ordinary day reported as holiday")
	}
}

func TestIsHolidayEve(t *testing.T) {
	t.Parallel()

	c := testCalendar()
	if !c.IsHolidayEve(date(2025, time.October, 1)) {
		t.Error("erev yom kippur not detected")
	}
	if c.IsHolidayEve(date(2025, time.October, 2)) {
		t.Error("yom kippur itself flagged as eve")
	}
}
