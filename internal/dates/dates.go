// Package dates resolves free-form date expressions ("last month", "before
// yom kippur") into concrete inclusive date ranges against a calendar with
// a holiday table. Resolution is pure calendar arithmetic on a caller-
// supplied reference date, so results are reproducible in tests.
package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrAmbiguousDate reports an expression that resolves to multiple
// non-overlapping candidate ranges with no disambiguating context. Callers
// surface it rather than guess.
var ErrAmbiguousDate = errors.New("ambiguous date expression")

// Range is an inclusive date range at day granularity.
type Range struct {
	From time.Time
	To   time.Time
}

// Holiday is one dated holiday occurrence.
type Holiday struct {
	// Name is the lookup key, lowercase ASCII ("yom kippur").
	Name string

	// Date is the holiday date at midnight in the calendar's location.
	Date time.Time

	// Days is the holiday's length (1 for a single-day holiday).
	Days int
}

// Calendar resolves expressions relative to a location and holiday table.
type Calendar struct {
	loc      *time.Location
	holidays []Holiday

	// weekStart is the first day of the week; Israeli weeks start Sunday.
	weekStart time.Weekday
}

// NewCalendar builds a Calendar. A nil location defaults to UTC; the
// holiday table may be empty, disabling holiday-relative expressions.
func NewCalendar(loc *time.Location, holidays []Holiday) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc, holidays: holidays, weekStart: time.Sunday}
}

var (
	lastNDaysRe = regexp.MustCompile(`^last (\d+) days?$`)
	isoRangeRe  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s*\.\.\s*(\d{4}-\d{2}-\d{2})$`)
	isoDateRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	holidayRe   = regexp.MustCompile(`^(before|after|since|around) (?:the )?(.+)$`)
)

// Resolve turns expr into a concrete inclusive range relative to ref.
// Supported forms: today, yesterday, this/last week, this/last month,
// this/last quarter, this/last year, "last N days", ISO dates and
// "YYYY-MM-DD..YYYY-MM-DD" ranges, month names, and holiday-relative
// expressions ("before yom kippur", "around passover").
func (c *Calendar) Resolve(expr string, ref time.Time) (Range, error) {
	e := strings.ToLower(strings.TrimSpace(expr))
	if e == "" {
		return Range{}, fmt.Errorf("dates: empty expression")
	}
	ref = c.midnight(ref)

	switch e {
	case "today":
		return Range{From: ref, To: ref}, nil
	case "yesterday":
		d := ref.AddDate(0, 0, -1)
		return Range{From: d, To: d}, nil
	case "this week":
		from := c.weekFloor(ref)
		return Range{From: from, To: from.AddDate(0, 0, 6)}, nil
	case "last week":
		from := c.weekFloor(ref).AddDate(0, 0, -7)
		return Range{From: from, To: from.AddDate(0, 0, 6)}, nil
	case "this month":
		from := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, c.loc)
		return Range{From: from, To: from.AddDate(0, 1, -1)}, nil
	case "last month":
		from := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, c.loc).AddDate(0, -1, 0)
		return Range{From: from, To: from.AddDate(0, 1, -1)}, nil
	case "this quarter":
		from := c.quarterFloor(ref)
		return Range{From: from, To: from.AddDate(0, 3, -1)}, nil
	case "last quarter":
		from := c.quarterFloor(ref).AddDate(0, -3, 0)
		return Range{From: from, To: from.AddDate(0, 3, -1)}, nil
	case "this year":
		from := time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, c.loc)
		return Range{From: from, To: from.AddDate(1, 0, -1)}, nil
	case "last year":
		from := time.Date(ref.Year()-1, time.January, 1, 0, 0, 0, 0, c.loc)
		return Range{From: from, To: from.AddDate(1, 0, -1)}, nil
	}

	if m := lastNDaysRe.FindStringSubmatch(e); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return Range{}, fmt.Errorf("dates: invalid day count in %q", expr)
		}
		return Range{From: ref.AddDate(0, 0, -n+1), To: ref}, nil
	}

	if m := isoRangeRe.FindStringSubmatch(e); m != nil {
		from, err1 := time.ParseInLocation("2006-01-02", m[1], c.loc)
		to, err2 := time.ParseInLocation("2006-01-02", m[2], c.loc)
		if err1 != nil || err2 != nil {
			return Range{}, fmt.Errorf("dates: invalid ISO range %q", expr)
		}
		if to.Before(from) {
			return Range{}, fmt.Errorf("dates: range %q ends before it starts", expr)
		}
		return Range{From: from, To: to}, nil
	}

	if isoDateRe.MatchString(e) {
		d, err := time.ParseInLocation("2006-01-02", e, c.loc)
		if err != nil {
			return Range{}, fmt.Errorf("dates: invalid date %q", expr)
		}
		return Range{From: d, To: d}, nil
	}

	if month, ok := monthNames[e]; ok {
		return c.resolveMonth(month, ref)
	}

	if m := holidayRe.FindStringSubmatch(e); m != nil {
		return c.resolveHolidayRelative(m[1], m[2], ref)
	}
	if e == "last holiday" || e == "the last holiday" {
		return c.resolveHolidayRelative("around", "last holiday", ref)
	}
	if occ := c.occurrences(e); occ != nil {
		return c.resolveHolidayRelative("around", e, ref)
	}

	return Range{}, fmt.Errorf("dates: unrecognized expression %q", expr)
}

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// resolveMonth maps a bare month name to a full month range. The current
// month and past months resolve within ref's year; a future month is
// ambiguous (last year's or the upcoming one) and is refused.
func (c *Calendar) resolveMonth(m time.Month, ref time.Time) (Range, error) {
	if m > ref.Month() {
		return Range{}, fmt.Errorf("dates: month %s relative to %s: %w",
			m, ref.Format("2006-01-02"), ErrAmbiguousDate)
	}
	from := time.Date(ref.Year(), m, 1, 0, 0, 0, 0, c.loc)
	return Range{From: from, To: from.AddDate(0, 1, -1)}, nil
}

// resolveHolidayRelative handles "<before|after|since|around> <holiday>".
// The generic name "last holiday" selects the most recent table occurrence
// on or before ref regardless of name. For a named holiday the occurrence is
// likewise the most recent one on or before ref; if the name never occurs in
// the table the expression is unrecognized, and if no occurrence is on or
// before ref but several future ones exist the expression is ambiguous.
func (c *Calendar) resolveHolidayRelative(rel, name string, ref time.Time) (Range, error) {
	var h Holiday
	if name == "last holiday" {
		var ok bool
		h, ok = c.lastHoliday(ref)
		if !ok {
			return Range{}, fmt.Errorf("dates: no holiday on or before %s in the calendar",
				ref.Format("2006-01-02"))
		}
	} else {
		occ := c.occurrences(name)
		if len(occ) == 0 {
			return Range{}, fmt.Errorf("dates: unknown holiday %q", name)
		}

		var past []Holiday
		for _, o := range occ {
			if !o.Date.After(ref) {
				past = append(past, o)
			}
		}
		if len(past) == 0 {
			if len(occ) > 1 {
				return Range{}, fmt.Errorf("dates: holiday %q has no past occurrence and %d future ones: %w",
					name, len(occ), ErrAmbiguousDate)
			}
			past = occ
		}
		h = past[len(past)-1]
	}
	end := h.Date.AddDate(0, 0, h.Days-1)

	switch rel {
	case "before":
		// Everything up to and including the holiday eve; From is left
		// zero, meaning unbounded.
		return Range{To: h.Date.AddDate(0, 0, -1)}, nil
	case "after", "since":
		return Range{From: end.AddDate(0, 0, 1), To: ref}, nil
	case "around":
		// Eve through the day after the holiday ends.
		return Range{From: h.Date.AddDate(0, 0, -1), To: end.AddDate(0, 0, 1)}, nil
	}
	return Range{}, fmt.Errorf("dates: unrecognized relation %q", rel)
}

// lastHoliday returns the table occurrence with the latest start date on or
// before ref, of any name.
func (c *Calendar) lastHoliday(ref time.Time) (Holiday, bool) {
	var best Holiday
	found := false
	for _, h := range c.holidays {
		if h.Date.After(ref) {
			continue
		}
		if !found || h.Date.After(best.Date) {
			best, found = h, true
		}
	}
	return best, found
}

// occurrences returns the table entries matching name, oldest first.
func (c *Calendar) occurrences(name string) []Holiday {
	var out []Holiday
	for _, h := range c.holidays {
		if h.Name == name {
			out = append(out, h)
		}
	}
	return out
}

// HolidayOn returns the holiday covering the given date, if any.
func (c *Calendar) HolidayOn(d time.Time) (Holiday, bool) {
	d = c.midnight(d)
	for _, h := range c.holidays {
		end := h.Date.AddDate(0, 0, h.Days-1)
		if !d.Before(h.Date) && !d.After(end) {
			return h, true
		}
	}
	return Holiday{}, false
}

// IsHolidayEve reports whether the day after d starts a holiday. Offices
// close early on holiday eves, which matters for document effective dates.
func (c *Calendar) IsHolidayEve(d time.Time) bool {
	next := c.midnight(d).AddDate(0, 0, 1)
	for _, h := range c.holidays {
		if h.Date.Equal(next) {
			return true
		}
	}
	return false
}

func (c *Calendar) midnight(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

func (c *Calendar) weekFloor(t time.Time) time.Time {
	diff := int(t.Weekday()) - int(c.weekStart)
	if diff < 0 {
		diff += 7
	}
	return t.AddDate(0, 0, -diff)
}

func (c *Calendar) quarterFloor(t time.Time) time.Time {
	q := (int(t.Month()) - 1) / 3
	return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, c.loc)
}
