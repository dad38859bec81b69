package dates

import "time"

// IsraelLocation returns the Asia/Jerusalem location, falling back to a
// fixed UTC+2 zone when the tz database is unavailable.
func IsraelLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		return time.FixedZone("IST", 2*60*60)
	}
	return loc
}

// IsraeliHolidays returns the bundled Israeli holiday table covering
// 2024 through 2026. Dates are the first full holiday day (not the eve);
// multi-day holidays carry their length in Days. Deployments with other
// locales pass their own table to NewCalendar.
func IsraeliHolidays(loc *time.Location) []Holiday {
	if loc == nil {
		loc = time.UTC
	}
	d := func(y int, m time.Month, day int) time.Time {
		return time.Date(y, m, day, 0, 0, 0, 0, loc)
	}
	return []Holiday{
		{Name: "purim", Date: d(2024, time.March, 24), Days: 1},
		{Name: "passover", Date: d(2024, time.April, 23), Days: 7},
		{Name: "independence day", Date: d(2024, time.May, 14), Days: 1},
		{Name: "shavuot", Date: d(2024, time.June, 12), Days: 1},
		{Name: "rosh hashanah", Date: d(2024, time.October, 3), Days: 2},
		{Name: "yom kippur", Date: d(2024, time.October, 12), Days: 1},
		{Name: "sukkot", Date: d(2024, time.October, 17), Days: 7},
		{Name: "hanukkah", Date: d(2024, time.December, 26), Days: 8},

		{Name: "purim", Date: d(2025, time.March, 14), Days: 1},
		{Name: "passover", Date: d(2025, time.April, 13), Days: 7},
		{Name: "independence day", Date: d(2025, time.May, 1), Days: 1},
		{Name: "shavuot", Date: d(2025, time.June, 2), Days: 1},
		{Name: "rosh hashanah", Date: d(2025, time.September, 23), Days: 2},
		{Name: "yom kippur", Date: d(2025, time.October, 2), Days: 1},
		{Name: "sukkot", Date: d(2025, time.October, 7), Days: 7},
		{Name: "hanukkah", Date: d(2025, time.December, 15), Days: 8},

		{Name: "purim", Date: d(2026, time.March, 3), Days: 1},
		{Name: "passover", Date: d(2026, time.April, 2), Days: 7},
		{Name: "independence day", Date: d(2026, time.April, 22), Days: 1},
		{Name: "shavuot", Date: d(2026, time.May, 22), Days: 1},
		{Name: "rosh hashanah", Date: d(2026, time.September, 12), Days: 2},
		{Name: "yom kippur", Date: d(2026, time.September, 21), Days: 1},
		{Name: "sukkot", Date: d(2026, time.September, 26), Days: 7},
		{Name: "hanukkah", Date: d(2026, time.December, 5), Days: 8},
	}
}
