// Package calendar converts between calendar dates, the integer surrogate
// keys used by the fact tables (YYYYMMDD and YYYYMM), and ISO-8601 weeks.
//
// Every component that buckets data by week goes through this package so
// that weather, health, and trend signals line up on the same week number.
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var weekLabelRe = regexp.MustCompile(`^(\d{4})-?W(\d{1,2})$`)

// DateKey encodes the calendar date of t as YYYYMMDD.
func DateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// MonthKey encodes the calendar month of t as YYYYMM.
func MonthKey(t time.Time) int {
	y, m, _ := t.Date()
	return y*100 + int(m)
}

// DateFromKey decodes a YYYYMMDD key into midnight UTC of that date.
func DateFromKey(key int) (time.Time, error) {
	y, m, d := key/10000, (key/100)%100, key%100
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, fmt.Errorf("invalid date key %d", key)
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if DateKey(t) != key {
		return time.Time{}, fmt.Errorf("invalid date key %d", key)
	}
	return t, nil
}

// Day truncates t to midnight UTC of its calendar date in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ISOWeek returns the ISO-8601 year and week of t. The week containing the
// year's first Thursday is week 1, so early-January and late-December dates
// can belong to the neighbouring year.
func ISOWeek(t time.Time) (year, week int) {
	// Shift to the Thursday of t's Monday-based week; that Thursday's year is
	// the ISO year and its ordinal day fixes the week number.
	d := Day(t)
	weekday := (int(d.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	thursday := d.AddDate(0, 0, 3-weekday)
	return thursday.Year(), (thursday.YearDay()-1)/7 + 1
}

// WeekRange returns the Monday and Sunday (midnight UTC) bounding an ISO week.
func WeekRange(year, week int) (monday, sunday time.Time) {
	// January 4th is always in week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := (int(jan4.Weekday()) + 6) % 7
	week1Monday := jan4.AddDate(0, 0, -weekday)
	monday = week1Monday.AddDate(0, 0, (week-1)*7)
	return monday, monday.AddDate(0, 0, 6)
}

// WeekKeyRange returns the inclusive YYYYMMDD bounds of an ISO week.
func WeekKeyRange(year, week int) (from, to int) {
	monday, sunday := WeekRange(year, week)
	return DateKey(monday), DateKey(sunday)
}

// WeeksInYear reports whether an ISO year has 52 or 53 weeks.
func WeeksInYear(year int) int {
	_, w := ISOWeek(time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC))
	return w
}

// FormatWeek renders an ISO week as "2025-W10".
func FormatWeek(year, week int) string {
	return fmt.Sprintf("%d-W%02d", year, week)
}

// ParseWeekLabel parses "2025-W10" (or "2025W10") into an ISO year and week.
func ParseWeekLabel(s string) (year, week int, err error) {
	m := weekLabelRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid ISO week %q", s)
	}
	year, _ = strconv.Atoi(m[1])
	week, _ = strconv.Atoi(m[2])
	if week < 1 || week > WeeksInYear(year) {
		return 0, 0, fmt.Errorf("week %d out of range for %d", week, year)
	}
	return year, week, nil
}

// Days returns every calendar date from start to end inclusive, at midnight UTC.
func Days(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
