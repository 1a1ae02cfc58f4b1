// Package calendar works with pure dates: time.Time values at 00:00 UTC.
package calendar

import (
	"time"

	"tally/internal/apperr"
)

const Day = 24 * time.Hour

// DateOf drops the time of day, keeping t's calendar date in UTC.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// YMD formats the calendar date as YYYY-MM-DD.
func YMD(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func ParseYMD(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperr.Invalid("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns the calendar date.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperr.Invalid("date %q must be YYYY-MM-DD or RFC 3339", s)
	}
	return DateOf(t), nil
}

// SameDate reports whether a and b fall on the same UTC calendar date.
func SameDate(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// StartOfWeek returns the Monday on or before t.
func StartOfWeek(t time.Time) time.Time {
	d := DateOf(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func SameWeek(a, b time.Time) bool {
	return StartOfWeek(a).Equal(StartOfWeek(b))
}

func SameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthRange returns the first and last date of the month offset months
// away from now.
func MonthRange(now time.Time, offset int) (time.Time, time.Time) {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first, last
}

// WeekdayIndex maps Monday..Sunday to 0..6.
func WeekdayIndex(t time.Time) int {
	return (int(t.UTC().Weekday()) + 6) % 7
}

// ShortLabel formats a date like "Jan 5".
func ShortLabel(t time.Time) string {
	return t.UTC().Format("Jan 2")
}
