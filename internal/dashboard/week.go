// Package dashboard composes the weekly overview of a session: this week
// against the previous one, per-category totals, a short trend and how far
// the week is from the record and average weeks.
package dashboard

import (
	"time"

	"github.com/google/uuid"

	"tally/internal/apperr"
	"tally/internal/calendar"
	"tally/internal/day"
	"tally/internal/scoring"
)

var weekdays = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

type WeekdayBar struct {
	Weekday      string  `json:"weekday"`
	TotalScore   float64 `json:"totalScore"`
	PreviousWeek float64 `json:"previousWeek"`
}

// WeekBarChart lines up both weeks by weekday, Monday first. The first day
// found for a weekday wins; weekdays without a day are 0.
func WeekBarChart(current, previous []day.Day) []WeekdayBar {
	out := make([]WeekdayBar, len(weekdays))
	for i, name := range weekdays {
		out[i] = WeekdayBar{
			Weekday:      name,
			TotalScore:   totalOnWeekday(current, i),
			PreviousWeek: totalOnWeekday(previous, i),
		}
	}
	return out
}

func totalOnWeekday(days []day.Day, weekday int) float64 {
	for _, d := range days {
		if calendar.WeekdayIndex(d.Date) == weekday {
			return d.TotalScore
		}
	}
	return 0
}

type CategoryTotal struct {
	TotalScore float64 `json:"totalScore"`
	MaxScore   float64 `json:"maxScore"`
}

// WeekCategoryTotals sums each category's weighted score and weighted
// maximum over days.
func WeekCategoryTotals(days []day.Day) map[uuid.UUID]CategoryTotal {
	out := map[uuid.UUID]CategoryTotal{}
	for _, d := range days {
		for _, cs := range d.Score {
			t := out[cs.Category]
			t.TotalScore += cs.CalculatedScore
			t.MaxScore += cs.Importance * scoring.MaxRawScore
			out[cs.Category] = t
		}
	}
	return out
}

// WeekImprovement is the percentage change of the summed total score from
// previous to current. A previous total of 0 is Inconsistent.
func WeekImprovement(current, previous []day.Day) (float64, error) {
	cur, prev := total(current), total(previous)
	if prev == 0 {
		return 0, apperr.Inconsistent("previous week has no score")
	}
	return (cur - prev) / prev * 100, nil
}

// WeeksPartition splits chronologically sorted days into Monday-start weeks.
// A day past the open week starts a new week at its own Monday, so runs of
// empty weeks produce no buckets.
func WeeksPartition(days []day.Day) [][]day.Day {
	var weeks [][]day.Day
	var week []day.Day
	var start time.Time
	for _, d := range days {
		if week != nil && !d.Date.Before(start) && d.Date.Before(start.AddDate(0, 0, 7)) {
			week = append(week, d)
			continue
		}
		if week != nil {
			weeks = append(weeks, week)
		}
		start = calendar.StartOfWeek(d.Date)
		week = []day.Day{d}
	}
	if week != nil {
		weeks = append(weeks, week)
	}
	return weeks
}

func total(days []day.Day) float64 {
	var sum float64
	for _, d := range days {
		sum += d.TotalScore
	}
	return sum
}
