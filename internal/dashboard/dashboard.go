package dashboard

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"tally/internal/calendar"
	"tally/internal/category"
	"tally/internal/day"
	"tally/internal/stats"
)

const (
	trendLength = 5
	latestLabel = "Latest"
)

type Dashboard struct {
	WeekBars         []WeekdayBar                `json:"weekBars"`
	WeekImprovement  Metric                      `json:"weekImprovement"`
	WeekCategoryData map[uuid.UUID]CategoryTotal `json:"weekCategoryData"`
	Trend            []stats.Series              `json:"trend"`
	ScoreLeft        ScoreLeft                   `json:"scoreLeft"`
	IsFirstWeek      bool                        `json:"isFirstWeek"`
}

// Build composes the dashboard of a session as of now.
//
// The bar chart sets this week so far against the whole previous week;
// improvement compares this week with the same weekdays one week earlier.
// Score left is measured against the weeks before this one.
func Build(days []day.Day, categories []category.Category, now time.Time) Dashboard {
	days = slices.Clone(days)
	day.SortByDate(days)

	today := calendar.DateOf(now)
	weekStart := calendar.StartOfWeek(today)
	prevStart := weekStart.AddDate(0, 0, -7)
	byDate := day.ByDate(days)

	var current, previousWeek, sameDaysLastWeek []day.Day
	for _, d := range days {
		switch {
		case !d.Date.Before(weekStart) && !d.Date.After(today):
			current = append(current, d)
			if prev, ok := byDate[calendar.YMD(d.Date.AddDate(0, 0, -7))]; ok {
				sameDaysLastWeek = append(sameDaysLastWeek, prev)
			}
		case !d.Date.Before(prevStart) && d.Date.Before(weekStart):
			previousWeek = append(previousWeek, d)
		}
	}

	latest := today
	if len(current) > 0 {
		latest = current[len(current)-1].Date
	}

	totals := WeekCategoryTotals(current)
	for _, c := range categories {
		if _, ok := totals[c.ID]; !ok {
			totals[c.ID] = CategoryTotal{}
		}
	}

	var earlier [][]day.Day
	for _, w := range WeeksPartition(days) {
		if w[0].Date.Before(weekStart) {
			earlier = append(earlier, w)
		}
	}

	improvement := Known(0)
	if len(current) > 0 || len(sameDaysLastWeek) > 0 {
		v, err := WeekImprovement(current, sameDaysLastWeek)
		if err != nil {
			improvement = Unknown(err)
		} else {
			improvement = Known(v)
		}
	}

	return Dashboard{
		WeekBars:         WeekBarChart(current, previousWeek),
		WeekImprovement:  improvement,
		WeekCategoryData: totals,
		Trend:            []stats.Series{stats.DayTrend(days, stats.RecentDates(latest, trendLength), latestLabel)},
		ScoreLeft:        ScoreLeftProjection(current, earlier),
		IsFirstWeek:      len(earlier) == 0,
	}
}
