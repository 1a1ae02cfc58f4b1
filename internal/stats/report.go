package stats

import (
	"time"

	"github.com/google/uuid"

	"tally/internal/calendar"
	"tally/internal/category"
	"tally/internal/day"
)

const (
	StatusExists    = "exists"
	StatusNotExists = "not_exists"

	trendLength  = 5
	thisDayLabel = "This Day"
)

// Report is the statistics page of one date in a session. Only Status and
// SessionInfo are set when nothing was logged on the date.
type Report struct {
	Status            string      `json:"status"`
	Day               *day.Day    `json:"day,omitempty"`
	DayComparisonInfo *Comparison `json:"dayComparisonInfo,omitempty"`
	CategoryBars      []Bar       `json:"categoryBars,omitempty"`
	SessionInfo       SessionInfo `json:"sessionInfo"`
	Trend             []Series    `json:"trend,omitempty"`
}

// DayReport builds the report for date from every day of the session.
// categories resolves names; ids missing from it are shown by id.
func DayReport(days []day.Day, categories []category.Category, date time.Time) (Report, error) {
	date = calendar.DateOf(date)
	byDate := day.ByDate(days)
	find := func(t time.Time) *day.Day {
		if d, ok := byDate[calendar.YMD(t)]; ok {
			return &d
		}
		return nil
	}

	target := find(date)
	if target == nil {
		cmp, err := DayComparison(days, nil)
		if err != nil {
			return Report{}, err
		}
		return Report{Status: StatusNotExists, SessionInfo: cmp.SessionInfo}, nil
	}

	names := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	infos := make([]CategoryInfo, 0, len(target.CategoryIDs))
	for _, id := range target.CategoryIDs {
		ds := CategoryDateStats(id, days)
		avg, err := CategoryAverage(ds)
		if err != nil {
			return Report{}, err
		}
		name, ok := names[id]
		if !ok {
			name = id.String()
		}
		infos = append(infos, CategoryInfo{ID: id, Name: name, DateStats: ds, Average: avg})
	}

	cmp, err := DayComparison(days, target)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Status:            StatusExists,
		Day:               target,
		DayComparisonInfo: cmp.DayComparisonInfo,
		CategoryBars:      DayCategoryBars(infos, *target, find(date.AddDate(0, 0, -1)), find(date.AddDate(0, 0, -7))),
		SessionInfo:       cmp.SessionInfo,
		Trend:             []Series{DayTrend(days, RecentDates(date, trendLength), thisDayLabel)},
	}, nil
}

// CategoryDetail is a category with its period statistics.
type CategoryDetail struct {
	Category  category.Category `json:"category"`
	Stats     Periods           `json:"stats"`
	DateStats PeriodDateStats   `json:"dateStats"`
}

// CategoryReport computes period statistics for c over the days that scored it.
func CategoryReport(c category.Category, days []day.Day, now time.Time) (CategoryDetail, error) {
	res, err := PeriodStats(CategoryDateStats(c.ID, days), now)
	if err != nil {
		return CategoryDetail{}, err
	}
	return CategoryDetail{Category: c, Stats: res.Stats, DateStats: res.DateStats}, nil
}
