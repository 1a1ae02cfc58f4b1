// Package stats derives statistics from a collection of days. The functions
// here are pure; Service adds loading and caching on top.
package stats

import (
	"fmt"
	"math"
	"slices"
	"time"

	"tally/internal/calendar"
)

// Adaptive bucketing thresholds on the number of dated entries.
const (
	weeklyFrom  = 10
	monthlyFrom = 70
)

type Granularity string

const (
	ByDay   Granularity = "day"
	ByWeek  Granularity = "week"
	ByMonth Granularity = "month"
)

// ScorePair is one category's raw and weighted score on a date, or an
// average of those over a group of dates.
type ScorePair struct {
	Score           float64 `json:"score"`
	CalculatedScore float64 `json:"calculatedScore"`
}

// DateStats maps YYYY-MM-DD to the score on that date.
type DateStats map[string]ScorePair

type Bucket struct {
	TotalScore             float64 `json:"totalScore"`
	TotalCalculatedScore   float64 `json:"totalCalculatedScore"`
	AverageScore           float64 `json:"averageScore"`
	AverageCalculatedScore float64 `json:"averageCalculatedScore"`

	count int
}

func (b *Bucket) add(p ScorePair) {
	b.TotalScore += p.Score
	b.TotalCalculatedScore += p.CalculatedScore
	b.count++
}

func (b *Bucket) finish() {
	if b.count == 0 {
		return
	}
	b.AverageScore = b.TotalScore / float64(b.count)
	b.AverageCalculatedScore = b.TotalCalculatedScore / float64(b.count)
}

type Periods struct {
	AllTime   Bucket `json:"allTime"`
	ThisWeek  Bucket `json:"thisWeek"`
	ThisMonth Bucket `json:"thisMonth"`
}

// Point is one entry of the all-time series: a single date, or the average
// over a week or month of dates.
type Point struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	ScorePair
	Count int `json:"count"`

	first time.Time
}

type PeriodDateStats struct {
	Granularity Granularity `json:"granularity"`
	AllTime     []Point     `json:"allTime"`
	ThisWeek    DateStats   `json:"thisWeek"`
	ThisMonth   DateStats   `json:"thisMonth"`
}

type PeriodResult struct {
	Stats     Periods         `json:"stats"`
	DateStats PeriodDateStats `json:"dateStats"`
}

// PeriodStats totals and averages a category's scores over all time, the
// Monday-start week of ref and the calendar month of ref. Empty buckets
// average to 0. The all-time series is bucketed by day, week or month
// depending on how many dates there are, oldest first.
func PeriodStats(ds DateStats, ref time.Time) (PeriodResult, error) {
	type dated struct {
		date time.Time
		key  string
		ScorePair
	}
	entries := make([]dated, 0, len(ds))
	for k, v := range ds {
		d, err := calendar.ParseYMD(k)
		if err != nil {
			return PeriodResult{}, err
		}
		entries = append(entries, dated{date: d, key: k, ScorePair: v})
	}
	slices.SortFunc(entries, func(a, b dated) int { return a.date.Compare(b.date) })

	var res PeriodResult
	res.DateStats.ThisWeek = DateStats{}
	res.DateStats.ThisMonth = DateStats{}
	for _, e := range entries {
		res.Stats.AllTime.add(e.ScorePair)
		if calendar.SameWeek(e.date, ref) {
			res.Stats.ThisWeek.add(e.ScorePair)
			res.DateStats.ThisWeek[e.key] = e.ScorePair
		}
		if calendar.SameMonth(e.date, ref) {
			res.Stats.ThisMonth.add(e.ScorePair)
			res.DateStats.ThisMonth[e.key] = e.ScorePair
		}
	}
	res.Stats.AllTime.finish()
	res.Stats.ThisWeek.finish()
	res.Stats.ThisMonth.finish()

	var group func(time.Time) (key, label string)
	switch n := len(entries); {
	case n < weeklyFrom:
		res.DateStats.Granularity = ByDay
		group = func(t time.Time) (string, string) { return calendar.YMD(t), calendar.YMD(t) }
	case n < monthlyFrom:
		res.DateStats.Granularity = ByWeek
		group = weekGroup
	default:
		res.DateStats.Granularity = ByMonth
		group = monthGroup
	}

	res.DateStats.AllTime = []Point{}
	index := map[string]int{}
	for _, e := range entries {
		key, label := group(e.date)
		i, ok := index[key]
		if !ok {
			i = len(res.DateStats.AllTime)
			index[key] = i
			res.DateStats.AllTime = append(res.DateStats.AllTime, Point{Key: key, Label: label, first: e.date})
		}
		p := &res.DateStats.AllTime[i]
		p.Score += e.Score
		p.CalculatedScore += e.CalculatedScore
		p.Count++
	}
	for i := range res.DateStats.AllTime {
		p := &res.DateStats.AllTime[i]
		p.Score /= float64(p.Count)
		p.CalculatedScore /= float64(p.Count)
	}
	slices.SortStableFunc(res.DateStats.AllTime, func(a, b Point) int { return a.first.Compare(b.first) })
	return res, nil
}

// weekGroup numbers weeks as ceil(days since Jan 1 / 7).
func weekGroup(t time.Time) (string, string) {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	days := t.Sub(jan1).Hours() / 24
	week := int(math.Ceil(days / 7))
	return fmt.Sprintf("%d-W%02d", t.Year(), week), fmt.Sprintf("W%d '%02d", week, t.Year()%100)
}

func monthGroup(t time.Time) (string, string) {
	return t.Format("2006-01"), t.Format("Jan '06")
}
