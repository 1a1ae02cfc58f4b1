package stats

import (
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"tally/internal/apperr"
	"tally/internal/calendar"
	"tally/internal/day"
	"tally/internal/scoring"
)

// TrendSeriesID names the single series DayTrend produces.
const TrendSeriesID = "Total Score"

type Comparison struct {
	Rank                  int     `json:"rank"`
	TopPercentage         float64 `json:"topPercentage"`
	DistanceFromAverage   float64 `json:"distanceFromAverage"`
	DistanceFromBest      float64 `json:"distanceFromBest"`
	ScoreDistanceFromBest float64 `json:"scoreDistanceFromBest"`
}

// SessionInfo summarizes a session's days. BestDay and WorstDay are nil
// when there are no days.
type SessionInfo struct {
	BestDay    *day.Day `json:"bestDay"`
	WorstDay   *day.Day `json:"worstDay"`
	TotalDays  int      `json:"totalDays"`
	TotalScore float64  `json:"totalScore"`
}

type ComparisonResult struct {
	DayComparisonInfo *Comparison `json:"dayComparisonInfo,omitempty"`
	SessionInfo       SessionInfo `json:"sessionInfo"`
}

// DayComparison ranks target among days by percentage score, best first.
// Ties keep their input order. A target that is not among days is NotFound.
func DayComparison(days []day.Day, target *day.Day) (ComparisonResult, error) {
	sorted := slices.Clone(days)
	slices.SortStableFunc(sorted, func(a, b day.Day) int {
		switch {
		case a.PercentageScore > b.PercentageScore:
			return -1
		case a.PercentageScore < b.PercentageScore:
			return 1
		}
		return 0
	})

	var res ComparisonResult
	res.SessionInfo.TotalDays = len(sorted)
	for _, d := range sorted {
		res.SessionInfo.TotalScore += d.TotalScore
	}
	if len(sorted) > 0 {
		best, worst := sorted[0], sorted[len(sorted)-1]
		res.SessionInfo.BestDay = &best
		res.SessionInfo.WorstDay = &worst
	}
	if target == nil {
		return res, nil
	}

	idx := slices.IndexFunc(sorted, func(d day.Day) bool { return d.ID == target.ID })
	if idx < 0 {
		return ComparisonResult{}, apperr.NotFound("day " + target.ID.String() + " in session")
	}
	best := sorted[0]
	avg := res.SessionInfo.TotalScore / float64(len(sorted))
	res.DayComparisonInfo = &Comparison{
		Rank:                  idx + 1,
		TopPercentage:         float64(idx) / float64(len(sorted)) * 100,
		DistanceFromAverage:   target.TotalScore - avg,
		DistanceFromBest:      target.PercentageScore - best.PercentageScore,
		ScoreDistanceFromBest: target.TotalScore - best.TotalScore,
	}
	return res, nil
}

type XY struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

type Series struct {
	ID   string `json:"id"`
	Data []XY   `json:"data"`
}

// DayTrend charts total scores over datesDesc (most recent first) in
// chronological order. Dates without a day plot 0; the most recent point is
// labeled latestLabel.
func DayTrend(days []day.Day, datesDesc []time.Time, latestLabel string) Series {
	byDate := day.ByDate(days)
	s := Series{ID: TrendSeriesID, Data: make([]XY, 0, len(datesDesc))}
	for i := len(datesDesc) - 1; i >= 0; i-- {
		date := datesDesc[i]
		p := XY{X: calendar.ShortLabel(date)}
		if i == 0 {
			p.X = latestLabel
		}
		if d, ok := byDate[calendar.YMD(date)]; ok {
			p.Y = round1(d.TotalScore)
		}
		s.Data = append(s.Data, p)
	}
	return s
}

// RecentDates returns n consecutive dates ending at anchor, most recent first.
func RecentDates(anchor time.Time, n int) []time.Time {
	anchor = calendar.DateOf(anchor)
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, anchor.AddDate(0, 0, -i))
	}
	return out
}

// CategoryDateStats extracts one category's score from each day. A day that
// did not score the category contributes 0.
func CategoryDateStats(categoryID uuid.UUID, days []day.Day) DateStats {
	out := make(DateStats, len(days))
	for _, d := range days {
		var p ScorePair
		if cs, ok := d.Entry(categoryID); ok {
			p = ScorePair{Score: cs.Score, CalculatedScore: cs.CalculatedScore}
		}
		out[d.Key()] = p
	}
	return out
}

type Average struct {
	AvgScore           float64 `json:"avgScore"`
	AvgCalculatedScore float64 `json:"avgCalculatedScore"`
	// AvgFraction is AvgScore as a fraction of the best possible raw score.
	AvgFraction float64 `json:"avgFraction"`
}

func CategoryAverage(ds DateStats) (Average, error) {
	if len(ds) == 0 {
		return Average{}, apperr.Inconsistent("no dates to average")
	}
	var sum ScorePair
	for _, p := range ds {
		sum.Score += p.Score
		sum.CalculatedScore += p.CalculatedScore
	}
	n := float64(len(ds))
	avg := Average{
		AvgScore:           sum.Score / n,
		AvgCalculatedScore: sum.CalculatedScore / n,
	}
	avg.AvgFraction = avg.AvgScore / scoring.MaxRawScore
	return avg, nil
}

// CategoryInfo is a category's history within a session.
type CategoryInfo struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	DateStats DateStats `json:"dateStats"`
	Average   Average   `json:"average"`
}

type Bar struct {
	Category     string  `json:"category"`
	ThisDay      float64 `json:"thisDay"`
	Yesterday    float64 `json:"yesterday"`
	PreviousWeek float64 `json:"previousWeek"`
	Average      float64 `json:"average"`
}

// DayCategoryBars compares each category's raw score on thisDay with the
// day before, the same weekday a week earlier and the category average.
// Missing days count as 0.
func DayCategoryBars(infos []CategoryInfo, thisDay day.Day, yesterday, prevWeekDay *day.Day) []Bar {
	scoreOn := func(info CategoryInfo, d *day.Day) float64 {
		if d == nil {
			return 0
		}
		return info.DateStats[d.Key()].Score
	}
	out := make([]Bar, 0, len(infos))
	for _, info := range infos {
		out = append(out, Bar{
			Category:     info.Name,
			ThisDay:      scoreOn(info, &thisDay),
			Yesterday:    scoreOn(info, yesterday),
			PreviousWeek: scoreOn(info, prevWeekDay),
			Average:      info.Average.AvgScore,
		})
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
