package stats_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"tally/internal/apperr"
	"tally/internal/category"
	"tally/internal/day"
	"tally/internal/scoring"
	"tally/internal/stats"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mkDay(t time.Time, total, pct float64, scores ...scoring.CategoryScore) day.Day {
	d := day.Day{
		ID:              uuid.New(),
		Date:            t,
		Score:           scores,
		TotalScore:      total,
		MaxScore:        30,
		PercentageScore: pct,
	}
	for _, s := range scores {
		d.CategoryIDs = append(d.CategoryIDs, s.Category)
	}
	return d
}

func entry(cat uuid.UUID, score, importance float64) scoring.CategoryScore {
	return scoring.CategoryScore{Category: cat, Score: score, Importance: importance, CalculatedScore: score * importance}
}

func TestPeriodStats_SplitsByWeekAndMonth(t *testing.T) {
	ds := stats.DateStats{
		"2024-01-01": {Score: 5, CalculatedScore: 5},
		"2024-06-15": {Score: 8, CalculatedScore: 16},
	}
	res, err := stats.PeriodStats(ds, date(2024, 6, 20))
	if err != nil {
		t.Fatalf("period stats: %v", err)
	}

	if res.Stats.AllTime.TotalScore != 13 || res.Stats.AllTime.AverageScore != 6.5 {
		t.Fatalf("all time = %+v", res.Stats.AllTime)
	}
	if res.Stats.ThisMonth.TotalScore != 8 || res.Stats.ThisMonth.AverageCalculatedScore != 16 {
		t.Fatalf("this month = %+v", res.Stats.ThisMonth)
	}
	if _, ok := res.DateStats.ThisMonth["2024-01-01"]; ok || len(res.DateStats.ThisMonth) != 1 {
		t.Fatalf("this month dates = %v", res.DateStats.ThisMonth)
	}
	// June 15 is the Saturday before the reference week.
	if res.Stats.ThisWeek.TotalScore != 0 || res.Stats.ThisWeek.AverageScore != 0 || len(res.DateStats.ThisWeek) != 0 {
		t.Fatalf("this week should be empty: %+v %v", res.Stats.ThisWeek, res.DateStats.ThisWeek)
	}
	if len(res.DateStats.AllTime) != 2 || res.DateStats.AllTime[0].Key != "2024-01-01" {
		t.Fatalf("all time series = %+v", res.DateStats.AllTime)
	}
}

func TestPeriodStats_FewDatesStayRaw(t *testing.T) {
	ds := stats.DateStats{}
	for i := 0; i < 5; i++ {
		ds[date(2024, 3, 1+i*3).Format(time.DateOnly)] = stats.ScorePair{Score: float64(i), CalculatedScore: float64(2 * i)}
	}
	res, err := stats.PeriodStats(ds, date(2024, 3, 20))
	if err != nil {
		t.Fatal(err)
	}
	if res.DateStats.Granularity != stats.ByDay || len(res.DateStats.AllTime) != 5 {
		t.Fatalf("expected 5 raw points, got %s %d", res.DateStats.Granularity, len(res.DateStats.AllTime))
	}
	for i, p := range res.DateStats.AllTime {
		want := date(2024, 3, 1+i*3).Format(time.DateOnly)
		if p.Key != want || p.Score != float64(i) || p.Count != 1 {
			t.Fatalf("point %d = %+v, want key %s", i, p, want)
		}
	}
}

func TestPeriodStats_WeeklyBuckets(t *testing.T) {
	ds := stats.DateStats{}
	for i := 0; i < 14; i++ {
		ds[date(2024, 1, 1+i).Format(time.DateOnly)] = stats.ScorePair{Score: 4, CalculatedScore: 8}
	}
	res, err := stats.PeriodStats(ds, date(2024, 1, 14))
	if err != nil {
		t.Fatal(err)
	}
	if res.DateStats.Granularity != stats.ByWeek {
		t.Fatalf("granularity = %s", res.DateStats.Granularity)
	}
	want := []struct {
		key   string
		count int
	}{{"2024-W00", 1}, {"2024-W01", 7}, {"2024-W02", 6}}
	if len(res.DateStats.AllTime) != len(want) {
		t.Fatalf("points = %+v", res.DateStats.AllTime)
	}
	for i, w := range want {
		p := res.DateStats.AllTime[i]
		if p.Key != w.key || p.Count != w.count || p.Score != 4 || p.CalculatedScore != 8 {
			t.Fatalf("point %d = %+v, want %+v", i, p, w)
		}
	}
	if res.DateStats.AllTime[1].Label != "W1 '24" {
		t.Fatalf("label = %q", res.DateStats.AllTime[1].Label)
	}
}

func TestPeriodStats_MonthlyBucketsSortChronologically(t *testing.T) {
	ds := stats.DateStats{}
	start := date(2023, 12, 1)
	for i := 0; i < 75; i++ {
		ds[start.AddDate(0, 0, i).Format(time.DateOnly)] = stats.ScorePair{Score: float64(i % 2), CalculatedScore: 1}
	}
	res, err := stats.PeriodStats(ds, date(2024, 2, 13))
	if err != nil {
		t.Fatal(err)
	}
	if res.DateStats.Granularity != stats.ByMonth {
		t.Fatalf("granularity = %s", res.DateStats.Granularity)
	}
	labels := []string{}
	for _, p := range res.DateStats.AllTime {
		labels = append(labels, p.Label)
	}
	if len(labels) != 3 || labels[0] != "Dec '23" || labels[1] != "Jan '24" || labels[2] != "Feb '24" {
		t.Fatalf("labels = %v", labels)
	}
	if res.DateStats.AllTime[0].Count != 31 || res.DateStats.AllTime[2].Count != 13 {
		t.Fatalf("counts = %+v", res.DateStats.AllTime)
	}
}

func TestPeriodStats_BadKey(t *testing.T) {
	_, err := stats.PeriodStats(stats.DateStats{"June 1": {}}, date(2024, 6, 1))
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDayComparison_RanksByPercentage(t *testing.T) {
	mid := mkDay(date(2024, 6, 1), 15, 50)
	low := mkDay(date(2024, 6, 2), 3, 10)
	top := mkDay(date(2024, 6, 3), 27, 90)
	days := []day.Day{mid, low, top}

	res, err := stats.DayComparison(days, &top)
	if err != nil {
		t.Fatal(err)
	}
	if c := res.DayComparisonInfo; c.Rank != 1 || c.TopPercentage != 0 || c.DistanceFromBest != 0 {
		t.Fatalf("best day comparison = %+v", c)
	}

	res, err = stats.DayComparison(days, &low)
	if err != nil {
		t.Fatal(err)
	}
	c := res.DayComparisonInfo
	if c.Rank != 3 || math.Abs(c.TopPercentage-200.0/3) > 1e-9 {
		t.Fatalf("worst day comparison = %+v", c)
	}
	if c.DistanceFromBest != -80 || c.ScoreDistanceFromBest != -24 || c.DistanceFromAverage != -12 {
		t.Fatalf("distances = %+v", c)
	}
	if res.SessionInfo.BestDay.ID != top.ID || res.SessionInfo.WorstDay.ID != low.ID ||
		res.SessionInfo.TotalDays != 3 || res.SessionInfo.TotalScore != 45 {
		t.Fatalf("session info = %+v", res.SessionInfo)
	}
}

func TestDayComparison_EmptyAndUnknown(t *testing.T) {
	res, err := stats.DayComparison(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.SessionInfo.BestDay != nil || res.SessionInfo.WorstDay != nil || res.DayComparisonInfo != nil {
		t.Fatalf("expected empty info, got %+v", res)
	}

	stray := mkDay(date(2024, 6, 1), 1, 1)
	_, err = stats.DayComparison([]day.Day{mkDay(date(2024, 6, 2), 2, 2)}, &stray)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDayTrend(t *testing.T) {
	days := []day.Day{
		mkDay(date(2024, 6, 13), 21.26, 70),
		mkDay(date(2024, 6, 15), 7, 20),
	}
	s := stats.DayTrend(days, stats.RecentDates(date(2024, 6, 15), 5), "Latest")

	want := []stats.XY{
		{X: "Jun 11", Y: 0},
		{X: "Jun 12", Y: 0},
		{X: "Jun 13", Y: 21.3},
		{X: "Jun 14", Y: 0},
		{X: "Latest", Y: 7},
	}
	if s.ID != stats.TrendSeriesID || len(s.Data) != len(want) {
		t.Fatalf("series = %+v", s)
	}
	for i := range want {
		if s.Data[i] != want[i] {
			t.Fatalf("point %d = %+v, want %+v", i, s.Data[i], want[i])
		}
	}
}

func TestCategoryDateStatsAndAverage(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	days := []day.Day{
		mkDay(date(2024, 6, 1), 0, 0, entry(a, 5, 2), entry(b, 1, 1)),
		mkDay(date(2024, 6, 2), 0, 0, entry(a, 8, 2)),
		mkDay(date(2024, 6, 3), 0, 0, entry(b, 3, 1)),
	}
	ds := stats.CategoryDateStats(a, days)
	if len(ds) != 3 || ds["2024-06-01"].CalculatedScore != 10 || ds["2024-06-03"] != (stats.ScorePair{}) {
		t.Fatalf("date stats = %v", ds)
	}

	avg, err := stats.CategoryAverage(ds)
	if err != nil {
		t.Fatal(err)
	}
	if avg.AvgScore != 13.0/3 || avg.AvgCalculatedScore != 26.0/3 || math.Abs(avg.AvgFraction-avg.AvgScore/10) > 1e-12 {
		t.Fatalf("average = %+v", avg)
	}

	if _, err := stats.CategoryAverage(stats.DateStats{}); !errors.Is(err, apperr.ErrInconsistent) {
		t.Fatalf("expected inconsistent on empty input, got %v", err)
	}
}

func TestDayReport(t *testing.T) {
	a := category.Category{ID: uuid.New(), Name: "Exercise"}
	days := []day.Day{
		mkDay(date(2024, 6, 3), 6, 20, entry(a.ID, 6, 1)),
		mkDay(date(2024, 6, 9), 4, 10, entry(a.ID, 4, 1)),
		mkDay(date(2024, 6, 10), 8, 80, entry(a.ID, 8, 1)),
	}

	rep, err := stats.DayReport(days, []category.Category{a}, date(2024, 6, 10))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Status != stats.StatusExists || rep.Day.ID != days[2].ID || rep.DayComparisonInfo.Rank != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(rep.CategoryBars) != 1 {
		t.Fatalf("bars = %+v", rep.CategoryBars)
	}
	bar := rep.CategoryBars[0]
	if bar.Category != "Exercise" || bar.ThisDay != 8 || bar.Yesterday != 4 || bar.PreviousWeek != 6 || bar.Average != 6 {
		t.Fatalf("bar = %+v", bar)
	}
	if len(rep.Trend) != 1 || rep.Trend[0].Data[4].X != "This Day" || rep.Trend[0].Data[4].Y != 8 {
		t.Fatalf("trend = %+v", rep.Trend)
	}

	missing, err := stats.DayReport(days, nil, date(2024, 6, 11))
	if err != nil {
		t.Fatal(err)
	}
	if missing.Status != stats.StatusNotExists || missing.Day != nil || missing.SessionInfo.TotalDays != 3 {
		t.Fatalf("missing report = %+v", missing)
	}
}

func TestCategoryReport_NoDays(t *testing.T) {
	c := category.Category{ID: uuid.New(), Name: "Sleep"}
	rep, err := stats.CategoryReport(c, nil, date(2024, 6, 10))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Stats.AllTime != (stats.Bucket{}) || len(rep.DateStats.AllTime) != 0 || rep.Category.Name != "Sleep" {
		t.Fatalf("report = %+v", rep)
	}
}
