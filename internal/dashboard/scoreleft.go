package dashboard

import (
	"tally/internal/apperr"
	"tally/internal/day"
)

// Metric is a number that may not be derivable from the data. Unknown
// metrics serialize their value as null along with the reason.
type Metric struct {
	Value  *float64 `json:"value"`
	Reason string   `json:"reason,omitempty"`
}

func Known(v float64) Metric { return Metric{Value: &v} }

func Unknown(err error) Metric { return Metric{Reason: apperr.Reason(err)} }

func (m Metric) Ok() bool { return m.Value != nil }

// Or returns the value, or def when unknown.
func (m Metric) Or(def float64) float64 {
	if m.Value == nil {
		return def
	}
	return *m.Value
}

type ScoreLeft struct {
	RecordScore         Metric `json:"recordScore"`
	ToRecord            Metric `json:"toRecord"`
	ToRecordPercentage  Metric `json:"toRecordPercentage"`
	AvgScoreToRecord    Metric `json:"avgScoreToRecord"`
	AverageScore        Metric `json:"averageScore"`
	ToAverage           Metric `json:"toAverage"`
	ToAveragePercentage Metric `json:"toAveragePercentage"`
	AvgScoreToAverage   Metric `json:"avgScoreToAverage"`
}

// ScoreLeftProjection measures thisWeek against the best and the mean weekly
// total of weeks, and spreads the gap over the days not yet logged.
func ScoreLeftProjection(thisWeek []day.Day, weeks [][]day.Day) ScoreLeft {
	if len(weeks) == 0 {
		m := Unknown(apperr.Inconsistent("no earlier weeks"))
		return ScoreLeft{m, m, m, m, m, m, m, m}
	}

	var record, sum float64
	for _, w := range weeks {
		t := total(w)
		if t > record {
			record = t
		}
		sum += t
	}
	average := sum / float64(len(weeks))

	current := total(thisWeek)
	daysLeft := 7 - len(thisWeek)
	toRecord, toAverage := record-current, average-current

	return ScoreLeft{
		RecordScore:         Known(record),
		ToRecord:            Known(toRecord),
		ToRecordPercentage:  ratio(toRecord, record, "record week has no score", 100),
		AvgScoreToRecord:    ratio(toRecord, float64(daysLeft), "week is fully logged", 1),
		AverageScore:        Known(average),
		ToAverage:           Known(toAverage),
		ToAveragePercentage: ratio(toAverage, average, "average week has no score", 100),
		AvgScoreToAverage:   ratio(toAverage, float64(daysLeft), "week is fully logged", 1),
	}
}

func ratio(num, den float64, reason string, scale float64) Metric {
	if den <= 0 {
		return Unknown(apperr.Inconsistent("%s", reason))
	}
	return Known(num / den * scale)
}
