// Package scoring computes a day's weighted scores against the maximum a
// session allows. Everything here is a pure function of its arguments.
package scoring

import (
	"math"

	"github.com/google/uuid"

	"tally/internal/apperr"
)

// MaxRawScore is the highest raw score a category can get on one day.
const MaxRawScore = 10

// CategoryScore is one category's entry inside a day. Importance is a copy
// taken when the day was created, never a live reference.
type CategoryScore struct {
	Category        uuid.UUID `json:"category"`
	Score           float64   `json:"score"`
	Importance      float64   `json:"importance"`
	CalculatedScore float64   `json:"calculatedScore"`
}

// Weight is a session category as seen by the engine.
type Weight struct {
	CategoryID uuid.UUID
	Importance float64
}

// RawScore is a caller-submitted score for one category.
type RawScore struct {
	CategoryID uuid.UUID `json:"category"`
	Score      float64   `json:"score"`
}

type Result struct {
	Score           []CategoryScore `json:"score"`
	MaxScore        float64         `json:"maxScore"`
	TotalScore      float64         `json:"totalScore"`
	PercentageScore float64         `json:"percentageScore"`
}

// MaxScore is the sum of MaxRawScore*importance over categories.
func MaxScore(categories []Weight) float64 {
	var sum float64
	for _, c := range categories {
		sum += MaxRawScore * c.Importance
	}
	return sum
}

// PercentageOf returns total/max*100, or an Inconsistent error when max is 0.
func PercentageOf(total, max float64) (float64, error) {
	if max == 0 {
		return 0, apperr.Inconsistent("maximum score is zero")
	}
	return total / max * 100, nil
}

// ComputeInitial builds the score vector for a new day: one entry per
// session category, in session order. Categories without a provided score
// get 0; provided scores for unknown categories are ignored.
func ComputeInitial(categories []Weight, provided []RawScore) (Result, error) {
	if len(categories) == 0 {
		return Result{}, apperr.Inconsistent("session has no categories")
	}
	if err := validateScores(provided); err != nil {
		return Result{}, err
	}

	out := Result{Score: make([]CategoryScore, 0, len(categories))}
	for _, c := range categories {
		if c.Importance <= 0 {
			return Result{}, apperr.Invalid("category %s has non-positive importance %v", c.CategoryID, c.Importance)
		}
		score, _ := lookup(provided, c.CategoryID)
		cs := CategoryScore{
			Category:        c.CategoryID,
			Score:           score,
			Importance:      c.Importance,
			CalculatedScore: score * c.Importance,
		}
		out.Score = append(out.Score, cs)
		out.TotalScore += cs.CalculatedScore
	}
	out.MaxScore = MaxScore(categories)

	pct, err := PercentageOf(out.TotalScore, out.MaxScore)
	if err != nil {
		return Result{}, err
	}
	out.PercentageScore = pct
	return out, nil
}

// Update overlays newScores on existing entries. A category absent from
// newScores keeps its previous score. The category set and importance
// snapshots are left as they are; the percentage uses cachedMax, the day's
// own maxScore snapshot.
func Update(existing []CategoryScore, newScores []RawScore, cachedMax float64) (Result, error) {
	if err := validateScores(newScores); err != nil {
		return Result{}, err
	}

	out := Result{Score: make([]CategoryScore, 0, len(existing)), MaxScore: cachedMax}
	for _, e := range existing {
		score := e.Score
		if s, ok := lookup(newScores, e.Category); ok {
			score = s
		}
		cs := CategoryScore{
			Category:        e.Category,
			Score:           score,
			Importance:      e.Importance,
			CalculatedScore: score * e.Importance,
		}
		out.Score = append(out.Score, cs)
		out.TotalScore += cs.CalculatedScore
	}

	pct, err := PercentageOf(out.TotalScore, cachedMax)
	if err != nil {
		return Result{}, err
	}
	out.PercentageScore = pct
	return out, nil
}

// lookup returns the first provided score for id.
func lookup(scores []RawScore, id uuid.UUID) (float64, bool) {
	for _, s := range scores {
		if s.CategoryID == id {
			return s.Score, true
		}
	}
	return 0, false
}

func validateScores(scores []RawScore) error {
	for _, s := range scores {
		if s.CategoryID == uuid.Nil {
			return apperr.Invalid("score entry without category")
		}
		if math.IsNaN(s.Score) || s.Score < 0 || s.Score > MaxRawScore {
			return apperr.Invalid("score %v for category %s is outside [0,%d]", s.Score, s.CategoryID, MaxRawScore)
		}
	}
	return nil
}
