package day

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tally/internal/calendar"
	"tally/internal/scoring"
)

// Day is one date's scores within a session. Score holds one entry per
// session category at creation time, each with its own importance snapshot;
// MaxScore is the session maximum at creation and never follows the session.
type Day struct {
	ID              uuid.UUID                                  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID                                  `gorm:"type:uuid;index;not null" json:"-"`
	SessionID       uuid.UUID                                  `gorm:"type:uuid;not null;uniqueIndex:uq_days_session_date" json:"session"`
	Date            time.Time                                  `gorm:"not null;uniqueIndex:uq_days_session_date" json:"date"`
	CategoryIDs     datatypes.JSONSlice[uuid.UUID]             `gorm:"not null" json:"categories"`
	Score           datatypes.JSONSlice[scoring.CategoryScore] `gorm:"not null" json:"score"`
	TotalScore      float64                                    `gorm:"not null" json:"totalScore"`
	MaxScore        float64                                    `gorm:"not null" json:"maxScore"`
	PercentageScore float64                                    `gorm:"not null" json:"percentageScore"`
	CreatedAt       time.Time                                  `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time                                  `gorm:"not null" json:"updatedAt"`
}

func (d *Day) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CategoryIDs == nil {
		d.CategoryIDs = datatypes.JSONSlice[uuid.UUID]{}
	}
	if d.Score == nil {
		d.Score = datatypes.JSONSlice[scoring.CategoryScore]{}
	}
	return nil
}

// Entry returns the day's score entry for the category.
func (d *Day) Entry(categoryID uuid.UUID) (scoring.CategoryScore, bool) {
	i := slices.IndexFunc(d.Score, func(cs scoring.CategoryScore) bool { return cs.Category == categoryID })
	if i < 0 {
		return scoring.CategoryScore{}, false
	}
	return d.Score[i], true
}

// Key is the day's date as YYYY-MM-DD.
func (d *Day) Key() string { return calendar.YMD(d.Date) }

func (d *Day) apply(r scoring.Result) {
	d.Score = datatypes.NewJSONSlice(r.Score)
	d.TotalScore = r.TotalScore
	d.PercentageScore = r.PercentageScore
}

// ByDate indexes days by their YYYY-MM-DD key.
func ByDate(days []Day) map[string]Day {
	out := make(map[string]Day, len(days))
	for _, d := range days {
		out[d.Key()] = d
	}
	return out
}

// SortByDate orders days chronologically in place.
func SortByDate(days []Day) {
	slices.SortStableFunc(days, func(a, b Day) int { return a.Date.Compare(b.Date) })
}
