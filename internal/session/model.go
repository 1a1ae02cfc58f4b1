package session

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultTitle = "Unnamed Session"

// DefaultActiveDays is the weekday mask a new session starts with.
var DefaultActiveDays = []int{0, 1, 2, 3, 4}

// Session is a bounded tracking period. MaxScore caches the sum of
// 10*importance over CategoryIDs and is rewritten whenever either changes.
type Session struct {
	ID          uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID                      `gorm:"type:uuid;index;not null" json:"-"`
	Title       string                         `gorm:"type:text;not null" json:"title"`
	CategoryIDs datatypes.JSONSlice[uuid.UUID] `gorm:"not null" json:"categoryIds"`
	ActiveDays  datatypes.JSONSlice[int]       `gorm:"not null" json:"activeDays"`
	Start       time.Time                      `gorm:"not null" json:"start"`
	End         *time.Time                     `json:"end"`
	MaxScore    float64                        `gorm:"not null;default:0" json:"maxScore"`
	CreatedAt   time.Time                      `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time                      `gorm:"not null" json:"updatedAt"`
}

func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CategoryIDs == nil {
		s.CategoryIDs = datatypes.JSONSlice[uuid.UUID]{}
	}
	if s.ActiveDays == nil {
		s.ActiveDays = datatypes.NewJSONSlice(slices.Clone(DefaultActiveDays))
	}
	return nil
}

func (s *Session) HasCategory(id uuid.UUID) bool {
	return slices.Contains(s.CategoryIDs, id)
}
