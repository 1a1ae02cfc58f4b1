package category

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scope tells who owns a category.
type Scope string

const (
	ScopeUser    Scope = "user"
	ScopeSession Scope = "session"
	ScopeGlobal  Scope = "global"
)

// DefaultImportance applies when a category is created without one.
const DefaultImportance = 1.0

// DefaultColor is used when a category is created without a color.
var DefaultColor = Color{Name: "Gray", Hex: "#9ca3af"}

type Color struct {
	Name string `gorm:"type:text" json:"name"`
	Hex  string `gorm:"type:text" json:"hex"`
}

// Category is a weighted dimension of evaluation. Global categories have no
// user; session categories carry the session they were created for.
type Category struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user,omitempty"`
	SessionID  *uuid.UUID `gorm:"type:uuid;index" json:"session,omitempty"`
	Scope      Scope      `gorm:"type:text;not null;default:'user'" json:"ownerScope"`
	Name       string     `gorm:"type:text;not null" json:"name"`
	Importance float64    `gorm:"not null;default:1" json:"importance"`
	Color      Color      `gorm:"embedded;embeddedPrefix:color_" json:"color"`
	CreatedAt  time.Time  `gorm:"not null" json:"createdAt"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// PaletteColor is one entry of the selectable color palette.
type PaletteColor struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Name string    `gorm:"type:text;uniqueIndex;not null" json:"name"`
	Hex  string    `gorm:"type:text;not null" json:"hex"`
}

func (PaletteColor) TableName() string { return "colors" }

func (p *PaletteColor) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
