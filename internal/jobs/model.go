package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TypeStatsRefresh = "STATS_REFRESH"

	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

// Job is a unit of deferred work. Subject names what the job is about (a
// session id for stats refreshes) so pending duplicates can be collapsed.
type Job struct {
	ID     uint64    `gorm:"primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null"`

	Type    string         `gorm:"type:text;not null"`
	Subject string         `gorm:"type:text;index;not null;default:''"`
	Payload datatypes.JSON `gorm:"not null"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"type:text;index;not null;default:'PENDING'"` // PENDING/RUNNING/DONE/FAILED

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:8"`

	LockedBy *string    `gorm:"type:text"`
	LockedAt *time.Time

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
