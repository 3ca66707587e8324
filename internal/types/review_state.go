package types

import (
	"time"

	"github.com/google/uuid"
)

// ReviewState is the per (user, item) scheduling record. Exactly one row
// per pair; mutated only by the scheduler and flushed through the
// ReviewStateRepo CAS update (Version column guards concurrent flushes
// after a crash-recovery reload).
type ReviewState struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_user_item,unique,priority:1" json:"user_id"`
	ItemID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_user_item,unique,priority:2" json:"item_id"`
	Domain         string     `gorm:"column:domain;not null;index" json:"domain"`
	Reps           int        `gorm:"column:reps;not null;default:0" json:"reps"`
	Lapses         int        `gorm:"column:lapses;not null;default:0" json:"lapses"`
	StabilityDays  float64    `gorm:"column:stability_days;not null;default:0" json:"stability_days"`
	Difficulty     float64    `gorm:"column:difficulty;not null;default:1" json:"difficulty"`
	LastReviewedAt *time.Time `gorm:"column:last_reviewed_at" json:"last_reviewed_at,omitempty"`
	NextDueAt      time.Time  `gorm:"column:next_due_at;not null;index" json:"next_due_at"`
	Version        int64      `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (ReviewState) TableName() string { return "review_state" }
