package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LearningItem is an atomic unit of study content. Rows are owned by the
// content service and read-only to the engine; PayloadRef points at the
// renderable payload there.
type LearningItem struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Domain     string         `gorm:"column:domain;not null;index" json:"domain"`
	Difficulty float64        `gorm:"column:difficulty;not null;default:1" json:"difficulty"`
	PayloadRef string         `gorm:"column:payload_ref;not null" json:"payload_ref"`
	Active     bool           `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (LearningItem) TableName() string { return "learning_item" }
