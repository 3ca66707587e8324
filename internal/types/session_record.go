package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SessionStatusActive    = "active"
	SessionStatusPaused    = "paused"
	SessionStatusCompleted = "completed"
)

// SessionRecord is the durable form of a session. The in-memory tier
// (internal/store) is authoritative while a session is live; this row is
// the source of truth across process restarts. Queue and Effectiveness
// are JSON snapshots so a session rehydrates byte-for-byte on read-through.
type SessionRecord struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Status        string         `gorm:"column:status;not null;default:'active';index" json:"status"`
	Domains       datatypes.JSON `gorm:"type:jsonb;column:domains" json:"domains"`
	Queue         datatypes.JSON `gorm:"type:jsonb;column:queue" json:"queue"`
	Cursor        int            `gorm:"column:cursor;not null;default:0" json:"cursor"`
	Interactions  int            `gorm:"column:interactions;not null;default:0" json:"interactions"`
	Seq           int64          `gorm:"column:seq;not null;default:0" json:"seq"`
	Effectiveness datatypes.JSON `gorm:"type:jsonb;column:effectiveness" json:"effectiveness"`
	Degraded      bool           `gorm:"column:degraded;not null;default:false" json:"degraded"`
	StartedAt     time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	LastActiveAt  time.Time      `gorm:"column:last_active_at;not null;index" json:"last_active_at"`
	EndedAt       *time.Time     `gorm:"column:ended_at" json:"ended_at,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (SessionRecord) TableName() string { return "session_record" }
