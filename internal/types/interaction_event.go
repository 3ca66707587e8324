package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// InteractionEvent is an immutable fact: one answer or conversational turn.
// Appended once by the pipeline, never updated; the (session_id, seq)
// unique index is the idempotency guard for retried deliveries and the
// replay order for recovery.
type InteractionEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_session_seq,unique,priority:1" json:"session_id"`
	Seq        int64          `gorm:"column:seq;not null;index:idx_session_seq,unique,priority:2" json:"seq"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	ItemID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"item_id"`
	Domain     string         `gorm:"column:domain;not null" json:"domain"`
	Outcome    string         `gorm:"column:outcome;not null" json:"outcome"`
	LatencyMs  int64          `gorm:"column:latency_ms;not null;default:0" json:"latency_ms"`
	Data       datatypes.JSON `gorm:"type:jsonb;column:data" json:"data,omitempty"`
	OccurredAt time.Time      `gorm:"column:occurred_at;not null" json:"occurred_at"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

func (InteractionEvent) TableName() string { return "interaction_event" }
