package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/linguabridge-backend/internal/types"
)

// QueueItem is one candidate review in a session's active queue. Injected
// marks items placed by the adaptive controller, which are allowed to be
// not-yet-due.
type QueueItem struct {
	ItemID        uuid.UUID `json:"item_id"`
	Domain        string    `json:"domain"`
	Difficulty    float64   `json:"difficulty"`
	PayloadRef    string    `json:"payload_ref"`
	NextDueAt     time.Time `json:"next_due_at"`
	StabilityDays float64   `json:"stability_days"`
	Injected      bool      `json:"injected,omitempty"`
}

// SessionContext is the runtime form of one learning session. The fast
// tier holds it while the session is live; ToRecord/FromRecord round-trip
// it through the durable session_record row.
type SessionContext struct {
	ID            uuid.UUID          `json:"id"`
	UserID        uuid.UUID          `json:"user_id"`
	Status        string             `json:"status"`
	Domains       []string           `json:"domains"`
	Queue         []QueueItem        `json:"queue"`
	Cursor        int                `json:"cursor"`
	Interactions  int                `json:"interactions"`
	Seq           int64              `json:"seq"`
	Effectiveness map[string]float64 `json:"effectiveness"`
	Degraded      bool               `json:"degraded"`
	StartedAt     time.Time          `json:"started_at"`
	LastActiveAt  time.Time          `json:"last_active_at"`
	EndedAt       *time.Time         `json:"ended_at,omitempty"`
}

func (s *SessionContext) Clone() *SessionContext {
	if s == nil {
		return nil
	}
	out := *s
	out.Domains = append([]string(nil), s.Domains...)
	out.Queue = append([]QueueItem(nil), s.Queue...)
	out.Effectiveness = make(map[string]float64, len(s.Effectiveness))
	for k, v := range s.Effectiveness {
		out.Effectiveness[k] = v
	}
	if s.EndedAt != nil {
		ended := *s.EndedAt
		out.EndedAt = &ended
	}
	return &out
}

// Remaining counts queue entries at or past the cursor.
func (s *SessionContext) Remaining() int {
	if s.Cursor >= len(s.Queue) {
		return 0
	}
	return len(s.Queue) - s.Cursor
}

// Current returns the queue entry under the cursor, or nil when the queue
// is exhausted.
func (s *SessionContext) Current() *QueueItem {
	if s.Cursor < 0 || s.Cursor >= len(s.Queue) {
		return nil
	}
	return &s.Queue[s.Cursor]
}

func (s *SessionContext) ToRecord() (*types.SessionRecord, error) {
	domains, err := json.Marshal(s.Domains)
	if err != nil {
		return nil, fmt.Errorf("marshal session domains: %w", err)
	}
	queue, err := json.Marshal(s.Queue)
	if err != nil {
		return nil, fmt.Errorf("marshal session queue: %w", err)
	}
	eff, err := json.Marshal(s.Effectiveness)
	if err != nil {
		return nil, fmt.Errorf("marshal session effectiveness: %w", err)
	}
	return &types.SessionRecord{
		ID:            s.ID,
		UserID:        s.UserID,
		Status:        s.Status,
		Domains:       datatypes.JSON(domains),
		Queue:         datatypes.JSON(queue),
		Cursor:        s.Cursor,
		Interactions:  s.Interactions,
		Seq:           s.Seq,
		Effectiveness: datatypes.JSON(eff),
		Degraded:      s.Degraded,
		StartedAt:     s.StartedAt,
		LastActiveAt:  s.LastActiveAt,
		EndedAt:       s.EndedAt,
	}, nil
}

func FromRecord(rec *types.SessionRecord) (*SessionContext, error) {
	sc := &SessionContext{
		ID:            rec.ID,
		UserID:        rec.UserID,
		Status:        rec.Status,
		Cursor:        rec.Cursor,
		Interactions:  rec.Interactions,
		Seq:           rec.Seq,
		Degraded:      rec.Degraded,
		StartedAt:     rec.StartedAt,
		LastActiveAt:  rec.LastActiveAt,
		EndedAt:       rec.EndedAt,
		Effectiveness: map[string]float64{},
	}
	if len(rec.Domains) > 0 {
		if err := json.Unmarshal(rec.Domains, &sc.Domains); err != nil {
			return nil, fmt.Errorf("unmarshal session domains: %w", err)
		}
	}
	if len(rec.Queue) > 0 {
		if err := json.Unmarshal(rec.Queue, &sc.Queue); err != nil {
			return nil, fmt.Errorf("unmarshal session queue: %w", err)
		}
	}
	if len(rec.Effectiveness) > 0 {
		if err := json.Unmarshal(rec.Effectiveness, &sc.Effectiveness); err != nil {
			return nil, fmt.Errorf("unmarshal session effectiveness: %w", err)
		}
	}
	return sc, nil
}
