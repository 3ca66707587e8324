package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one analytics record: the interaction fact plus a snapshot of
// the recomputed effectiveness signal.
type Event struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	ItemID    uuid.UUID `json:"item_id"`
	Domain    string    `json:"domain"`
	Outcome   string    `json:"outcome"`
	LatencyMs int64     `json:"latency_ms"`
	Signal    float64   `json:"signal"`
	State     string    `json:"adaptive_state"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Sink is the analytics boundary. Delivery is best-effort and must never
// block an interaction; implementations swallow their own failures.
type Sink interface {
	Emit(ctx context.Context, ev Event)
	Close() error
}

type noopSink struct{}

// NewNoopSink is used when no analytics backend is configured.
func NewNoopSink() Sink { return noopSink{} }

func (noopSink) Emit(ctx context.Context, ev Event) {}
func (noopSink) Close() error                       { return nil }
