package content

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/linguabridge-backend/internal/types"
)

// DifficultyRange bounds a fetch request, inclusive on both ends.
type DifficultyRange struct {
	Min float64
	Max float64
}

// Provider is the content service boundary. The engine never assumes an
// ordering on the returned items; callers re-sort. A failed fetch is
// recoverable: the adaptive controller degrades to holding the current
// queue.
type Provider interface {
	FetchItems(ctx context.Context, domain string, rng DifficultyRange, excludeIDs []uuid.UUID, limit int) ([]*types.LearningItem, error)
}
