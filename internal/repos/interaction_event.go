package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/types"
)

type InteractionEventRepo interface {
	// Append writes one event, ignoring duplicates on (session_id, seq) so
	// retried deliveries stay idempotent. Returns true when the row landed.
	Append(ctx context.Context, tx *gorm.DB, event *types.InteractionEvent) (bool, error)
	ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, limit int) ([]*types.InteractionEvent, error)
	// ListRecentBySession returns the last limit events in seq order, so a
	// bounded replay starts from the session's most recent history.
	ListRecentBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, limit int) ([]*types.InteractionEvent, error)
}

type interactionEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInteractionEventRepo(db *gorm.DB, baseLog *logger.Logger) InteractionEventRepo {
	repoLog := baseLog.With("repo", "InteractionEventRepo")
	return &interactionEventRepo{db: db, log: repoLog}
}

func (ir *interactionEventRepo) Append(ctx context.Context, tx *gorm.DB, event *types.InteractionEvent) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = ir.db
	}

	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "seq"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (ir *interactionEventRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, limit int) ([]*types.InteractionEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = ir.db
	}

	var results []*types.InteractionEvent
	q := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ir *interactionEventRepo) ListRecentBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, limit int) ([]*types.InteractionEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = ir.db
	}

	var results []*types.InteractionEvent
	q := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}
