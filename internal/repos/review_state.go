package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/types"
)

type ReviewStateRepo interface {
	GetByUserItem(ctx context.Context, tx *gorm.DB, userID, itemID uuid.UUID) (*types.ReviewState, error)
	ListDueByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, domains []string, before time.Time, limit int) ([]*types.ReviewState, error)
	ListLapsedByUserDomain(ctx context.Context, tx *gorm.DB, userID uuid.UUID, domain string, limit int) ([]*types.ReviewState, error)
	Create(ctx context.Context, tx *gorm.DB, state *types.ReviewState) error
	// UpdateCAS persists state guarded by its Version column. Returns false
	// when another writer got there first; the caller reloads and retries.
	UpdateCAS(ctx context.Context, tx *gorm.DB, state *types.ReviewState) (bool, error)
}

type reviewStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewStateRepo(db *gorm.DB, baseLog *logger.Logger) ReviewStateRepo {
	repoLog := baseLog.With("repo", "ReviewStateRepo")
	return &reviewStateRepo{db: db, log: repoLog}
}

func (rr *reviewStateRepo) GetByUserItem(ctx context.Context, tx *gorm.DB, userID, itemID uuid.UUID) (*types.ReviewState, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var result types.ReviewState
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (rr *reviewStateRepo) ListDueByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, domains []string, before time.Time, limit int) ([]*types.ReviewState, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.ReviewState
	q := transaction.WithContext(ctx).
		Where("user_id = ? AND next_due_at <= ?", userID, before)
	if len(domains) > 0 {
		q = q.Where("domain IN ?", domains)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("next_due_at ASC, stability_days ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *reviewStateRepo) ListLapsedByUserDomain(ctx context.Context, tx *gorm.DB, userID uuid.UUID, domain string, limit int) ([]*types.ReviewState, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.ReviewState
	q := transaction.WithContext(ctx).
		Where("user_id = ? AND domain = ? AND lapses > 0", userID, domain)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("lapses DESC, next_due_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *reviewStateRepo) Create(ctx context.Context, tx *gorm.DB, state *types.ReviewState) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).Create(state).Error
}

func (rr *reviewStateRepo) UpdateCAS(ctx context.Context, tx *gorm.DB, state *types.ReviewState) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.ReviewState{}).
		Where("id = ? AND version = ?", state.ID, state.Version).
		Updates(map[string]any{
			"reps":             state.Reps,
			"lapses":           state.Lapses,
			"stability_days":   state.StabilityDays,
			"difficulty":       state.Difficulty,
			"last_reviewed_at": state.LastReviewedAt,
			"next_due_at":      state.NextDueAt,
			"version":          state.Version + 1,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		rr.log.Debug("review state CAS lost", "state_id", state.ID.String(), "version", state.Version)
		return false, nil
	}
	state.Version++
	return true, nil
}
