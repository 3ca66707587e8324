package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/types"
)

type LearningItemRepo interface {
	GetByIDs(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) ([]*types.LearningItem, error)
	ListByDomain(ctx context.Context, tx *gorm.DB, domain string, minDifficulty, maxDifficulty float64, excludeIDs []uuid.UUID, limit int) ([]*types.LearningItem, error)
	Create(ctx context.Context, tx *gorm.DB, items []*types.LearningItem) ([]*types.LearningItem, error)
}

type learningItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearningItemRepo(db *gorm.DB, baseLog *logger.Logger) LearningItemRepo {
	repoLog := baseLog.With("repo", "LearningItemRepo")
	return &learningItemRepo{db: db, log: repoLog}
}

func (lr *learningItemRepo) GetByIDs(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) ([]*types.LearningItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}

	var results []*types.LearningItem
	if len(itemIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", itemIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (lr *learningItemRepo) ListByDomain(ctx context.Context, tx *gorm.DB, domain string, minDifficulty, maxDifficulty float64, excludeIDs []uuid.UUID, limit int) ([]*types.LearningItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}

	var results []*types.LearningItem
	q := transaction.WithContext(ctx).
		Where("domain = ? AND active = ?", domain, true).
		Where("difficulty >= ? AND difficulty <= ?", minDifficulty, maxDifficulty)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (lr *learningItemRepo) Create(ctx context.Context, tx *gorm.DB, items []*types.LearningItem) ([]*types.LearningItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}

	if len(items) == 0 {
		return []*types.LearningItem{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
