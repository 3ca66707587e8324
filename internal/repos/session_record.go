package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/types"
)

type SessionRecordRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.SessionRecord, error)
	Upsert(ctx context.Context, tx *gorm.DB, record *types.SessionRecord) error
	// PurgeEndedBefore removes completed sessions past the audit retention
	// window. Active and paused sessions are never purged.
	PurgeEndedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type sessionRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRecordRepo(db *gorm.DB, baseLog *logger.Logger) SessionRecordRepo {
	repoLog := baseLog.With("repo", "SessionRecordRepo")
	return &sessionRecordRepo{db: db, log: repoLog}
}

func (sr *sessionRecordRepo) GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.SessionRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var result types.SessionRecord
	err := transaction.WithContext(ctx).
		Where("id = ?", sessionID).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (sr *sessionRecordRepo) Upsert(ctx context.Context, tx *gorm.DB, record *types.SessionRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	record.UpdatedAt = time.Now().UTC()
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(record).Error
}

func (sr *sessionRecordRepo) PurgeEndedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	res := transaction.WithContext(ctx).
		Where("status = ? AND ended_at IS NOT NULL AND ended_at < ?", types.SessionStatusCompleted, cutoff).
		Delete(&types.SessionRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
