package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/repos"
)

type Repos struct {
	LearningItem     repos.LearningItemRepo
	ReviewState      repos.ReviewStateRepo
	SessionRecord    repos.SessionRecordRepo
	InteractionEvent repos.InteractionEventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		LearningItem:     repos.NewLearningItemRepo(db, log),
		ReviewState:      repos.NewReviewStateRepo(db, log),
		SessionRecord:    repos.NewSessionRecordRepo(db, log),
		InteractionEvent: repos.NewInteractionEventRepo(db, log),
	}
}
