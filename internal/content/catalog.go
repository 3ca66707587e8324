package content

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/repos"
	"github.com/yungbote/linguabridge-backend/internal/types"
)

// CatalogProvider serves items from the engine's own learning_item table.
// Used when the engine runs self-contained (no external content service)
// and in tests.
type CatalogProvider struct {
	log  *logger.Logger
	repo repos.LearningItemRepo
}

func NewCatalogProvider(log *logger.Logger, repo repos.LearningItemRepo) *CatalogProvider {
	return &CatalogProvider{
		log:  log.With("client", "ContentCatalogProvider"),
		repo: repo,
	}
}

func (p *CatalogProvider) FetchItems(ctx context.Context, domain string, rng DifficultyRange, excludeIDs []uuid.UUID, limit int) ([]*types.LearningItem, error) {
	return p.repo.ListByDomain(ctx, nil, domain, rng.Min, rng.Max, excludeIDs, limit)
}
