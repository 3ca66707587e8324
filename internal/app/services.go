package app

import (
	"fmt"

	"github.com/yungbote/linguabridge-backend/internal/analytics"
	"github.com/yungbote/linguabridge-backend/internal/content"
	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/pipeline"
	"github.com/yungbote/linguabridge-backend/internal/scheduler"
	"github.com/yungbote/linguabridge-backend/internal/services"
	"github.com/yungbote/linguabridge-backend/internal/store"
)

type Services struct {
	Store    store.Store
	Sink     analytics.Sink
	Content  content.Provider
	Pipeline *pipeline.Pipeline
	Session  services.SessionService
}

func wireServices(log *logger.Logger, cfg Config, repos Repos) (Services, error) {
	log.Info("Wiring services...")

	st := store.NewTwoTierStore(log, cfg.Store, repos.SessionRecord)

	sink := analytics.NewNoopSink()
	if cfg.RedisAddr != "" {
		s, err := analytics.NewRedisSink(log, cfg.RedisAddr, cfg.AnalyticsChannel)
		if err != nil {
			return Services{}, fmt.Errorf("init analytics sink: %w", err)
		}
		sink = s
	} else {
		log.Warn("REDIS_ADDR not set, analytics events will be dropped")
	}

	var provider content.Provider
	if cfg.ContentBaseURL != "" {
		c, err := content.NewHTTPClient(log, cfg.ContentBaseURL, cfg.ContentTimeout)
		if err != nil {
			return Services{}, fmt.Errorf("init content client: %w", err)
		}
		provider = c
	} else {
		log.Info("CONTENT_BASE_URL not set, serving items from the local catalog")
		provider = content.NewCatalogProvider(log, repos.LearningItem)
	}

	sched := scheduler.New(cfg.Scheduler)
	pl := pipeline.New(log, sched, repos.ReviewState, repos.InteractionEvent, sink)

	session := services.NewSessionService(
		log,
		cfg.Session,
		st,
		pl,
		repos.ReviewState,
		repos.LearningItem,
		repos.InteractionEvent,
		repos.SessionRecord,
		provider,
	)

	return Services{
		Store:    st,
		Sink:     sink,
		Content:  provider,
		Pipeline: pl,
		Session:  session,
	}, nil
}
