package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/linguabridge-backend/internal/handlers"
	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/server"
)

type Handlers struct {
	Session *handlers.SessionHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Session: handlers.NewSessionHandler(log, services.Session),
	}
}

func wireRouter(log *logger.Logger, cfg Config, h Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		Log:            log,
		SessionHandler: h.Session,
		AllowOrigins:   cfg.AllowOrigins,
		ServiceName:    cfg.ServiceName,
	})
}
