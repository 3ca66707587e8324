package app

import (
	"strings"
	"time"

	"github.com/yungbote/linguabridge-backend/internal/adaptive"
	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/scheduler"
	"github.com/yungbote/linguabridge-backend/internal/services"
	"github.com/yungbote/linguabridge-backend/internal/store"
	"github.com/yungbote/linguabridge-backend/internal/utils"
)

type Config struct {
	ServiceName  string
	AllowOrigins []string

	SchedulerParamsFile string
	Scheduler           scheduler.Params

	Session services.SessionConfig
	Store   store.Config

	RedisAddr        string
	AnalyticsChannel string

	ContentBaseURL string
	ContentTimeout time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	serviceName := utils.GetEnv("SERVICE_NAME", "linguabridge", log)
	allowOrigins := splitCSV(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log))

	paramsFile := utils.GetEnv("SCHEDULER_PARAMS_FILE", "", log)
	params := scheduler.DefaultParams()
	if paramsFile != "" {
		loaded, err := scheduler.LoadParamsFile(paramsFile)
		if err != nil {
			log.Warn("Failed to load scheduler params file, using defaults", "path", paramsFile, "error", err)
		} else {
			params = loaded
		}
	}

	sessionCfg := services.DefaultSessionConfig()
	sessionCfg.SessionCap = utils.GetEnvAsInt("SESSION_CAP", sessionCfg.SessionCap, log)
	sessionCfg.IdleTimeout = utils.GetEnvAsDuration("SESSION_IDLE_TIMEOUT", sessionCfg.IdleTimeout, log)
	sessionCfg.JanitorInterval = utils.GetEnvAsDuration("SESSION_JANITOR_INTERVAL", sessionCfg.JanitorInterval, log)
	sessionCfg.RetentionGrace = utils.GetEnvAsDuration("SESSION_RETENTION_GRACE", sessionCfg.RetentionGrace, log)
	sessionCfg.ReplayLimit = utils.GetEnvAsInt("SESSION_REPLAY_LIMIT", sessionCfg.ReplayLimit, log)

	adaptiveCfg := adaptive.DefaultConfig()
	adaptiveCfg.LowThreshold = utils.GetEnvAsFloat("ADAPTIVE_LOW_THRESHOLD", adaptiveCfg.LowThreshold, log)
	adaptiveCfg.HighThreshold = utils.GetEnvAsFloat("ADAPTIVE_HIGH_THRESHOLD", adaptiveCfg.HighThreshold, log)
	adaptiveCfg.WindowSize = utils.GetEnvAsInt("ADAPTIVE_WINDOW_SIZE", adaptiveCfg.WindowSize, log)
	adaptiveCfg.FetchBatch = utils.GetEnvAsInt("ADAPTIVE_FETCH_BATCH", adaptiveCfg.FetchBatch, log)
	adaptiveCfg.MinDifficulty = params.MinDifficulty
	adaptiveCfg.MaxDifficulty = params.MaxDifficulty
	sessionCfg.Adaptive = adaptiveCfg

	storeCfg := store.DefaultConfig()
	storeCfg.FlushRetries = utils.GetEnvAsInt("STORE_FLUSH_RETRIES", storeCfg.FlushRetries, log)
	storeCfg.FlushBackoff = utils.GetEnvAsDuration("STORE_FLUSH_BACKOFF", storeCfg.FlushBackoff, log)

	return Config{
		ServiceName:         serviceName,
		AllowOrigins:        allowOrigins,
		SchedulerParamsFile: paramsFile,
		Scheduler:           params,
		Session:             sessionCfg,
		Store:               storeCfg,
		RedisAddr:           utils.GetEnv("REDIS_ADDR", "", log),
		AnalyticsChannel:    utils.GetEnv("ANALYTICS_CHANNEL", "analytics", log),
		ContentBaseURL:      utils.GetEnv("CONTENT_BASE_URL", "", log),
		ContentTimeout:      utils.GetEnvAsDuration("CONTENT_TIMEOUT", 5*time.Second, log),
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
