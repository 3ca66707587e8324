package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/linguabridge-backend/internal/logger"
)

type redisSink struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisSink publishes analytics events on a redis pub/sub channel.
// Downstream consumers (the analytics warehouse) subscribe out of band.
func NewRedisSink(log *logger.Logger, addr, channel string) (Sink, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "analytics"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisSink{
		log:     log.With("service", "RedisAnalyticsSink"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

// Emit is fire-and-forget: marshal and publish on a detached goroutine so
// the interaction path never waits on the broker.
func (s *redisSink) Emit(ctx context.Context, ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("analytics event marshal failed", "error", err)
		return
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.rdb.Publish(pubCtx, s.channel, raw).Err(); err != nil {
			s.log.Warn("analytics publish failed", "error", err)
		}
	}()
}

func (s *redisSink) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
