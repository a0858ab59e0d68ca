package ratelimit

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/vindesk/internal/config"
	lifecycledomain "github.com/smallbiznis/vindesk/internal/lifecycle/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLimiter),
)

// NewRedisClient returns nil when REDIS_URL is empty.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

// NewLimiter returns a nil limiter without redis; the lifecycle then admits
// every submission.
func NewLimiter(client *redis.Client, desk *config.DeskConfigHolder, log *zap.Logger) lifecycledomain.RateLimiter {
	log = log.Named("rate.limit")
	if client == nil {
		log.Info("submission rate limit disabled, REDIS_URL is empty")
		return nil
	}
	log.Info("submission rate limit enabled",
		zap.Int("per_minute", desk.Get().Submission.RateLimitPerMinute),
	)
	return NewSubmissionLimiter(NewTokenBucket(client), desk)
}
