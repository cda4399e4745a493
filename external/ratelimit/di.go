package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/foxseedlab/playhost/internal/config"
	"github.com/foxseedlab/playhost/internal/reputation"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"
)

const redisInitTimeout = 5 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), redisInitTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return client, nil
	})
	do.Provide(injector, func(i do.Injector) (reputation.GiveLedger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		client := do.MustInvoke[*redis.Client](i)
		return NewRedisLedger(client, LedgerConfig{
			Window:   24 * time.Hour,
			Cooldown: cfg.Recommendation.GiveCooldown,
		}), nil
	})
}
