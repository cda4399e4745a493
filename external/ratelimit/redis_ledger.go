package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/foxseedlab/playhost/internal/reputation"
)

const defaultKeyPrefix = "playhost:give"

type LedgerConfig struct {
	KeyPrefix string
	// Window bounds how long give history is kept for the daily count.
	Window time.Duration
	// Cooldown bounds how long the last give to a recipient is remembered.
	Cooldown time.Duration
}

// RedisLedger keeps each giver's gives in a sorted set scored by time, plus a
// per-recipient key holding the last give time.
type RedisLedger struct {
	client *redis.Client
	cfg    LedgerConfig
}

func NewRedisLedger(client *redis.Client, cfg LedgerConfig) *RedisLedger {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	return &RedisLedger{client: client, cfg: cfg}
}

func (r *RedisLedger) CountGivesSince(ctx context.Context, giverID string, since time.Time) (int, error) {
	key := r.historyKey(giverID)
	if err := r.client.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(since.UnixMilli(), 10)).Err(); err != nil {
		return 0, fmt.Errorf("redis zremrangebyscore: %w", err)
	}
	count, err := r.client.ZCount(ctx, key, strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount: %w", err)
	}
	return int(count), nil
}

func (r *RedisLedger) LastGiveTo(ctx context.Context, giverID, recipientID string) (time.Time, bool, error) {
	raw, err := r.client.Get(ctx, r.pairKey(giverID, recipientID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get: %w", err)
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse timestamp: %w", err)
	}
	return time.Unix(0, ts), true, nil
}

func (r *RedisLedger) RecordGive(ctx context.Context, giverID, recipientID string, at time.Time) error {
	nanos := at.UnixNano()
	historyKey := r.historyKey(giverID)

	pipe := r.client.TxPipeline()
	// Scores are milliseconds, which float64 holds exactly.
	pipe.ZAdd(ctx, historyKey, redis.Z{Score: float64(at.UnixMilli()), Member: recipientID + ":" + strconv.FormatInt(nanos, 10)})
	if r.cfg.Window > 0 {
		pipe.Expire(ctx, historyKey, r.cfg.Window)
	}
	pipe.Set(ctx, r.pairKey(giverID, recipientID), strconv.FormatInt(nanos, 10), r.cfg.Cooldown)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record give: %w", err)
	}
	return nil
}

func (r *RedisLedger) historyKey(giverID string) string {
	return fmt.Sprintf("%s:%s", r.cfg.KeyPrefix, giverID)
}

func (r *RedisLedger) pairKey(giverID, recipientID string) string {
	return fmt.Sprintf("%s:%s:to:%s", r.cfg.KeyPrefix, giverID, recipientID)
}

var _ reputation.GiveLedger = (*RedisLedger)(nil)
