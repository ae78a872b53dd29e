package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"log/slog"

	redis "github.com/redis/go-redis/v9"
)

type redisRateLimiter struct {
	client  *redis.Client
	logger  *slog.Logger
	limit   int
	window  time.Duration
	prefix  string
	timeout time.Duration
	seq     atomic.Uint64
}

// NewRedisRateLimiter keeps per-user command timestamps in a Redis sorted
// set, so the window survives restarts and is shared across replicas.
// Redis errors fail open.
func NewRedisRateLimiter(addr, password string, db, limit int, window time.Duration, logger *slog.Logger) (RateLimiter, error) {
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &redisRateLimiter{
		client:  client,
		logger:  logger,
		limit:   limit,
		window:  window,
		prefix:  "tipline:ratelimit:",
		timeout: 250 * time.Millisecond,
	}, nil
}

func (rl *redisRateLimiter) Allow(ctx context.Context, userID int64) bool {
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	now := time.Now()
	cutoff := now.Add(-rl.window)
	key := fmt.Sprintf("%s%d", rl.prefix, userID)

	pipe := rl.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff.UnixNano()))
	// sequence keeps members unique when two commands land in the same nanosecond
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d-%d", now.UnixNano(), rl.seq.Add(1)),
	})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logRedisError("pipeline", err)
		return true
	}
	return int(count.Val()) <= rl.limit
}

func (rl *redisRateLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

func (rl *redisRateLimiter) logRedisError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("redis rate limiter error", "op", op, "error", err)
}
