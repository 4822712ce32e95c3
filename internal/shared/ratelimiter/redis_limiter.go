package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter は INCR + EXPIRE による固定ウィンドウのLimiter実装です。
// 同じ namespace を使う全プロセスで上限を共有します。
// Redisへのアクセスに失敗した場合は fallback に委譲します。
type RedisLimiter struct {
	rdb       redis.Cmdable
	namespace string
	limit     int64
	interval  time.Duration
	fallback  Limiter
	now       func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter は新しいRedisLimiterを生成します。namespace が空の場合は "ratelimit" を使います。
func NewRedisLimiter(rdb redis.Cmdable, namespace string, limit int, interval time.Duration, fallback Limiter) *RedisLimiter {
	if namespace == "" {
		namespace = "ratelimit"
	}
	if limit <= 0 {
		limit = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	if fallback == nil {
		fallback = NewLocalLimiter(limit, interval)
	}
	return &RedisLimiter{
		rdb:       rdb,
		namespace: namespace,
		limit:     int64(limit),
		interval:  interval,
		fallback:  fallback,
		now:       time.Now,
	}
}

// Wait は現在のウィンドウに空きがあれば即座に戻り、上限に達していれば次のウィンドウまで待機します。
func (r *RedisLimiter) Wait(ctx context.Context) error {
	for {
		now := r.now()
		window := now.UnixNano() / r.interval.Nanoseconds()
		key := r.key(window)

		count, err := r.rdb.Incr(ctx, key).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("redis rate limiter unavailable, using local limiter", "key", key, "error", err)
			return r.fallback.Wait(ctx)
		}
		if count == 1 {
			// キーはウィンドウ終了後に不要になる
			if err := r.rdb.Expire(ctx, key, r.interval).Err(); err != nil {
				slog.Warn("failed to set rate limit window expiry", "key", key, "error", err)
			}
		}
		if count <= r.limit {
			return nil
		}

		next := time.Unix(0, (window+1)*r.interval.Nanoseconds())
		sleep := next.Sub(now)
		slog.Info("rate limit reached, waiting for next window", "namespace", r.namespace, "limit", r.limit, "sleep", sleep)

		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (r *RedisLimiter) key(window int64) string {
	return fmt.Sprintf("%s:%d", safe(r.namespace), window)
}

// safe はRedisキーで問題になる文字をエスケープします。
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
