// Package ratelimiter は外部API呼び出しの頻度を制限します。
package ratelimiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter は外部API呼び出しの前に許可が出るまで待機するインターフェースです。
type Limiter interface {
	// Wait は呼び出しが許可されるまでブロックします。ctx がキャンセルされた場合はエラーを返します。
	Wait(ctx context.Context) error
}

// LocalLimiter はプロセス内のトークンバケットによるLimiter実装です。
type LocalLimiter struct {
	l *rate.Limiter
}

var _ Limiter = (*LocalLimiter)(nil)

// NewLocalLimiter は interval あたり limit 回まで許可するLocalLimiterを生成します。
// バーストは limit 回までで、以降は interval/limit ごとに1回補充されます。
func NewLocalLimiter(limit int, interval time.Duration) *LocalLimiter {
	if limit <= 0 {
		limit = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &LocalLimiter{l: rate.NewLimiter(rate.Every(interval/time.Duration(limit)), limit)}
}

// Wait はトークンが得られるまで待機します。
func (l *LocalLimiter) Wait(ctx context.Context) error {
	return l.l.Wait(ctx)
}

// New はRedisが利用可能なら複数プロセスで共有する固定ウィンドウ方式、
// そうでなければプロセス内のトークンバケットを返します。
func New(rdb *redis.Client, namespace string, limit int, interval time.Duration) Limiter {
	local := NewLocalLimiter(limit, interval)
	if rdb == nil {
		return local
	}
	return NewRedisLimiter(rdb, namespace, limit, interval, local)
}
