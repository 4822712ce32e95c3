// Package redis はオプションのRedis接続を提供します。
package redis

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPingTimeout は起動時の疎通確認の上限時間です。
const DefaultPingTimeout = 3 * time.Second

// Config はRedis接続の設定です。Host が空の場合Redisは使用しません。
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// LoadConfig は REDIS_HOST / REDIS_PORT / REDIS_PASSWORD / REDIS_DB を読み込みます。
func LoadConfig() Config {
	cfg := Config{
		Host:     strings.TrimSpace(os.Getenv("REDIS_HOST")),
		Port:     strings.TrimSpace(os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if cfg.Port == "" {
		cfg.Port = "6379"
	}
	if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil && v >= 0 {
		cfg.DB = v
	}
	return cfg
}

// Enabled はRedisが設定されているかを返します。
func (c Config) Enabled() bool { return c.Host != "" }

// Addr は host:port を返します。
func (c Config) Addr() string { return c.Host + ":" + c.Port }

// NewRedisClient はRedisに接続し疎通を確認します。
// 未設定の場合は (nil, nil) を返し、呼び出し側はプロセス内の代替手段を使います。
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if !cfg.Enabled() {
		slog.Info("Redis not configured")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 接続確認
	ctx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("Redis connection failed", "address", cfg.Addr(), "error", err)
		_ = rdb.Close()
		return nil, err
	}

	slog.Info("Redis connection successful", "address", cfg.Addr())
	return rdb, nil
}
