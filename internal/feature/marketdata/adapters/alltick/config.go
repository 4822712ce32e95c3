// Package alltick はAllTick quote-b-api（REST）のクライアントを提供します。
package alltick

import (
	"os"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL はAllTickの外汇・貴金属・商品向けエンドポイントです。
	DefaultBaseURL = "https://quote.alltick.co/quote-b-api"
	// DefaultTimeout は1リクエスト全体のタイムアウトです。
	DefaultTimeout = 10 * time.Second
	// DefaultRateLimit は DefaultRateInterval あたりの最大リクエスト数です。
	DefaultRateLimit = 10
	// DefaultRateInterval はレート制限のウィンドウです。
	DefaultRateInterval = time.Minute
)

// Config はAllTickクライアントの設定を保持します。
type Config struct {
	Token        string        // アクセストークン
	BaseURL      string        // APIのベースURL
	Timeout      time.Duration // HTTPリクエストタイムアウト
	RateLimit    int           // RateInterval あたりの上限
	RateInterval time.Duration // レート制限のウィンドウ
}

// LoadConfig は環境変数からAllTickの設定を読み込みます。未設定の項目はデフォルト値になります。
func LoadConfig() Config {
	cfg := Config{
		Token:        os.Getenv("ALLTICK_TOKEN"),
		BaseURL:      os.Getenv("ALLTICK_BASE_URL"),
		Timeout:      durationEnv("ALLTICK_TIMEOUT", DefaultTimeout),
		RateLimit:    DefaultRateLimit,
		RateInterval: durationEnv("ALLTICK_RATE_INTERVAL", DefaultRateInterval),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if v, err := strconv.Atoi(os.Getenv("ALLTICK_RATE_LIMIT")); err == nil && v > 0 {
		cfg.RateLimit = v
	}
	return cfg
}

func durationEnv(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return def
}
