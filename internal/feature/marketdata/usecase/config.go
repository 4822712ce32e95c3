package usecase

import (
	"os"
	"strconv"
	"strings"
	"time"

	"quote_backend/internal/shared/retry"
)

// Config selects which instruments are served by the session subsystem.
type Config struct {
	SessionInstruments []string
	QuoteWait          retry.Policy
}

// LoadConfig は環境変数からクエリ層の設定を読み込みます。
//
//	SESSION_INSTRUMENTS  セッション経由で返す銘柄（カンマ区切り、既定 "AG"）
//	QUOTE_WAIT_ATTEMPTS  気配キャッシュを待つ回数（既定 5）
//	QUOTE_WAIT_INTERVAL  待機の間隔（既定 1.5s）
func LoadConfig() Config {
	cfg := Config{QuoteWait: DefaultQuoteWait}

	list := os.Getenv("SESSION_INSTRUMENTS")
	if strings.TrimSpace(list) == "" {
		list = "AG"
	}
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.SessionInstruments = append(cfg.SessionInstruments, s)
		}
	}

	if v, err := strconv.Atoi(os.Getenv("QUOTE_WAIT_ATTEMPTS")); err == nil && v > 0 {
		cfg.QuoteWait.Attempts = v
	}
	if d, err := time.ParseDuration(os.Getenv("QUOTE_WAIT_INTERVAL")); err == nil && d >= 0 {
		cfg.QuoteWait.Interval = d
	}
	return cfg
}
