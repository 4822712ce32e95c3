// Package tqsession は認証付きWebSocketセッション（DIFFプロトコル）で
// 先物のK線と気配を購読するアダプタです。
package tqsession

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAuthURL   = "https://auth.shinnytech.com/auth/realms/shinnytech/protocol/openid-connect/token"
	DefaultMDURL     = "wss://openmd.shinnytech.com/t/md/front/mobile"
	DefaultClientID  = "shinny_tq"
	DefaultContracts = "AG=KQ.m@SHFE.ag"

	// DefaultTimeout は認証リクエストとWebSocketハンドシェイクのタイムアウトです。
	DefaultTimeout = 10 * time.Second
	// DefaultFetchTimeout は直接取得でデータの到着を待つ上限です。
	DefaultFetchTimeout = 8 * time.Second
	// DefaultViewWidth は set_chart で要求するバー数です。
	DefaultViewWidth = 500
	// DefaultRefreshBefore はトークン失効のこの時間前にセッションを張り直します。
	DefaultRefreshBefore = 5 * time.Minute
)

// Config はセッションアダプタの設定を保持します。
type Config struct {
	AuthURL       string
	MDURL         string
	ClientID      string
	ClientSecret  string
	Username      string
	Password      string
	Contracts     map[string]string // 銘柄コード（大文字）→ プロバイダの契約コード
	Timeout       time.Duration
	FetchTimeout  time.Duration
	ViewWidth     int
	RefreshBefore time.Duration
}

// LoadConfig は環境変数からセッションアダプタの設定を読み込みます。
func LoadConfig() Config {
	cfg := Config{
		AuthURL:       envOr("TQ_AUTH_URL", DefaultAuthURL),
		MDURL:         envOr("TQ_MD_URL", DefaultMDURL),
		ClientID:      envOr("TQ_CLIENT_ID", DefaultClientID),
		ClientSecret:  os.Getenv("TQ_CLIENT_SECRET"),
		Username:      os.Getenv("TQ_USERNAME"),
		Password:      os.Getenv("TQ_PASSWORD"),
		Contracts:     ParseContracts(envOr("SESSION_CONTRACTS", DefaultContracts)),
		Timeout:       durationEnv("TQ_TIMEOUT", DefaultTimeout),
		FetchTimeout:  durationEnv("TQ_FETCH_TIMEOUT", DefaultFetchTimeout),
		ViewWidth:     DefaultViewWidth,
		RefreshBefore: DefaultRefreshBefore,
	}
	if v, err := strconv.Atoi(os.Getenv("TQ_VIEW_WIDTH")); err == nil && v > 0 {
		cfg.ViewWidth = v
	}
	return cfg
}

// ParseContracts は "AG=KQ.m@SHFE.ag,AU=KQ.m@SHFE.au" 形式の対応表を解析します。
// 不正な要素は無視します。
func ParseContracts(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		code, contract, ok := strings.Cut(pair, "=")
		code = strings.ToUpper(strings.TrimSpace(code))
		contract = strings.TrimSpace(contract)
		if !ok || code == "" || contract == "" {
			continue
		}
		out[code] = contract
	}
	return out
}

// Contract は銘柄コードに対応する契約コードを返します。
func (c Config) Contract(instrument string) (string, bool) {
	contract, ok := c.Contracts[strings.ToUpper(strings.TrimSpace(instrument))]
	return contract, ok
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return def
}
