package tqsession

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// fakeUpstream は認証エンドポイントとマーケットデータWebSocketを模したテストサーバーです。
type fakeUpstream struct {
	t *testing.T

	authStatus int // 0 なら200でトークンを返す
	wsStatus   int // 0 ならアップグレードする

	authHits atomic.Int32
	wsHits   atomic.Int32

	mu       sync.Mutex
	received []message
	conns    []*websocket.Conn

	auth *httptest.Server
	md   *httptest.Server
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{t: t}
	f.auth = httptest.NewServer(http.HandlerFunc(f.handleAuth))
	f.md = httptest.NewServer(http.HandlerFunc(f.handleMD))
	t.Cleanup(func() {
		f.dropAll()
		f.md.Close()
		f.auth.Close()
	})
	return f
}

func (f *fakeUpstream) config() Config {
	return Config{
		AuthURL:       f.auth.URL,
		MDURL:         "ws" + strings.TrimPrefix(f.md.URL, "http"),
		ClientID:      DefaultClientID,
		Username:      "user",
		Password:      "pass",
		Contracts:     ParseContracts(DefaultContracts),
		Timeout:       2 * time.Second,
		FetchTimeout:  2 * time.Second,
		ViewWidth:     3,
		RefreshBefore: time.Minute,
	}
}

func (f *fakeUpstream) handleAuth(w http.ResponseWriter, r *http.Request) {
	f.authHits.Add(1)
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if f.authStatus != 0 {
		w.WriteHeader(f.authStatus)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid user credentials"}`))
		return
	}
	if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("username") != "user" || r.PostForm.Get("password") != "pass" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}
	tok := signedToken(f.t, time.Now().Add(time.Hour))
	_ = json.NewEncoder(w).Encode(map[string]any{"access_token": tok, "expires_in": 3600})
}

func (f *fakeUpstream) handleMD(w http.ResponseWriter, r *http.Request) {
	f.wsHits.Add(1)
	if f.wsStatus != 0 {
		w.WriteHeader(f.wsStatus)
		return
	}
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	// DIFFプロトコル: 差分はクライアントの peek_message に対してだけ送る
	var pending []map[string]any
	peeked := false
	flush := func() {
		if !peeked || len(pending) == 0 {
			return
		}
		_ = conn.WriteJSON(map[string]any{"aid": aidRtnData, "data": pending})
		pending = nil
		peeked = false
	}

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		f.mu.Lock()
		f.received = append(f.received, msg)
		f.mu.Unlock()

		switch msg.Aid {
		case aidPeekMessage:
			peeked = true
		case aidSubscribeQuote:
			pending = append(pending, quoteDiff())
		case aidSetChart:
			pending = append(pending, klineDiff(msg.InsList, msg.Duration))
		}
		flush()
	}
}

// dropAll はサーバー側から全接続を切断します。
func (f *fakeUpstream) dropAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.conns = nil
}

func (f *fakeUpstream) messages(aid string) []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message
	for _, m := range f.received {
		if m.Aid == aid {
			out = append(out, m)
		}
	}
	return out
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Errorf("sign token: %v", err)
	}
	return tok
}

func quoteDiff() map[string]any {
	return map[string]any{
		"quotes": map[string]any{
			"KQ.m@SHFE.ag": map[string]any{
				"datetime":       "2024-11-19 15:06:40.000000",
				"last_price":     6010,
				"volume":         120,
				"pre_settlement": 6000,
				"bid_price1":     6009,
				"bid_volume1":    3,
				"ask_price1":     6011,
				"ask_volume1":    4,
			},
		},
	}
}

func klineDiff(contract string, durationNs int64) map[string]any {
	dur := strconv.FormatInt(durationNs, 10)
	return map[string]any{
		"klines": map[string]any{
			contract: map[string]any{
				dur: map[string]any{
					"last_id": 11,
					"data": map[string]any{
						"10": map[string]any{"datetime": 1_731_999_940_000_000_000, "open": 5990, "high": 6001, "low": 5989, "close": 6000, "volume": 80},
						"11": map[string]any{"datetime": 1_732_000_000_000_000_000, "open": 6000, "high": 6015, "low": 5995, "close": 6010, "volume": 120},
					},
				},
			},
		},
	}
}
