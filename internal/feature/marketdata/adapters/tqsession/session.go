package tqsession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"quote_backend/internal/feature/marketdata/adapters/tqsession/dto"
	"quote_backend/internal/feature/marketdata/domain"
	"quote_backend/internal/feature/marketdata/domain/entity"
	httpx "quote_backend/internal/platform/http"
)

// message はクライアントとサーバーが交わすDIFFプロトコルのメッセージです。
type message struct {
	Aid       string           `json:"aid"`
	Data      []map[string]any `json:"data,omitempty"`
	InsList   string           `json:"ins_list,omitempty"`
	ChartID   string           `json:"chart_id,omitempty"`
	Duration  int64            `json:"duration,omitempty"`
	ViewWidth int              `json:"view_width,omitempty"`
}

const (
	aidPeekMessage    = "peek_message"
	aidRtnData        = "rtn_data"
	aidSubscribeQuote = "subscribe_quote"
	aidSetChart       = "set_chart"
)

// Session は1本の認証済みWebSocket接続です。
//
// 受信は単一のリーダーgoroutineが行い、差分をローカルビューに畳み込んだ後に
// peek_message を返します。送信は writeMu で直列化されます。
type Session struct {
	cfg       Config
	conn      *websocket.Conn
	state     *state
	expiresAt time.Time

	writeMu sync.Mutex

	subMu  sync.Mutex
	quotes map[string]struct{}
	charts map[string]struct{}

	done      chan struct{}
	err       error // done が close された後にだけ読む
	closing   atomic.Bool
	closeOnce sync.Once
}

// Dial はトークンを使ってマーケットデータのWebSocketに接続し、リーダーを起動します。
// ハンドシェイクでの401/403は domain.ErrAuth になります。
func Dial(ctx context.Context, cfg Config, tok Token, dialer *websocket.Dialer) (*Session, error) {
	if dialer == nil {
		dialer = &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: cfg.Timeout}
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+tok.AccessToken)

	conn, res, err := dialer.DialContext(ctx, cfg.MDURL, header)
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err != nil {
		if res != nil && (res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden) {
			return nil, &domain.UpstreamError{Provider: providerName, Kind: domain.ErrAuth, Status: res.StatusCode, Msg: "handshake rejected", Err: err}
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		kind := domain.ErrConnection
		if httpx.IsTimeout(err) {
			kind = domain.ErrTimeout
		}
		ue := &domain.UpstreamError{Provider: providerName, Kind: kind, Err: err}
		if res != nil {
			ue.Status = res.StatusCode
		}
		return nil, ue
	}

	s := &Session{
		cfg:       cfg,
		conn:      conn,
		state:     newState(2 * max(cfg.ViewWidth, 1)),
		expiresAt: tok.ExpiresAt,
		quotes:    make(map[string]struct{}),
		charts:    make(map[string]struct{}),
		done:      make(chan struct{}),
	}
	go s.readLoop()

	if err := s.send(ctx, message{Aid: aidPeekMessage}); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) readLoop() {
	var err error
	defer func() {
		if s.closing.Load() {
			err = &domain.UpstreamError{Provider: providerName, Kind: domain.ErrConnection, Msg: "session closed"}
		}
		s.err = err
		close(s.done)
	}()

	for {
		_, data, rerr := s.conn.ReadMessage()
		if rerr != nil {
			err = &domain.UpstreamError{Provider: providerName, Kind: domain.ErrConnection, Msg: "read failed", Err: rerr}
			if !s.closing.Load() {
				slog.Warn("session reader stopped", "error", rerr)
			}
			return
		}

		var msg message
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if derr := dec.Decode(&msg); derr != nil {
			slog.Warn("ignoring undecodable session message", "error", derr)
			continue
		}
		if msg.Aid != aidRtnData {
			continue
		}

		s.state.apply(msg.Data)
		if werr := s.send(context.Background(), message{Aid: aidPeekMessage}); werr != nil {
			err = werr
			return
		}
	}
}

// send はメッセージを1件書き込みます。書き込み期限は ctx の期限か cfg.Timeout です。
func (s *Session) send(ctx context.Context, msg message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(max(s.cfg.Timeout, time.Second))
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return &domain.UpstreamError{Provider: providerName, Kind: domain.ErrConnection, Err: err}
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		kind := domain.ErrConnection
		if httpx.IsTimeout(err) {
			kind = domain.ErrTimeout
		}
		return &domain.UpstreamError{Provider: providerName, Kind: kind, Msg: "write " + msg.Aid, Err: err}
	}
	return nil
}

// Alive はリーダーが動作中かを返します。
func (s *Session) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// ExpiresAt はセッションのトークン失効時刻です。
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// WaitForUpdate は次の差分の到着、deadline、ctx のキャンセルのいずれかまで待ちます。
// 差分到着とタイムアウトはどちらも nil を返します。リーダーが停止していれば domain.ErrConnection を返します。
func (s *Session) WaitForUpdate(ctx context.Context, deadline time.Time) error {
	if !s.Alive() {
		return s.err
	}
	updated := s.state.changed()
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-updated:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.err
	}
}

// GetKlineSeries は contract / tf のチャートを購読し、ローカルビューのK線を id 昇順で最大 length 本返します。
func (s *Session) GetKlineSeries(ctx context.Context, contract string, tf entity.Timeframe, length int) ([]dto.Kline, error) {
	if !s.Alive() {
		return nil, s.err
	}
	if err := s.ensureChart(ctx, contract, tf); err != nil {
		return nil, err
	}
	return s.state.klines(contract, tf.Duration().Nanoseconds(), length), nil
}

// GetQuoteSnapshot は contract の気配を購読し、ローカルビューを返します。まだ届いていなければ false です。
func (s *Session) GetQuoteSnapshot(ctx context.Context, contract string) (dto.Quote, bool, error) {
	if !s.Alive() {
		return dto.Quote{}, false, s.err
	}
	if err := s.ensureQuote(ctx, contract); err != nil {
		return dto.Quote{}, false, err
	}
	q, ok := s.state.quote(contract)
	return q, ok, nil
}

func (s *Session) ensureChart(ctx context.Context, contract string, tf entity.Timeframe) error {
	id := chartID(contract, tf)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.charts[id]; ok {
		return nil
	}
	err := s.send(ctx, message{
		Aid:       aidSetChart,
		ChartID:   id,
		InsList:   contract,
		Duration:  tf.Duration().Nanoseconds(),
		ViewWidth: max(s.cfg.ViewWidth, 1),
	})
	if err != nil {
		return err
	}
	s.charts[id] = struct{}{}
	slog.Info("chart subscribed", "contract", contract, "timeframe", tf, "chart_id", id)
	return nil
}

// ensureQuote は購読中の全契約を ins_list に載せて送り直します（subscribe_quote は置き換え）。
func (s *Session) ensureQuote(ctx context.Context, contract string) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.quotes[contract]; ok {
		return nil
	}
	list := make([]string, 0, len(s.quotes)+1)
	for c := range s.quotes {
		list = append(list, c)
	}
	list = append(list, contract)
	slices.Sort(list)

	if err := s.send(ctx, message{Aid: aidSubscribeQuote, InsList: strings.Join(list, ",")}); err != nil {
		return err
	}
	s.quotes[contract] = struct{}{}
	slog.Info("quote subscribed", "contract", contract)
	return nil
}

// Close は接続を一度だけ閉じます。
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func chartID(contract string, tf entity.Timeframe) string {
	return fmt.Sprintf("quote_backend_%s_%s", contract, tf)
}
