package alltick

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"quote_backend/internal/feature/marketdata/adapters/alltick/dto"
	"quote_backend/internal/feature/marketdata/domain"
	"quote_backend/internal/feature/marketdata/domain/entity"
	"quote_backend/internal/feature/marketdata/usecase"
	httpx "quote_backend/internal/platform/http"
	"quote_backend/internal/shared/ratelimiter"
)

// providerName はエラーとログで使うプロバイダ名です。
const providerName = "alltick"

// maxErrorBody はエラーメッセージに含めるレスポンス本文の最大長です。
const maxErrorBody = 256

// AllTickMarket はAllTick REST APIから生のK線・約定・板を取得するRESTMarket実装です。
// 呼び出しごとに1回のHTTPリクエストを行い、状態を持ちません。
type AllTickMarket struct {
	cfg     Config
	client  *http.Client
	limiter ratelimiter.Limiter
}

// AllTickMarketがRESTMarketを実装していることをコンパイル時に検証します。
var _ usecase.RESTMarket = (*AllTickMarket)(nil)

// NewAllTickMarket は新しいAllTickMarketを生成します。limiter が nil の場合は制限しません。
func NewAllTickMarket(cfg Config, client *http.Client, limiter ratelimiter.Limiter) *AllTickMarket {
	return &AllTickMarket{cfg: cfg, client: client, limiter: limiter}
}

// GetKlines は code の直近 num 本のK線を取得します。
func (m *AllTickMarket) GetKlines(ctx context.Context, code string, tf entity.Timeframe, num int, trace string) ([]dto.KlineItem, error) {
	q := dto.KlineQuery{
		Code:              code,
		KlineType:         tf.RESTCode(),
		KlineTimestampEnd: 0,
		QueryKlineNum:     num,
		AdjustType:        0,
	}
	var body dto.KlineResponse
	if err := m.post(ctx, "/kline", trace, q, &body); err != nil {
		return nil, err
	}
	return body.Data.KlineList, nil
}

// GetTradeTicks は code の最新約定を取得します。
func (m *AllTickMarket) GetTradeTicks(ctx context.Context, code, trace string) ([]dto.TradeTick, error) {
	var body dto.TradeTickResponse
	if err := m.post(ctx, "/trade-tick", trace, symbolQuery(code), &body); err != nil {
		return nil, err
	}
	return body.Data.TickList, nil
}

// GetDepthTicks は code の最新の板を取得します。
func (m *AllTickMarket) GetDepthTicks(ctx context.Context, code, trace string) ([]dto.DepthTick, error) {
	var body dto.DepthTickResponse
	if err := m.post(ctx, "/depth-tick", trace, symbolQuery(code), &body); err != nil {
		return nil, err
	}
	return body.Data.TickList, nil
}

func symbolQuery(code string) dto.SymbolQuery {
	return dto.SymbolQuery{SymbolList: []dto.SymbolItem{{Code: code}}}
}

// post は token と query をクエリパラメータに載せてPOSTし、レスポンスを out にデコードします。
// HTTPステータスが200以外、または ret が200以外の場合は *domain.UpstreamError を返します。
func (m *AllTickMarket) post(ctx context.Context, path, trace string, data any, out any) error {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return m.transportError(err, trace)
		}
	}

	query, err := json.Marshal(dto.Query{Trace: trace, Data: data})
	if err != nil {
		return fmt.Errorf("alltick: marshal query: %w", err)
	}
	q := url.Values{}
	q.Set("token", m.cfg.Token)
	q.Set("query", string(query))
	u := fmt.Sprintf("%s%s?%s", strings.TrimRight(m.cfg.BaseURL, "/"), path, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("alltick: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := m.client.Do(req)
	if err != nil {
		return m.transportError(err, trace)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return m.transportError(err, trace)
	}

	var env dto.Envelope
	envErr := json.Unmarshal(b, &env)
	if res.StatusCode != http.StatusOK || envErr != nil || env.Ret != domain.RetOK {
		ue := &domain.UpstreamError{
			Provider: providerName,
			Kind:     domain.ErrUpstreamRejection,
			Status:   res.StatusCode,
			Ret:      env.Ret,
			Msg:      env.Msg,
			Trace:    trace,
		}
		if env.Trace != "" {
			ue.Trace = env.Trace
		}
		if envErr != nil {
			ue.Msg = truncate(string(b))
			ue.Err = envErr
		}
		slog.Warn("alltick request rejected", "path", path, "status", res.StatusCode, "ret", env.Ret, "msg", ue.Msg, "trace", ue.Trace)
		return ue
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &domain.UpstreamError{
			Provider: providerName,
			Kind:     domain.ErrUpstreamRejection,
			Status:   res.StatusCode,
			Ret:      env.Ret,
			Msg:      "invalid response body",
			Trace:    trace,
			Err:      err,
		}
	}
	return nil
}

// transportError はレスポンスを得られなかった失敗をタイムアウトと接続エラーに分類します。
func (m *AllTickMarket) transportError(err error, trace string) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	kind := domain.ErrConnection
	if httpx.IsTimeout(err) {
		kind = domain.ErrTimeout
	}
	return &domain.UpstreamError{Provider: providerName, Kind: kind, Trace: trace, Err: err}
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
