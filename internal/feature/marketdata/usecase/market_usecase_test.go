package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alltickdto "quote_backend/internal/feature/marketdata/adapters/alltick/dto"
	tqdto "quote_backend/internal/feature/marketdata/adapters/tqsession/dto"
	"quote_backend/internal/feature/marketdata/domain"
	"quote_backend/internal/feature/marketdata/domain/entity"
	"quote_backend/internal/feature/marketdata/usecase"
	"quote_backend/internal/shared/retry"
	"quote_backend/internal/shared/trace"
)

// ErrUpstream はモックと期待値の間で共有されるセンチネルエラーです。
var ErrUpstream = errors.New("upstream error")

// mockRESTMarket はRESTMarketインターフェースのモック実装です。
type mockRESTMarket struct {
	GetKlinesFunc      func(ctx context.Context, code string, tf entity.Timeframe, num int, trace string) ([]alltickdto.KlineItem, error)
	GetTradeTicksFunc  func(ctx context.Context, code, trace string) ([]alltickdto.TradeTick, error)
	GetDepthTicksFunc  func(ctx context.Context, code, trace string) ([]alltickdto.DepthTick, error)
	GetKlinesCalls     int
	GetTradeTicksCalls int
	GetDepthTicksCalls int
}

func (m *mockRESTMarket) GetKlines(ctx context.Context, code string, tf entity.Timeframe, num int, trace string) ([]alltickdto.KlineItem, error) {
	m.GetKlinesCalls++
	if m.GetKlinesFunc != nil {
		return m.GetKlinesFunc(ctx, code, tf, num, trace)
	}
	return nil, errors.New("GetKlinesFunc is not implemented")
}

func (m *mockRESTMarket) GetTradeTicks(ctx context.Context, code, trace string) ([]alltickdto.TradeTick, error) {
	m.GetTradeTicksCalls++
	if m.GetTradeTicksFunc != nil {
		return m.GetTradeTicksFunc(ctx, code, trace)
	}
	return nil, errors.New("GetTradeTicksFunc is not implemented")
}

func (m *mockRESTMarket) GetDepthTicks(ctx context.Context, code, trace string) ([]alltickdto.DepthTick, error) {
	m.GetDepthTicksCalls++
	if m.GetDepthTicksFunc != nil {
		return m.GetDepthTicksFunc(ctx, code, trace)
	}
	return nil, errors.New("GetDepthTicksFunc is not implemented")
}

// mockSessionMarket はSessionMarketインターフェースのモック実装です。
type mockSessionMarket struct {
	FetchKlinesFunc  func(ctx context.Context, instrument string, tf entity.Timeframe, length int) ([]tqdto.Kline, error)
	FetchQuoteFunc   func(ctx context.Context, instrument string) (tqdto.Quote, error)
	FetchKlinesCalls int
	FetchQuoteCalls  int
}

func (m *mockSessionMarket) FetchKlines(ctx context.Context, instrument string, tf entity.Timeframe, length int) ([]tqdto.Kline, error) {
	m.FetchKlinesCalls++
	if m.FetchKlinesFunc != nil {
		return m.FetchKlinesFunc(ctx, instrument, tf, length)
	}
	return nil, errors.New("FetchKlinesFunc is not implemented")
}

func (m *mockSessionMarket) FetchQuote(ctx context.Context, instrument string) (tqdto.Quote, error) {
	m.FetchQuoteCalls++
	if m.FetchQuoteFunc != nil {
		return m.FetchQuoteFunc(ctx, instrument)
	}
	return tqdto.Quote{}, errors.New("FetchQuoteFunc is not implemented")
}

// mockMarketCache はMarketCacheインターフェースのモック実装です。
type mockMarketCache struct {
	SeriesFunc  func(instrument string, tf entity.Timeframe) entity.SeriesEntry
	QuoteFunc   func(instrument string) entity.QuoteEntry
	SeriesCalls int
	QuoteCalls  int
}

func (m *mockMarketCache) Series(instrument string, tf entity.Timeframe) entity.SeriesEntry {
	m.SeriesCalls++
	if m.SeriesFunc != nil {
		return m.SeriesFunc(instrument, tf)
	}
	return entity.SeriesEntry{Instrument: instrument, Timeframe: tf}
}

func (m *mockMarketCache) Quote(instrument string) entity.QuoteEntry {
	m.QuoteCalls++
	if m.QuoteFunc != nil {
		return m.QuoteFunc(instrument)
	}
	return entity.QuoteEntry{Instrument: instrument}
}

func newUsecase(rest *mockRESTMarket, session *mockSessionMarket, cache *mockMarketCache) *usecase.MarketDataUsecase {
	return usecase.NewMarketDataUsecase(rest, session, cache, usecase.Config{
		SessionInstruments: []string{"AG"},
		QuoteWait:          retry.Policy{Attempts: 3, Interval: time.Millisecond},
	})
}

func series(n int) []entity.Candle {
	out := make([]entity.Candle, n)
	for i := range out {
		out[i] = entity.Candle{Timestamp: 1_732_000_000_000 + int64(i)*60_000, Close: float64(6000 + i)}
	}
	return out
}

func TestMarketDataUsecase_GetCandles_Scenario(t *testing.T) {
	t.Parallel()

	bar := entity.Candle{Timestamp: 1_732_000_000_000, Open: 6000, Close: 6010, High: 6015, Low: 5995, Volume: 120, Turnover: 721200}
	cache := &mockMarketCache{
		SeriesFunc: func(instrument string, tf entity.Timeframe) entity.SeriesEntry {
			assert.Equal(t, "AG", instrument)
			assert.Equal(t, entity.Timeframe1m, tf)
			return entity.SeriesEntry{Instrument: "AG", Timeframe: tf, Candles: []entity.Candle{bar}, Liveness: entity.LivenessLive}
		},
	}
	rest := &mockRESTMarket{}
	session := &mockSessionMarket{}

	got, err := newUsecase(rest, session, cache).GetCandles(context.Background(), "AG", entity.Timeframe1m, 1)

	require.NoError(t, err)
	assert.Equal(t, []entity.Candle{bar}, got)
	assert.Equal(t, 0, session.FetchKlinesCalls)
	assert.Equal(t, 0, rest.GetKlinesCalls)
}

func TestMarketDataUsecase_GetCandles_SessionRouted(t *testing.T) {
	t.Parallel()

	cached := series(200)
	fetched := []tqdto.Kline{
		{ID: 1, Datetime: json.Number("1732000000000000000"), Open: json.Number("6000"), High: json.Number("6015"), Low: json.Number("5995"), Close: json.Number("6010"), Volume: json.Number("120")},
	}

	testCases := []struct {
		name             string
		instrument       string
		limit            int
		liveness         entity.Liveness
		candles          []entity.Candle
		fetchFunc        func(ctx context.Context, instrument string, tf entity.Timeframe, length int) ([]tqdto.Kline, error)
		expected         []entity.Candle
		expectedErr      error
		expectedFetches  int
		expectedFetchLen int
	}{
		{
			name:       "live cache: newest 5 of 200 ascending",
			instrument: "AG",
			limit:      5,
			liveness:   entity.LivenessLive,
			candles:    cached,
			expected:   cached[195:],
		},
		{
			name:       "live cache: lowercase instrument is routed",
			instrument: "ag",
			limit:      2,
			liveness:   entity.LivenessLive,
			candles:    cached,
			expected:   cached[198:],
		},
		{
			name:       "live cache: limit larger than entry",
			instrument: "AG",
			limit:      300,
			liveness:   entity.LivenessLive,
			candles:    cached[:10],
			expected:   cached[:10],
		},
		{
			name:       "cold cache: exactly one direct fetch",
			instrument: "AG",
			limit:      5,
			liveness:   entity.LivenessCold,
			fetchFunc: func(ctx context.Context, instrument string, tf entity.Timeframe, length int) ([]tqdto.Kline, error) {
				return fetched, nil
			},
			expected:         []entity.Candle{{Timestamp: 1_732_000_000_000, Open: 6000, High: 6015, Low: 5995, Close: 6010, Volume: 120, Turnover: 721200}},
			expectedFetches:  1,
			expectedFetchLen: 5,
		},
		{
			name:       "stale cache: direct fetch",
			instrument: "AG",
			limit:      0,
			liveness:   entity.LivenessStale,
			candles:    cached,
			fetchFunc: func(ctx context.Context, instrument string, tf entity.Timeframe, length int) ([]tqdto.Kline, error) {
				return fetched, nil
			},
			expected:         []entity.Candle{{Timestamp: 1_732_000_000_000, Open: 6000, High: 6015, Low: 5995, Close: 6010, Volume: 120, Turnover: 721200}},
			expectedFetches:  1,
			expectedFetchLen: usecase.DefaultLimit,
		},
		{
			name:       "cold cache: fallback failure is data unavailable",
			instrument: "AG",
			limit:      5,
			liveness:   entity.LivenessCold,
			fetchFunc: func(ctx context.Context, instrument string, tf entity.Timeframe, length int) ([]tqdto.Kline, error) {
				return nil, &domain.UpstreamError{Provider: "tqsession", Kind: domain.ErrTimeout}
			},
			expectedErr:      domain.ErrDataUnavailable,
			expectedFetches:  1,
			expectedFetchLen: 5,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			entry := entity.SeriesEntry{Instrument: "AG", Timeframe: entity.Timeframe1m, Candles: tc.candles, Liveness: tc.liveness}
			before := append([]entity.Candle(nil), tc.candles...)
			cache := &mockMarketCache{
				SeriesFunc: func(instrument string, tf entity.Timeframe) entity.SeriesEntry { return entry },
			}
			fetchLen := 0
			session := &mockSessionMarket{
				FetchKlinesFunc: func(ctx context.Context, instrument string, tf entity.Timeframe, length int) ([]tqdto.Kline, error) {
					fetchLen = length
					assert.Equal(t, "AG", instrument)
					return tc.fetchFunc(ctx, instrument, tf, length)
				},
			}
			rest := &mockRESTMarket{}

			got, err := newUsecase(rest, session, cache).GetCandles(context.Background(), tc.instrument, entity.Timeframe1m, tc.limit)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, got)
			}
			assert.Equal(t, tc.expectedFetches, session.FetchKlinesCalls)
			assert.Equal(t, tc.expectedFetchLen, fetchLen)
			assert.Equal(t, 0, rest.GetKlinesCalls)
			// フォールバック結果はキャッシュへ書き戻されない
			assert.Equal(t, before, entry.Candles)
		})
	}
}

func TestMarketDataUsecase_GetCandles_RESTRouted(t *testing.T) {
	t.Parallel()

	items := []alltickdto.KlineItem{
		{Timestamp: json.Number("1732000060"), OpenPrice: "31.2", ClosePrice: "31.5", HighPrice: "31.6", LowPrice: "31.1", Volume: "10", Turnover: "315"},
		{Timestamp: json.Number("1732000000"), OpenPrice: "31.0", ClosePrice: "31.2", HighPrice: "31.3", LowPrice: "30.9", Volume: "10", Turnover: "312"},
	}

	testCases := []struct {
		name        string
		limit       int
		mockFunc    func(ctx context.Context, code string, tf entity.Timeframe, num int, trace string) ([]alltickdto.KlineItem, error)
		expectedNum int
		expectedLen int
		expectedErr error
	}{
		{
			name:  "success: normalized ascending",
			limit: 10,
			mockFunc: func(ctx context.Context, code string, tf entity.Timeframe, num int, trace string) ([]alltickdto.KlineItem, error) {
				return items, nil
			},
			expectedNum: 10,
			expectedLen: 2,
		},
		{
			name:  "success: limit above max is capped",
			limit: 5000,
			mockFunc: func(ctx context.Context, code string, tf entity.Timeframe, num int, trace string) ([]alltickdto.KlineItem, error) {
				return items, nil
			},
			expectedNum: usecase.MaxLimit,
			expectedLen: 2,
		},
		{
			name:  "success: upstream returned more than limit",
			limit: 1,
			mockFunc: func(ctx context.Context, code string, tf entity.Timeframe, num int, trace string) ([]alltickdto.KlineItem, error) {
				return items, nil
			},
			expectedNum: 1,
			expectedLen: 1,
		},
		{
			name:  "error: upstream failure keeps its kind",
			limit: 10,
			mockFunc: func(ctx context.Context, code string, tf entity.Timeframe, num int, trace string) ([]alltickdto.KlineItem, error) {
				return nil, &domain.UpstreamError{Provider: "alltick", Kind: domain.ErrTimeout, Err: ErrUpstream}
			},
			expectedNum: 10,
			expectedErr: domain.ErrTimeout,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rest := &mockRESTMarket{
				GetKlinesFunc: func(ctx context.Context, code string, tf entity.Timeframe, num int, tr string) ([]alltickdto.KlineItem, error) {
					assert.Equal(t, "XAGUSD", code)
					assert.Equal(t, entity.Timeframe5m, tf)
					assert.Equal(t, tc.expectedNum, num)
					assert.Equal(t, "trace-1", tr)
					return tc.mockFunc(ctx, code, tf, num, tr)
				},
			}
			session := &mockSessionMarket{}
			cache := &mockMarketCache{}
			ctx := trace.WithID(context.Background(), "trace-1")

			got, err := newUsecase(rest, session, cache).GetCandles(ctx, "XAGUSD", entity.Timeframe5m, tc.limit)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.ErrorIs(t, err, ErrUpstream)
			} else {
				require.NoError(t, err)
				require.Len(t, got, tc.expectedLen)
				assert.Equal(t, int64(1_732_000_060_000), got[len(got)-1].Timestamp)
			}
			assert.Equal(t, 1, rest.GetKlinesCalls)
			assert.Equal(t, 0, cache.SeriesCalls)
			assert.Equal(t, 0, session.FetchKlinesCalls)
		})
	}
}

func TestMarketDataUsecase_GetCandles_InvalidArgs(t *testing.T) {
	t.Parallel()

	uc := newUsecase(&mockRESTMarket{}, &mockSessionMarket{}, &mockMarketCache{})

	_, err := uc.GetCandles(context.Background(), " ", entity.Timeframe1m, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInstrument)

	_, err = uc.GetCandles(context.Background(), "AG", entity.Timeframe("2m"), 5)
	assert.ErrorIs(t, err, domain.ErrInvalidTimeframe)
}

func TestMarketDataUsecase_GetQuote_SessionRouted(t *testing.T) {
	t.Parallel()

	liveQuote := entity.Quote{Instrument: "AG", LastPrice: 6010}
	rawQuote := tqdto.Quote{LastPrice: json.Number("6020"), PreSettlement: json.Number("6000"), Datetime: "2024-11-19 15:06:40"}

	testCases := []struct {
		name            string
		entries         []entity.QuoteEntry // QuoteCalls 回目に返すエントリ（最後の要素を繰り返す）
		fetchErr        error
		expectedPrice   float64
		expectedErr     error
		expectedFetches int
		minCacheReads   int
	}{
		{
			name:          "live cache",
			entries:       []entity.QuoteEntry{{Quote: liveQuote, HasQuote: true, Liveness: entity.LivenessLive}},
			expectedPrice: 6010,
			minCacheReads: 1,
		},
		{
			name: "cold cache becomes ready while waiting",
			entries: []entity.QuoteEntry{
				{Liveness: entity.LivenessCold},
				{Liveness: entity.LivenessWarming},
				{Quote: liveQuote, HasQuote: true, Liveness: entity.LivenessLive},
			},
			expectedPrice: 6010,
			minCacheReads: 3,
		},
		{
			name:            "cold cache never ready falls back once",
			entries:         []entity.QuoteEntry{{Liveness: entity.LivenessCold}},
			expectedPrice:   6020,
			expectedFetches: 1,
			minCacheReads:   4,
		},
		{
			name:            "cold cache and failing fallback is not ready",
			entries:         []entity.QuoteEntry{{Liveness: entity.LivenessWarming}},
			fetchErr:        &domain.UpstreamError{Provider: "tqsession", Kind: domain.ErrConnection},
			expectedErr:     domain.ErrNotReady,
			expectedFetches: 1,
			minCacheReads:   4,
		},
		{
			name:            "stale cache falls back without waiting",
			entries:         []entity.QuoteEntry{{Quote: liveQuote, HasQuote: true, Liveness: entity.LivenessStale}},
			expectedPrice:   6020,
			expectedFetches: 1,
			minCacheReads:   1,
		},
		{
			name:            "stale cache and failing fallback is unavailable",
			entries:         []entity.QuoteEntry{{Quote: liveQuote, HasQuote: true, Liveness: entity.LivenessStale}},
			fetchErr:        &domain.UpstreamError{Provider: "tqsession", Kind: domain.ErrTimeout},
			expectedErr:     domain.ErrDataUnavailable,
			expectedFetches: 1,
			minCacheReads:   1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cache := &mockMarketCache{}
			cache.QuoteFunc = func(instrument string) entity.QuoteEntry {
				i := min(cache.QuoteCalls, len(tc.entries)) - 1
				return tc.entries[i]
			}
			session := &mockSessionMarket{
				FetchQuoteFunc: func(ctx context.Context, instrument string) (tqdto.Quote, error) {
					if tc.fetchErr != nil {
						return tqdto.Quote{}, tc.fetchErr
					}
					return rawQuote, nil
				},
			}
			rest := &mockRESTMarket{}

			q, err := newUsecase(rest, session, cache).GetQuote(context.Background(), "AG")

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectedPrice, q.LastPrice)
			}
			assert.Equal(t, tc.expectedFetches, session.FetchQuoteCalls)
			assert.GreaterOrEqual(t, cache.QuoteCalls, tc.minCacheReads)
			assert.Equal(t, 0, rest.GetDepthTicksCalls)
		})
	}
}

func TestMarketDataUsecase_GetQuote_RESTRouted(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		rest := &mockRESTMarket{
			GetDepthTicksFunc: func(ctx context.Context, code, tr string) ([]alltickdto.DepthTick, error) {
				return []alltickdto.DepthTick{{
					Code:     code,
					TickTime: "1732000000000",
					Bids:     []alltickdto.DepthLevel{{Price: "31.2", Volume: "5"}},
					Asks:     []alltickdto.DepthLevel{{Price: "31.3", Volume: "6"}},
				}}, nil
			},
		}
		q, err := newUsecase(rest, &mockSessionMarket{}, &mockMarketCache{}).GetQuote(context.Background(), "XAGUSD")

		require.NoError(t, err)
		assert.Equal(t, "XAGUSD", q.Instrument)
		assert.Equal(t, int64(1_732_000_000_000), q.EventTime)
		assert.Equal(t, []entity.BookLevel{{Price: 31.2, Volume: 5}}, q.Bids)
	})

	t.Run("empty tick list", func(t *testing.T) {
		t.Parallel()

		rest := &mockRESTMarket{
			GetDepthTicksFunc: func(ctx context.Context, code, tr string) ([]alltickdto.DepthTick, error) {
				return nil, nil
			},
		}
		_, err := newUsecase(rest, &mockSessionMarket{}, &mockMarketCache{}).GetQuote(context.Background(), "XAGUSD")

		assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	})

	t.Run("upstream rejection", func(t *testing.T) {
		t.Parallel()

		rest := &mockRESTMarket{
			GetDepthTicksFunc: func(ctx context.Context, code, tr string) ([]alltickdto.DepthTick, error) {
				return nil, &domain.UpstreamError{Provider: "alltick", Kind: domain.ErrUpstreamRejection, Ret: 600}
			},
		}
		_, err := newUsecase(rest, &mockSessionMarket{}, &mockMarketCache{}).GetQuote(context.Background(), "XAGUSD")

		assert.ErrorIs(t, err, domain.ErrUpstreamRejection)
		assert.Equal(t, 600, domain.RetCode(err))
	})
}

func TestMarketDataUsecase_GetTrade(t *testing.T) {
	t.Parallel()

	t.Run("session routed derives from quote", func(t *testing.T) {
		t.Parallel()

		cache := &mockMarketCache{
			QuoteFunc: func(instrument string) entity.QuoteEntry {
				return entity.QuoteEntry{
					Quote:    entity.Quote{Instrument: "AG", LastPrice: 6010, Volume: 120, EventTime: 1_732_000_000_000},
					HasQuote: true,
					Liveness: entity.LivenessLive,
				}
			},
		}
		tr, err := newUsecase(&mockRESTMarket{}, &mockSessionMarket{}, cache).GetTrade(context.Background(), "AG")

		require.NoError(t, err)
		assert.Equal(t, entity.Trade{Instrument: "AG", Price: 6010, Volume: 120, TickTime: 1_732_000_000_000}, tr)
	})

	t.Run("rest routed", func(t *testing.T) {
		t.Parallel()

		rest := &mockRESTMarket{
			GetTradeTicksFunc: func(ctx context.Context, code, tr string) ([]alltickdto.TradeTick, error) {
				return []alltickdto.TradeTick{{Code: code, Price: "31.25", Volume: "3", TickTime: "1732000000000"}}, nil
			},
		}
		tr, err := newUsecase(rest, &mockSessionMarket{}, &mockMarketCache{}).GetTrade(context.Background(), "XAGUSD")

		require.NoError(t, err)
		assert.Equal(t, entity.Trade{Instrument: "XAGUSD", Price: 31.25, Volume: 3, TickTime: 1_732_000_000_000}, tr)
	})

	t.Run("invalid instrument", func(t *testing.T) {
		t.Parallel()

		_, err := newUsecase(&mockRESTMarket{}, &mockSessionMarket{}, &mockMarketCache{}).GetTrade(context.Background(), "")
		assert.ErrorIs(t, err, domain.ErrInvalidInstrument)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SESSION_INSTRUMENTS", " ag , ,au")
	t.Setenv("QUOTE_WAIT_ATTEMPTS", "2")
	t.Setenv("QUOTE_WAIT_INTERVAL", "")

	cfg := usecase.LoadConfig()

	assert.Equal(t, []string{"ag", "au"}, cfg.SessionInstruments)
	assert.Equal(t, retry.Policy{Attempts: 2, Interval: usecase.DefaultQuoteWait.Interval}, cfg.QuoteWait)

	uc := usecase.NewMarketDataUsecase(nil, nil, nil, cfg)
	assert.True(t, uc.IsSessionRouted("AG"))
	assert.True(t, uc.IsSessionRouted("Au"))
	assert.False(t, uc.IsSessionRouted("XAGUSD"))
}
