// Package usecase implements the query facade of the marketdata feature.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	alltickdto "quote_backend/internal/feature/marketdata/adapters/alltick/dto"
	tqdto "quote_backend/internal/feature/marketdata/adapters/tqsession/dto"
	"quote_backend/internal/feature/marketdata/domain"
	"quote_backend/internal/feature/marketdata/domain/entity"
	"quote_backend/internal/feature/marketdata/normalizer"
	"quote_backend/internal/shared/retry"
	"quote_backend/internal/shared/trace"
)

const (
	// DefaultLimit is used when the caller does not ask for a bar count.
	DefaultLimit = 100
	// MaxLimit caps the number of bars a single query may return.
	MaxLimit = 500
)

// DefaultQuoteWait bounds how long GetQuote waits for a cold quote cache.
var DefaultQuoteWait = retry.Policy{Attempts: 5, Interval: 1500 * time.Millisecond}

// RESTMarket abstracts the stateless REST provider.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type RESTMarket interface {
	GetKlines(ctx context.Context, code string, tf entity.Timeframe, num int, trace string) ([]alltickdto.KlineItem, error)
	GetTradeTicks(ctx context.Context, code, trace string) ([]alltickdto.TradeTick, error)
	GetDepthTicks(ctx context.Context, code, trace string) ([]alltickdto.DepthTick, error)
}

// SessionMarket performs direct, cache-bypassing fetches through the session provider.
type SessionMarket interface {
	FetchKlines(ctx context.Context, instrument string, tf entity.Timeframe, length int) ([]tqdto.Kline, error)
	FetchQuote(ctx context.Context, instrument string) (tqdto.Quote, error)
}

// MarketCache is the read side of the subscription cache.
type MarketCache interface {
	Series(instrument string, tf entity.Timeframe) entity.SeriesEntry
	Quote(instrument string) entity.QuoteEntry
}

// MarketDataUsecase answers candle and quote queries from the cache when it is
// live and from a direct upstream fetch otherwise. It never writes to the cache.
type MarketDataUsecase struct {
	rest      RESTMarket
	session   SessionMarket
	cache     MarketCache
	routed    map[string]struct{}
	quoteWait retry.Policy
	now       func() time.Time
}

// NewMarketDataUsecase creates a MarketDataUsecase.
func NewMarketDataUsecase(rest RESTMarket, session SessionMarket, cache MarketCache, cfg Config) *MarketDataUsecase {
	routed := make(map[string]struct{}, len(cfg.SessionInstruments))
	for _, s := range cfg.SessionInstruments {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			routed[s] = struct{}{}
		}
	}
	wait := cfg.QuoteWait
	if wait.Attempts <= 0 {
		wait = DefaultQuoteWait
	}
	return &MarketDataUsecase{
		rest:      rest,
		session:   session,
		cache:     cache,
		routed:    routed,
		quoteWait: wait,
		now:       time.Now,
	}
}

// IsSessionRouted reports whether instrument is served by the session subsystem.
func (u *MarketDataUsecase) IsSessionRouted(instrument string) bool {
	_, ok := u.routed[strings.ToUpper(strings.TrimSpace(instrument))]
	return ok
}

// GetCandles returns at most limit candles in ascending time order.
// limit <= 0 means DefaultLimit; values above MaxLimit are capped.
func (u *MarketDataUsecase) GetCandles(ctx context.Context, instrument string, tf entity.Timeframe, limit int) ([]entity.Candle, error) {
	instrument = strings.TrimSpace(instrument)
	if instrument == "" {
		return nil, domain.ErrInvalidInstrument
	}
	if !tf.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTimeframe, tf)
	}
	limit = clampLimit(limit)

	if !u.IsSessionRouted(instrument) {
		items, err := u.rest.GetKlines(ctx, instrument, tf, limit, trace.FromContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("get klines %s %s: %w", instrument, tf, err)
		}
		return entity.Tail(normalizer.KlinesFromREST(items), limit), nil
	}

	key := strings.ToUpper(instrument)
	entry := u.cache.Series(key, tf)
	if entry.Liveness == entity.LivenessLive && len(entry.Candles) > 0 {
		return entity.Tail(entry.Candles, limit), nil
	}

	slog.Info("series cache not live, fetching directly",
		"instrument", key, "timeframe", tf, "liveness", entry.Liveness, "trace", trace.FromContext(ctx))
	raws, err := u.session.FetchKlines(ctx, key, tf, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrDataUnavailable, key, tf, err)
	}
	return entity.Tail(normalizer.KlinesFromSession(raws), limit), nil
}

// GetQuote returns the latest quote of instrument.
// For a session-routed instrument whose cache has never been filled it waits
// briefly for the background subscription before fetching directly.
func (u *MarketDataUsecase) GetQuote(ctx context.Context, instrument string) (entity.Quote, error) {
	instrument = strings.TrimSpace(instrument)
	if instrument == "" {
		return entity.Quote{}, domain.ErrInvalidInstrument
	}

	if !u.IsSessionRouted(instrument) {
		ticks, err := u.rest.GetDepthTicks(ctx, instrument, trace.FromContext(ctx))
		if err != nil {
			return entity.Quote{}, fmt.Errorf("get depth %s: %w", instrument, err)
		}
		if len(ticks) == 0 {
			return entity.Quote{}, fmt.Errorf("%w: no depth tick for %s", domain.ErrDataUnavailable, instrument)
		}
		return normalizer.QuoteFromDepth(ticks[0], u.now()), nil
	}

	key := strings.ToUpper(instrument)
	entry := u.cache.Quote(key)
	if entry.Liveness == entity.LivenessLive && entry.HasQuote {
		return entry.Quote, nil
	}

	waited := false
	if !entry.HasQuote {
		waited = true
		res := retry.Poll(ctx, u.quoteWait, func() bool {
			entry = u.cache.Quote(key)
			return entry.Liveness == entity.LivenessLive && entry.HasQuote
		})
		if res.Outcome == retry.Ready {
			if res.Attempts > 1 {
				slog.Info("quote cache became ready", "instrument", key, "attempts", res.Attempts)
			}
			return entry.Quote, nil
		}
		slog.Warn("quote cache still empty, fetching directly",
			"instrument", key, "attempts", res.Attempts, "trace", trace.FromContext(ctx))
	}

	raw, err := u.session.FetchQuote(ctx, key)
	if err != nil {
		kind := domain.ErrDataUnavailable
		if waited {
			kind = domain.ErrNotReady
		}
		return entity.Quote{}, fmt.Errorf("%w: %s: %w", kind, key, err)
	}
	return normalizer.QuoteFromSession(key, raw, u.now()), nil
}

// GetTrade returns the latest trade print of instrument.
func (u *MarketDataUsecase) GetTrade(ctx context.Context, instrument string) (entity.Trade, error) {
	instrument = strings.TrimSpace(instrument)
	if instrument == "" {
		return entity.Trade{}, domain.ErrInvalidInstrument
	}

	if u.IsSessionRouted(instrument) {
		q, err := u.GetQuote(ctx, instrument)
		if err != nil {
			return entity.Trade{}, err
		}
		return normalizer.TradeFromQuote(q), nil
	}

	ticks, err := u.rest.GetTradeTicks(ctx, instrument, trace.FromContext(ctx))
	if err != nil {
		return entity.Trade{}, fmt.Errorf("get trade %s: %w", instrument, err)
	}
	if len(ticks) == 0 {
		return entity.Trade{}, fmt.Errorf("%w: no trade tick for %s", domain.ErrDataUnavailable, instrument)
	}
	return normalizer.TradeFromTick(ticks[0], u.now()), nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
