package normalizer

import (
	"fmt"
	"log/slog"
	"slices"

	alltickdto "quote_backend/internal/feature/marketdata/adapters/alltick/dto"
	tqdto "quote_backend/internal/feature/marketdata/adapters/tqsession/dto"
	"quote_backend/internal/feature/marketdata/domain"
	"quote_backend/internal/feature/marketdata/domain/entity"
)

// KlineFromSession converts one session bar. Session bars carry no turnover,
// so it is always derived from close and volume.
func KlineFromSession(k tqdto.Kline) (entity.Candle, error) {
	ts, ok := toMillis(k.Datetime)
	if !ok || ts <= 0 {
		return entity.Candle{}, fmt.Errorf("%w: session kline %d has no datetime (%v)", domain.ErrMalformedRecord, k.ID, k.Datetime)
	}
	c := entity.Candle{
		Timestamp: ts,
		Open:      SafeFloat(k.Open, 0),
		High:      SafeFloat(k.High, 0),
		Low:       SafeFloat(k.Low, 0),
		Close:     SafeFloat(k.Close, 0),
		Volume:    SafeFloat(k.Volume, 0),
	}
	c.Turnover = Turnover(c.Close, c.Volume)
	return c, nil
}

// KlinesFromSession converts a session chart. Malformed bars are dropped and
// logged; the result is ascending by timestamp with duplicates collapsed to
// the last occurrence.
func KlinesFromSession(raws []tqdto.Kline) []entity.Candle {
	out := make([]entity.Candle, 0, len(raws))
	for _, k := range raws {
		c, err := KlineFromSession(k)
		if err != nil {
			slog.Warn("dropping session kline", "id", k.ID, "error", err)
			continue
		}
		out = append(out, c)
	}
	return sortDedupe(out)
}

// KlineFromREST converts one REST bar. The REST timestamp is in seconds.
func KlineFromREST(item alltickdto.KlineItem) (entity.Candle, error) {
	ts, ok := toMillis(item.Timestamp)
	if !ok || ts <= 0 {
		return entity.Candle{}, fmt.Errorf("%w: rest kline has no timestamp (%v)", domain.ErrMalformedRecord, item.Timestamp)
	}
	c := entity.Candle{
		Timestamp: ts,
		Open:      SafeFloat(item.OpenPrice, 0),
		High:      SafeFloat(item.HighPrice, 0),
		Low:       SafeFloat(item.LowPrice, 0),
		Close:     SafeFloat(item.ClosePrice, 0),
		Volume:    SafeFloat(item.Volume, 0),
	}
	if tu := SafeFloat(item.Turnover, 0); tu > 0 {
		c.Turnover = tu
	} else {
		c.Turnover = Turnover(c.Close, c.Volume)
	}
	return c, nil
}

// KlinesFromREST converts a REST kline list with the same guarantees as KlinesFromSession.
func KlinesFromREST(items []alltickdto.KlineItem) []entity.Candle {
	out := make([]entity.Candle, 0, len(items))
	for i, item := range items {
		c, err := KlineFromREST(item)
		if err != nil {
			slog.Warn("dropping rest kline", "index", i, "error", err)
			continue
		}
		out = append(out, c)
	}
	return sortDedupe(out)
}

func sortDedupe(cs []entity.Candle) []entity.Candle {
	slices.SortStableFunc(cs, func(a, b entity.Candle) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	out := cs[:0]
	for _, c := range cs {
		if n := len(out); n > 0 && out[n-1].Timestamp == c.Timestamp {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}
