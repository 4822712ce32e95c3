package normalizer

import (
	"fmt"
	"strings"
	"time"

	alltickdto "quote_backend/internal/feature/marketdata/adapters/alltick/dto"
	tqdto "quote_backend/internal/feature/marketdata/adapters/tqsession/dto"
	"quote_backend/internal/feature/marketdata/domain/entity"
)

// QuoteFromSession converts the session quote of instrument.
// Only book levels with a usable price are kept. Change and ChangePercent are
// computed against the previous settlement and rounded to two places.
func QuoteFromSession(instrument string, raw tqdto.Quote, now time.Time) entity.Quote {
	q := entity.Quote{
		Instrument:      instrument,
		LastPrice:       SafeFloat(raw.LastPrice, 0),
		Volume:          SafeFloat(raw.Volume, 0),
		EventTime:       eventTime(raw.Datetime, now),
		Amount:          SafeFloat(raw.Amount, 0),
		OpenInterest:    SafeFloat(raw.OpenInterest, 0),
		Open:            SafeFloat(raw.Open, 0),
		Highest:         SafeFloat(raw.Highest, 0),
		Lowest:          SafeFloat(raw.Lowest, 0),
		Close:           SafeFloat(raw.Close, 0),
		Average:         SafeFloat(raw.Average, 0),
		SettlementPrice: SafeFloat(raw.Settlement, 0),
		PreSettlement:   SafeFloat(raw.PreSettlement, 0),
		PreClose:        SafeFloat(raw.PreClose, 0),
		PreOpenInterest: SafeFloat(raw.PreOpenInterest, 0),
		UpperLimit:      SafeFloat(raw.UpperLimit, 0),
		LowerLimit:      SafeFloat(raw.LowerLimit, 0),
		InstrumentName:  safeString(raw.InstrumentName),
		PriceTick:       SafeFloat(raw.PriceTick, 0),
		VolumeMultiple:  SafeFloat(raw.VolumeMultiple, 0),
		Bids:            bookSide(raw.BidPrice, raw.BidVolume),
		Asks:            bookSide(raw.AskPrice, raw.AskVolume),
	}
	if q.LastPrice > 0 && q.PreSettlement > 0 {
		change := q.LastPrice - q.PreSettlement
		q.Change = round2(change)
		q.ChangePercent = round2(change / q.PreSettlement * 100)
	}
	return q
}

// QuoteFromDepth converts a REST depth tick. The REST API publishes no trade
// fields with the book, so LastPrice is left at zero.
func QuoteFromDepth(tick alltickdto.DepthTick, now time.Time) entity.Quote {
	q := entity.Quote{
		Instrument: tick.Code,
		EventTime:  eventTime(tick.TickTime, now),
		Bids:       depthSide(tick.Bids),
		Asks:       depthSide(tick.Asks),
	}
	return q
}

// TradeFromTick converts a REST trade tick.
func TradeFromTick(tick alltickdto.TradeTick, now time.Time) entity.Trade {
	return entity.Trade{
		Instrument: tick.Code,
		Price:      SafeFloat(tick.Price, 0),
		Volume:     SafeFloat(tick.Volume, 0),
		TickTime:   eventTime(tick.TickTime, now),
	}
}

// TradeFromQuote derives the latest trade print from a quote snapshot.
func TradeFromQuote(q entity.Quote) entity.Trade {
	return entity.Trade{
		Instrument: q.Instrument,
		Price:      q.LastPrice,
		Volume:     q.Volume,
		TickTime:   q.EventTime,
	}
}

func eventTime(v any, now time.Time) int64 {
	if ms, ok := toMillis(v); ok && ms > 0 {
		return ms
	}
	return now.UnixMilli()
}

func bookSide(prices, volumes [5]any) []entity.BookLevel {
	levels := make([]entity.BookLevel, 0, entity.MaxBookDepth)
	for i := range entity.MaxBookDepth {
		p, ok := toFloat(prices[i])
		if !ok || p <= 0 {
			continue
		}
		levels = append(levels, entity.BookLevel{Price: p, Volume: SafeFloat(volumes[i], 0)})
	}
	return levels
}

func depthSide(in []alltickdto.DepthLevel) []entity.BookLevel {
	levels := make([]entity.BookLevel, 0, min(len(in), entity.MaxBookDepth))
	for _, l := range in {
		if len(levels) == entity.MaxBookDepth {
			break
		}
		p, ok := toFloat(l.Price)
		if !ok || p <= 0 {
			continue
		}
		levels = append(levels, entity.BookLevel{Price: p, Volume: SafeFloat(l.Volume, 0)})
	}
	return levels
}

func safeString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	default:
		return fmt.Sprint(x)
	}
}
