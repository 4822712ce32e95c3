// Package entity defines the domain models for the marketdata feature.
package entity

// Candle is one OHLCV bar in canonical form.
// Timestamp is milliseconds since the Unix epoch (UTC). OHLC ordering is not
// enforced: upstream bars are passed through as-is after sanitization.
type Candle struct {
	Timestamp int64   // bar open time, ms epoch
	Open      float64 // opening price
	High      float64 // highest price
	Low       float64 // lowest price
	Close     float64 // closing price
	Volume    float64 // traded volume
	Turnover  float64 // traded value, close*volume when upstream omits it
}

// Tail returns the newest n candles of an ascending series.
// The returned slice is a copy and never aliases the input.
func Tail(series []Candle, n int) []Candle {
	if n <= 0 || len(series) == 0 {
		return []Candle{}
	}
	if n > len(series) {
		n = len(series)
	}
	out := make([]Candle, n)
	copy(out, series[len(series)-n:])
	return out
}
