package entity

import "time"

// SeriesEntry is an immutable snapshot of one (instrument, timeframe) cache entry.
// Candles are ascending with the newest last and must not be modified by readers.
type SeriesEntry struct {
	Instrument    string
	Timeframe     Timeframe
	Candles       []Candle
	LastRefreshed time.Time
	Liveness      Liveness
}

// QuoteEntry is an immutable snapshot of one instrument's quote cache entry.
type QuoteEntry struct {
	Instrument    string
	Quote         Quote
	HasQuote      bool
	LastRefreshed time.Time
	Liveness      Liveness
}
