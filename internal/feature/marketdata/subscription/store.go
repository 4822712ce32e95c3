// Package subscription keeps session-routed instruments warm: one background
// task per (instrument, timeframe) and per quote writes immutable snapshots
// into a Store that request goroutines read without blocking the writer.
package subscription

import (
	"sync"
	"sync/atomic"
	"time"

	"quote_backend/internal/feature/marketdata/domain/entity"
	"quote_backend/internal/feature/marketdata/usecase"
)

// DefaultFreshness is how long after its last refresh an entry counts as live.
const DefaultFreshness = 30 * time.Second

type seriesKey struct {
	instrument string
	timeframe  entity.Timeframe
}

// Store holds the latest snapshot of every cache entry.
//
// The mutex guards only the maps. Each entry is an atomic pointer to an
// immutable value, replaced wholesale by its single owning task, so a reader
// always sees one complete snapshot.
type Store struct {
	mu     sync.RWMutex
	series map[seriesKey]*atomic.Pointer[entity.SeriesEntry]
	quotes map[string]*atomic.Pointer[entity.QuoteEntry]

	freshness time.Duration
	now       func() time.Time
}

// StoreがMarketCacheを実装していることをコンパイル時に検証します。
var _ usecase.MarketCache = (*Store)(nil)

// NewStore creates an empty Store.
func NewStore(freshness time.Duration) *Store {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &Store{
		series:    make(map[seriesKey]*atomic.Pointer[entity.SeriesEntry]),
		quotes:    make(map[string]*atomic.Pointer[entity.QuoteEntry]),
		freshness: freshness,
		now:       time.Now,
	}
}

// Series returns the snapshot for (instrument, tf) with its liveness evaluated now.
// An unknown pair is cold and empty.
func (s *Store) Series(instrument string, tf entity.Timeframe) entity.SeriesEntry {
	s.mu.RLock()
	p := s.series[seriesKey{instrument, tf}]
	s.mu.RUnlock()

	if p == nil {
		return entity.SeriesEntry{Instrument: instrument, Timeframe: tf, Liveness: entity.LivenessCold}
	}
	e := *p.Load()
	e.Liveness = s.liveness(e.LastRefreshed, e.Liveness)
	return e
}

// Quote returns the quote snapshot of instrument with its liveness evaluated now.
func (s *Store) Quote(instrument string) entity.QuoteEntry {
	s.mu.RLock()
	p := s.quotes[instrument]
	s.mu.RUnlock()

	if p == nil {
		return entity.QuoteEntry{Instrument: instrument, Liveness: entity.LivenessCold}
	}
	e := *p.Load()
	e.Liveness = s.liveness(e.LastRefreshed, e.Liveness)
	return e
}

// PutSeries replaces the entry of (e.Instrument, e.Timeframe).
func (s *Store) PutSeries(e entity.SeriesEntry) {
	s.seriesSlot(seriesKey{e.Instrument, e.Timeframe}).Store(&e)
}

// PutQuote replaces the quote entry of e.Instrument.
func (s *Store) PutQuote(e entity.QuoteEntry) {
	s.quoteSlot(e.Instrument).Store(&e)
}

// MarkSeries sets the liveness of an entry that has not been refreshed yet.
// Entries holding data are left untouched.
func (s *Store) MarkSeries(instrument string, tf entity.Timeframe, l entity.Liveness) {
	p := s.seriesSlot(seriesKey{instrument, tf})
	if cur := p.Load(); cur != nil && !cur.LastRefreshed.IsZero() {
		return
	}
	p.Store(&entity.SeriesEntry{Instrument: instrument, Timeframe: tf, Liveness: l})
}

// MarkQuote is MarkSeries for quote entries.
func (s *Store) MarkQuote(instrument string, l entity.Liveness) {
	p := s.quoteSlot(instrument)
	if cur := p.Load(); cur != nil && !cur.LastRefreshed.IsZero() {
		return
	}
	p.Store(&entity.QuoteEntry{Instrument: instrument, Liveness: l})
}

func (s *Store) liveness(refreshed time.Time, stored entity.Liveness) entity.Liveness {
	if refreshed.IsZero() {
		return stored
	}
	if s.now().Sub(refreshed) <= s.freshness {
		return entity.LivenessLive
	}
	return entity.LivenessStale
}

func (s *Store) seriesSlot(k seriesKey) *atomic.Pointer[entity.SeriesEntry] {
	s.mu.RLock()
	p := s.series[k]
	s.mu.RUnlock()
	if p != nil {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p = s.series[k]; p == nil {
		p = &atomic.Pointer[entity.SeriesEntry]{}
		p.Store(&entity.SeriesEntry{Instrument: k.instrument, Timeframe: k.timeframe})
		s.series[k] = p
	}
	return p
}

func (s *Store) quoteSlot(instrument string) *atomic.Pointer[entity.QuoteEntry] {
	s.mu.RLock()
	p := s.quotes[instrument]
	s.mu.RUnlock()
	if p != nil {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p = s.quotes[instrument]; p == nil {
		p = &atomic.Pointer[entity.QuoteEntry]{}
		p.Store(&entity.QuoteEntry{Instrument: instrument})
		s.quotes[instrument] = p
	}
	return p
}
