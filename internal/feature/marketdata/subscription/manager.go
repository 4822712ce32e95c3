package subscription

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	tqdto "quote_backend/internal/feature/marketdata/adapters/tqsession/dto"
	"quote_backend/internal/feature/marketdata/domain"
	"quote_backend/internal/feature/marketdata/domain/entity"
	"quote_backend/internal/feature/marketdata/normalizer"
)

// SessionSource is the session provider as seen by the subscription tasks.
type SessionSource interface {
	Connect(ctx context.Context) error
	WaitForUpdate(ctx context.Context, deadline time.Time) error
	KlineSeries(ctx context.Context, instrument string, tf entity.Timeframe, length int) ([]tqdto.Kline, error)
	QuoteSnapshot(ctx context.Context, instrument string) (tqdto.Quote, bool, error)
	Close() error
}

// TaskState is the lifecycle state of one subscription task.
type TaskState string

const (
	StateStopped    TaskState = "stopped"
	StateConnecting TaskState = "connecting"
	StateSubscribed TaskState = "subscribed"
	StateRefreshing TaskState = "refreshing"
	StateStopping   TaskState = "stopping"
)

// TaskStatus describes one task for the health endpoint.
type TaskStatus struct {
	Instrument    string    `json:"instrument"`
	Timeframe     string    `json:"timeframe,omitempty"` // empty for quote tasks
	State         TaskState `json:"state"`
	Liveness      string    `json:"liveness"`
	LastRefreshed time.Time `json:"last_refreshed,omitzero"`
	Bars          int       `json:"bars,omitempty"`
}

type task struct {
	instrument string
	timeframe  entity.Timeframe // empty for the quote task
}

func (t task) quote() bool { return t.timeframe == "" }

func (t task) key() string {
	if t.quote() {
		return t.instrument + "/quote"
	}
	return t.instrument + "/" + t.timeframe.String()
}

// Manager owns the subscription tasks and is the only writer of its Store.
type Manager struct {
	store  *Store
	source SessionSource
	cfg    Config
	tasks  []task
	now    func() time.Time

	stop      atomic.Bool
	wake      chan struct{}
	wakeOnce  sync.Once
	closeOnce sync.Once
	group     *errgroup.Group

	mu     sync.Mutex
	states map[string]TaskState
}

// NewManager creates a Manager with one series task per (instrument, timeframe)
// and one quote task per instrument.
func NewManager(store *Store, source SessionSource, cfg Config) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	m := &Manager{
		store:  store,
		source: source,
		cfg:    cfg,
		now:    time.Now,
		wake:   make(chan struct{}),
		states: make(map[string]TaskState),
	}
	for _, inst := range cfg.Instruments {
		inst = strings.ToUpper(strings.TrimSpace(inst))
		if inst == "" {
			continue
		}
		for _, tf := range cfg.Timeframes {
			m.tasks = append(m.tasks, task{instrument: inst, timeframe: tf})
		}
		m.tasks = append(m.tasks, task{instrument: inst})
	}
	for _, t := range m.tasks {
		m.states[t.key()] = StateStopped
	}
	return m
}

// Start launches every task. It returns immediately.
func (m *Manager) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	m.group = g
	for _, t := range m.tasks {
		g.Go(func() error {
			m.run(gctx, t)
			return nil
		})
	}
	slog.Info("subscription tasks started", "tasks", len(m.tasks))
}

// Stop raises the stop flag, waits for every task to exit and then closes the
// session source exactly once. It is safe to call more than once.
func (m *Manager) Stop() error {
	m.stop.Store(true)
	m.wakeOnce.Do(func() { close(m.wake) })

	var err error
	if m.group != nil {
		err = m.group.Wait()
	}
	m.closeOnce.Do(func() {
		if cerr := m.source.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		slog.Info("subscription tasks stopped")
	})
	return err
}

// Status reports every task's state and the liveness of its entry.
func (m *Manager) Status() []TaskStatus {
	m.mu.Lock()
	states := make(map[string]TaskState, len(m.states))
	for k, v := range m.states {
		states[k] = v
	}
	m.mu.Unlock()

	out := make([]TaskStatus, 0, len(m.tasks))
	for _, t := range m.tasks {
		st := TaskStatus{Instrument: t.instrument, State: states[t.key()]}
		if t.quote() {
			e := m.store.Quote(t.instrument)
			st.Liveness, st.LastRefreshed = e.Liveness.String(), e.LastRefreshed
		} else {
			e := m.store.Series(t.instrument, t.timeframe)
			st.Timeframe = t.timeframe.String()
			st.Liveness, st.LastRefreshed, st.Bars = e.Liveness.String(), e.LastRefreshed, len(e.Candles)
		}
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b TaskStatus) int {
		return strings.Compare(a.Instrument+"/"+a.Timeframe, b.Instrument+"/"+b.Timeframe)
	})
	return out
}

// HealthStatus reports whether every entry is live, with the per-task detail.
func (m *Manager) HealthStatus() (bool, any) {
	statuses := m.Status()
	ok := true
	for _, st := range statuses {
		if st.Liveness != entity.LivenessLive.String() {
			ok = false
		}
	}
	return ok, statuses
}

func (m *Manager) run(ctx context.Context, t task) {
	log := slog.With("instrument", t.instrument, "timeframe", t.timeframe, "quote", t.quote())
	defer m.setState(t, StateStopped, log)

	for !m.stopped(ctx) {
		m.setState(t, StateConnecting, log)
		if err := m.source.Connect(ctx); err != nil {
			if fatal(err) {
				log.Error("session connect failed permanently, task terminated", "error", err)
				m.mark(t, entity.LivenessCold)
				return
			}
			if m.stopped(ctx) {
				break
			}
			log.Warn("session connect failed, retrying", "error", err, "backoff", m.cfg.Backoff)
			m.sleep(ctx)
			continue
		}

		m.setState(t, StateSubscribed, log)
		m.mark(t, entity.LivenessWarming)

		if err := m.refreshLoop(ctx, t, log); err != nil {
			if m.stopped(ctx) {
				break
			}
			if fatal(err) {
				log.Error("refresh failed permanently, task terminated", "error", err)
				m.mark(t, entity.LivenessCold)
				return
			}
			log.Warn("refresh failed, backing off", "error", err, "backoff", m.cfg.Backoff)
			m.sleep(ctx)
		}
	}
	m.setState(t, StateStopping, log)
}

// fatal reports errors that a retry cannot fix: rejected credentials or an
// instrument the session has no contract for.
func fatal(err error) bool {
	return errors.Is(err, domain.ErrAuth) || errors.Is(err, domain.ErrInvalidInstrument)
}

// refreshLoop reads and stores the view after every update until stopped or an error occurs.
func (m *Manager) refreshLoop(ctx context.Context, t task, log *slog.Logger) error {
	first := true
	for !m.stopped(ctx) {
		if err := m.refresh(ctx, t); err != nil {
			return err
		}
		if first {
			m.setState(t, StateRefreshing, log)
			first = false
		}
		if m.stopped(ctx) {
			return nil
		}
		if err := m.source.WaitForUpdate(ctx, m.now().Add(m.cfg.PollInterval)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) refresh(ctx context.Context, t task) error {
	if t.quote() {
		raw, ok, err := m.source.QuoteSnapshot(ctx, t.instrument)
		if err != nil || !ok {
			return err
		}
		prev := m.store.Quote(t.instrument)
		now := m.refreshedAt(prev.LastRefreshed)
		m.store.PutQuote(entity.QuoteEntry{
			Instrument:    t.instrument,
			Quote:         normalizer.QuoteFromSession(t.instrument, raw, now),
			HasQuote:      true,
			LastRefreshed: now,
			Liveness:      entity.LivenessLive,
		})
		return nil
	}

	raws, err := m.source.KlineSeries(ctx, t.instrument, t.timeframe, m.cfg.Retention)
	if err != nil {
		return err
	}
	candles := normalizer.KlinesFromSession(raws)
	if len(candles) == 0 {
		return nil
	}
	if len(candles) > m.cfg.Retention {
		candles = candles[len(candles)-m.cfg.Retention:]
	}
	prev := m.store.Series(t.instrument, t.timeframe)
	m.store.PutSeries(entity.SeriesEntry{
		Instrument:    t.instrument,
		Timeframe:     t.timeframe,
		Candles:       candles,
		LastRefreshed: m.refreshedAt(prev.LastRefreshed),
		Liveness:      entity.LivenessLive,
	})
	return nil
}

// refreshedAt keeps LastRefreshed monotonic even if the wall clock steps back.
func (m *Manager) refreshedAt(prev time.Time) time.Time {
	now := m.now()
	if prev.After(now) {
		return prev
	}
	return now
}

func (m *Manager) mark(t task, l entity.Liveness) {
	if t.quote() {
		m.store.MarkQuote(t.instrument, l)
		return
	}
	m.store.MarkSeries(t.instrument, t.timeframe, l)
}

func (m *Manager) setState(t task, s TaskState, log *slog.Logger) {
	m.mu.Lock()
	prev := m.states[t.key()]
	m.states[t.key()] = s
	m.mu.Unlock()
	if prev != s {
		log.Info("subscription state", "from", prev, "state", s)
	}
}

func (m *Manager) stopped(ctx context.Context) bool {
	return m.stop.Load() || ctx.Err() != nil
}

// sleep waits one backoff interval, returning early on Stop or ctx cancellation.
func (m *Manager) sleep(ctx context.Context) {
	timer := time.NewTimer(m.cfg.Backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-m.wake:
	case <-ctx.Done():
	}
}
