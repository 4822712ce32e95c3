// Package retry provides bounded polling with a fixed backoff.
package retry

import (
	"context"
	"time"
)

// Outcome is the result of a bounded poll.
type Outcome int

const (
	// Ready means the condition held within the allowed attempts.
	Ready Outcome = iota
	// NotReady means the condition never held, or the context ended first.
	NotReady
)

func (o Outcome) String() string {
	if o == Ready {
		return "ready"
	}
	return "not-ready"
}

// Result reports how a poll ended and how many attempts it took.
type Result struct {
	Outcome  Outcome
	Attempts int
}

// Policy bounds a poll: at most Attempts checks, Interval apart.
type Policy struct {
	Attempts int
	Interval time.Duration
}

// Poll evaluates ready up to p.Attempts times, sleeping p.Interval between
// attempts but not after the last one. At least one attempt is always made.
func Poll(ctx context.Context, p Policy, ready func() bool) Result {
	attempts := max(p.Attempts, 1)
	for i := 1; i <= attempts; i++ {
		if ready() {
			return Result{Outcome: Ready, Attempts: i}
		}
		if i == attempts {
			break
		}
		if !Sleep(ctx, p.Interval) {
			return Result{Outcome: NotReady, Attempts: i}
		}
	}
	return Result{Outcome: NotReady, Attempts: attempts}
}

// Sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
