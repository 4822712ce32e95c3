package subscription

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"quote_backend/internal/feature/marketdata/domain/entity"
)

const (
	DefaultInstruments = "AG"
	DefaultTimeframes  = "1m,5m,15m,30m,1h,1d"
	DefaultRetention   = 500
	DefaultBackoff     = 3 * time.Second
	// DefaultPollInterval bounds each WaitForUpdate so the stop flag is checked at least this often.
	DefaultPollInterval = time.Second
)

// Config configures the background subscription tasks.
type Config struct {
	Instruments  []string
	Timeframes   []entity.Timeframe
	Retention    int
	Freshness    time.Duration
	Backoff      time.Duration
	PollInterval time.Duration
}

// LoadConfig reads the subscription settings from the environment.
// Unknown timeframes in SESSION_TIMEFRAMES are logged and skipped.
func LoadConfig() Config {
	cfg := Config{
		Instruments:  SplitList(envOr("SESSION_INSTRUMENTS", DefaultInstruments)),
		Retention:    DefaultRetention,
		Freshness:    durationEnv("SUBSCRIPTION_FRESHNESS", DefaultFreshness),
		Backoff:      durationEnv("SUBSCRIPTION_BACKOFF", DefaultBackoff),
		PollInterval: DefaultPollInterval,
	}
	for _, s := range SplitList(envOr("SESSION_TIMEFRAMES", DefaultTimeframes)) {
		tf, err := entity.ParseTimeframe(s)
		if err != nil {
			slog.Warn("ignoring subscription timeframe", "timeframe", s, "error", err)
			continue
		}
		cfg.Timeframes = append(cfg.Timeframes, tf)
	}
	if v, err := strconv.Atoi(os.Getenv("SUBSCRIPTION_RETENTION")); err == nil && v > 0 {
		cfg.Retention = v
	}
	return cfg
}

// FilterInstruments keeps the instruments accepted by ok and returns the rest.
func (c *Config) FilterInstruments(ok func(string) bool) (dropped []string) {
	kept := c.Instruments[:0:0]
	for _, inst := range c.Instruments {
		if ok(inst) {
			kept = append(kept, inst)
		} else {
			dropped = append(dropped, inst)
		}
	}
	c.Instruments = kept
	return dropped
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return def
}
