package entity

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is the aggregation period of a bar.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe1d  Timeframe = "1d"
	Timeframe1w  Timeframe = "1w"
	Timeframe1M  Timeframe = "1M"
)

type timeframeSpec struct {
	restCode int
	duration time.Duration
}

var timeframes = map[Timeframe]timeframeSpec{
	Timeframe1m:  {restCode: 1, duration: time.Minute},
	Timeframe5m:  {restCode: 2, duration: 5 * time.Minute},
	Timeframe15m: {restCode: 3, duration: 15 * time.Minute},
	Timeframe30m: {restCode: 4, duration: 30 * time.Minute},
	Timeframe1h:  {restCode: 5, duration: time.Hour},
	Timeframe1d:  {restCode: 8, duration: 24 * time.Hour},
	Timeframe1w:  {restCode: 9, duration: 7 * 24 * time.Hour},
	Timeframe1M:  {restCode: 10, duration: 30 * 24 * time.Hour},
}

// AllTimeframes lists every supported timeframe, shortest first.
func AllTimeframes() []Timeframe {
	return []Timeframe{
		Timeframe1m, Timeframe5m, Timeframe15m, Timeframe30m,
		Timeframe1h, Timeframe1d, Timeframe1w, Timeframe1M,
	}
}

// ParseTimeframe resolves a user supplied interval.
// "1M" (month) is matched exactly; every other value is case-insensitive,
// so "1H" and "1h" are the same timeframe but "1m" is a minute.
func ParseTimeframe(s string) (Timeframe, error) {
	s = strings.TrimSpace(s)
	if s == string(Timeframe1M) {
		return Timeframe1M, nil
	}
	tf := Timeframe(strings.ToLower(s))
	if _, ok := timeframes[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// Valid reports whether tf is one of the supported timeframes.
func (tf Timeframe) Valid() bool {
	_, ok := timeframes[tf]
	return ok
}

// RESTCode returns the REST vendor's opaque kline_type code.
func (tf Timeframe) RESTCode() int {
	return timeframes[tf].restCode
}

// Duration returns the bar length used by the session provider.
func (tf Timeframe) Duration() time.Duration {
	return timeframes[tf].duration
}

func (tf Timeframe) String() string { return string(tf) }
