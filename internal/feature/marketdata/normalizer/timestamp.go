package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// DatetimeLayout is the session provider's wall-clock format.
// A fractional second (".000001") after the seconds is accepted when parsing.
const DatetimeLayout = "2006-01-02 15:04:05"

// ExchangeLocation is the time zone of DatetimeLayout strings (China Standard Time, no DST).
var ExchangeLocation = time.FixedZone("CST", 8*60*60)

// Upper bounds of each epoch unit, by digit count: a present-day timestamp has
// 10 digits in seconds, 13 in milliseconds, 16 in microseconds and 19 in nanoseconds.
const (
	secondsUpper = 1e11
	millisUpper  = 1e14
	microsUpper  = 1e17
)

// TimestampMillis classifies an epoch value by magnitude and converts it to milliseconds.
func TimestampMillis(v int64) int64 {
	switch {
	case v > microsUpper:
		return v / 1_000_000
	case v > millisUpper:
		return v / 1_000
	case v > secondsUpper:
		return v
	default:
		return v * 1_000
	}
}

// TimestampMillisFloat is TimestampMillis for fractional inputs. NaN and ±Inf yield 0.
func TimestampMillisFloat(f float64) int64 {
	if !finite(f) {
		return 0
	}
	switch {
	case f > microsUpper:
		return int64(f / 1e6)
	case f > millisUpper:
		return int64(f / 1e3)
	case f > secondsUpper:
		return int64(f)
	default:
		return int64(math.Round(f * 1e3))
	}
}

// ParseTimestamp converts a string timestamp to milliseconds.
// Numeric strings are classified by TimestampMillis; anything else is parsed
// as DatetimeLayout in ExchangeLocation. Unparseable input yields now.
func ParseTimestamp(s string, now time.Time) int64 {
	if ms, ok := toMillis(s); ok {
		return ms
	}
	return now.UnixMilli()
}

// toMillis converts any decoded upstream timestamp to milliseconds.
// It reports false for nil, empty and unparseable values.
func toMillis(v any) (int64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int64:
		return TimestampMillis(x), true
	case int:
		return TimestampMillis(int64(x)), true
	case float64:
		if !finite(x) {
			return 0, false
		}
		return TimestampMillisFloat(x), true
	case json.Number:
		return millisFromString(string(x))
	case string:
		return millisFromString(x)
	case time.Time:
		return x.UnixMilli(), true
	default:
		return 0, false
	}
}

func millisFromString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return TimestampMillis(n), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if !finite(f) {
			return 0, false
		}
		return TimestampMillisFloat(f), true
	}
	t, err := time.ParseInLocation(DatetimeLayout, s, ExchangeLocation)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}
