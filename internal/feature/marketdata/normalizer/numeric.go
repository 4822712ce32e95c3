// Package normalizer translates provider-native records into the canonical
// Candle and Quote entities. Every function is pure: no I/O, no shared state,
// and no panics on hostile input.
package normalizer

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// SafeFloat converts a decoded upstream value to a finite float64.
// nil, empty or non-numeric strings, NaN and ±Inf all yield def.
func SafeFloat(v any, def float64) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

// Turnover derives traded value as close*volume.
// The product is computed in decimal so that prices like 6010 * 120 come out exact.
func Turnover(close, volume float64) float64 {
	if !finite(close) || !finite(volume) {
		return 0
	}
	return decimal.NewFromFloat(close).Mul(decimal.NewFromFloat(volume)).InexactFloat64()
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		return parseDecimal(string(x))
	case string:
		return parseDecimal(x)
	case decimal.Decimal:
		f = x.InexactFloat64()
	default:
		return 0, false
	}
	if !finite(f) {
		return 0, false
	}
	return f, true
}

func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f := d.InexactFloat64()
	if !finite(f) {
		return 0, false
	}
	return f, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// round2 rounds half away from zero to two decimal places.
func round2(f float64) float64 {
	if !finite(f) {
		return 0
	}
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}
