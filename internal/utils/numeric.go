package utils

import (
	"math"
	"strconv"
	"strings"
)

// ToFloat coerces an untrusted value into a float64. JSON decoding hands us
// float64, string, json.Number-ish values or nothing at all; anything that
// cannot be parsed, or is NaN/Inf, becomes the fallback.
func ToFloat(v interface{}, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fallback
		}
		return n
	case float32:
		return ToFloat(float64(n), fallback)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fallback
		}
		return f
	case nil:
		return fallback
	default:
		return fallback
	}
}

// ToInt64 coerces an untrusted value into an int64, truncating fractional
// input. Unparseable input becomes the fallback.
func ToInt64(v interface{}, fallback int64) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fallback
		}
		return int64(n)
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f)
		}
		return fallback
	case nil:
		return fallback
	default:
		return fallback
	}
}

// ClampPct clamps a percentage to the [0, 100] range.
func ClampPct(pct float64) float64 {
	if math.IsNaN(pct) || pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// NonNegative clamps a float to zero from below, mapping NaN to zero as well.
func NonNegative(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	return f
}

// PlausibleAddress reports whether s looks like a base58 Solana address.
// This is a length/charset sanity check, not on-chain validation; it exists
// so reward routing never credits an obviously junk destination.
func PlausibleAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '1' && c <= '9':
		case c >= 'A' && c <= 'H':
		case c >= 'J' && c <= 'N':
		case c >= 'P' && c <= 'Z':
		case c >= 'a' && c <= 'k':
		case c >= 'm' && c <= 'z':
		default:
			return false
		}
	}
	return true
}
