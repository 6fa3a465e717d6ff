// Package mapper holds the pure conversions between raw device properties and
// normalized entity values, in both directions. Nothing here keeps state or
// talks to a device.
package mapper

import (
	"cmp"
	"math"

	"github.com/spf13/cast"
)

// Float converts a raw numeric property. nil, NaN and values cast cannot read
// as a number are reported as not ok.
func Float(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int truncates a raw numeric property towards zero.
func Int(v any) (int, bool) {
	f, ok := Float(v)
	if !ok {
		return 0, false
	}
	return int(math.Trunc(f)), true
}

// Bool reads a raw flag. Values cast cannot interpret are true when present.
func Bool(v any) bool {
	if v == nil {
		return false
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return true
	}
	return b
}

func String(v any) string {
	return cast.ToString(v)
}

func clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// round rounds half to even (banker's rounding): 2.5 gives 2, 3.5 gives 4.
func round(f float64) int {
	return int(math.RoundToEven(f))
}
