// Package mathx holds the small numeric helpers the board and boardconfig
// packages need for bounding retry counts and deriving AUTO-sentinel
// defaults, kept generic over Go's ordered/unsigned constraints rather than
// hand-duplicated per call site.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi], swapping the bounds if lo > hi. Used to keep
// board's PS_ACTIVE retry budget (the constant board.syncPhaseMaxRetries)
// and boardconfig.DefaultSyncWait's result inside a sane range.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
