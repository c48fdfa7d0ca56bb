// Package timex holds the handful of clock/frequency conversions shared by
// the observer (event timestamps) and boardconfig (scan-period-derived
// defaults) packages.
package timex

import "time"

// NowMs is the current wall clock in Unix milliseconds, used to stamp
// observer events (observer/observer.go) with a time a dashboard can render
// directly without its own clock skew.
func NowMs() int64 { return time.Now().UnixMilli() }

// PeriodFromHz converts a scan frequency into its period in nanoseconds.
// freqHz == 0 is coerced to 1 to avoid dividing by zero (boardconfig treats
// an unset scan rate as "as slow as representable", not an error).
func PeriodFromHz(freqHz uint32) uint64 {
	if freqHz == 0 {
		freqHz = 1
	}
	return uint64(1_000_000_000) / uint64(freqHz)
}
