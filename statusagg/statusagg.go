// Package statusagg folds a linked group's per-board statuses into the
// single aggregated status the façade returns to the caller (spec.md §4.4).
package statusagg

import (
	"dio64board/errcode"
	"dio64board/wire"
)

// Severity is the total order over board states used to rank a linked
// group's members: None < End < NotStarted < Wait < Run < Error (spec.md
// §4.4, §8).
type Severity int

const (
	SeverityNone Severity = iota
	SeverityEnd
	SeverityNotStarted
	SeverityWait
	SeverityRun
	SeverityError
)

// Member is one board's contribution to an aggregation pass: its status
// word plus enough identity to report which board a reply originated from.
type Member struct {
	TabIndex int
	Status   wire.ClientStatus
	Running  bool
	// ExtClockLockLost reports whether the sole error condition present is
	// loss of the external clock lock, distinguishing ErrorLockLost from
	// the generic ErrorBoard (spec.md §4.4: "ERROR_BOARD (or
	// ERROR_LOCK_LOST if the sole failing bit is external-clock-lock)").
	ExtClockLockLost bool
}

// Result is the outcome of aggregating a linked group's statuses.
type Result struct {
	Status   wire.ClientStatus
	TabIndex int
	Code     errcode.Code
}

// classify maps one member's status bits to its severity rank. When
// ignoreClockLoss is set, a member whose sole error is external-clock-lock
// loss (ExtClockLockLost) is classified by its remaining bits instead of as
// an Error, matching spec.md §7's downgrade of ClockLost to a user warning.
func classify(m Member, ignoreClockLoss bool) Severity {
	bits := m.Status.StatusBits
	if bits&wire.StatusError != 0 && !(ignoreClockLoss && m.ExtClockLockLost) {
		return SeverityError
	}
	if bits&wire.StatusEnd != 0 {
		return SeverityEnd
	}
	if bits&wire.StatusRun != 0 {
		return SeverityRun
	}
	if m.Running {
		return SeverityWait
	}
	if bits&wire.StatusReady != 0 || bits&wire.StatusReset != 0 {
		return SeverityNotStarted
	}
	return SeverityNone
}

// Aggregate scans members and returns the status of the highest-severity
// member, so that e.g. a linked group only reports End once every member
// has ended, and any single Error dominates (spec.md §4.4/§8 scenario 5).
// members must be non-empty. ignoreClockLoss mirrors boardconfig.Config's
// flag of the same name: when set, a board whose sole error is lost
// external-clock-lock never surfaces as errcode.ClockLost (spec.md §7).
func Aggregate(members []Member, ignoreClockLoss bool) Result {
	best := members[0]
	bestSev := classify(best, ignoreClockLoss)
	for _, m := range members[1:] {
		if sev := classify(m, ignoreClockLoss); sev > bestSev {
			best, bestSev = m, sev
		}
	}

	code := errcode.OK
	if bestSev == SeverityError {
		if best.ExtClockLockLost {
			code = errcode.ClockLost
		} else {
			code = errcode.BoardState
		}
	}
	return Result{Status: best.Status, TabIndex: best.TabIndex, Code: code}
}
