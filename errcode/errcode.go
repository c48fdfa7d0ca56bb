// Package errcode defines the stable numeric result codes returned across
// the board API, following the DIO64 convention that 0 (or any positive
// value) means success and a negative value identifies a specific failure.
package errcode

import "strconv"

// Code is a stable, caller-facing result identifier. Zero means success;
// negative values are errors. It is comparable and allocation-free.
type Code int32

func (c Code) Error() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "errcode(" + strconv.Itoa(int(c)) + ")"
}

// Ok reports whether c represents success.
func (c Code) Ok() bool { return c >= 0 }

const (
	OK Code = 0

	// Argument and call-shape errors.
	Argument       Code = -1 // bad parameter (board number, mode, size)
	AlreadyOpen    Code = -2 // handle already open for this board
	NoWorker       Code = -3 // handle does not name a live worker
	BoardState     Code = -4 // board reports an error state, or its echoed config does not match the request
	Unsupported    Code = -5 // input-side or other not-yet-implemented operation

	// Process and locking.
	Lock Code = -10 // could not acquire the cross-process board lock in time

	// Transport.
	Send     Code = -20 // write to the board socket failed or timed out
	Recv     Code = -21 // read from the board socket failed or timed out
	Timeout  Code = -22 // operation exceeded its deadline waiting on the board
	Connect  Code = -23 // TCP connect to the board failed

	// Wire protocol.
	Protocol   Code = -30 // malformed or unexpected frame from the board
	ServerNACK Code = -31 // board server returned SERVER_NACK

	// Board/domain conditions.
	ClockLost     Code = -40 // external clock lost while ignore_clock_loss is false
	ConnectAbort  Code = -41 // connect-failure policy callback chose Abort
	ConnectIgnore Code = -42 // connect-failure policy callback chose Ignore

	// Resources.
	Memory Code = -50 // allocation/buffer bound exceeded (e.g. 1 MiB write cap)
)

var names = map[Code]string{
	OK:            "ok",
	Argument:      "invalid argument",
	AlreadyOpen:   "board already open",
	NoWorker:      "no such worker",
	BoardState:    "invalid board state for operation",
	Unsupported:   "unsupported operation",
	Lock:          "could not acquire board lock",
	Send:          "send failed",
	Recv:          "receive failed",
	Timeout:       "operation timed out",
	Connect:       "connect failed",
	Protocol:      "protocol error",
	ServerNACK:    "board server rejected command",
	ClockLost:     "external clock lost",
	ConnectAbort:  "connect aborted by policy",
	ConnectIgnore: "connect ignored by policy",
	Memory:        "resource limit exceeded",
}

// E wraps a Code with an operation name, a human message, and an optional
// underlying cause, for callers that want more than the bare code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := e.Op + ": " + e.C.Error()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an *E, recording the operation, the code, and the cause.
func Wrap(op string, c Code, err error) *E {
	return &E{C: c, Op: op, Err: err}
}

// Wrapf is Wrap with a formatted message instead of a wrapped error.
func Wrapf(op string, c Code, msg string) *E {
	return &E{C: c, Op: op, Msg: msg}
}

// Of extracts a Code from an error, defaulting to Argument for an
// unrecognized non-nil error so callers always get a negative code.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Argument
}
