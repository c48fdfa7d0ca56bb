package api

import (
	"time"

	"dio64board/board"
	"dio64board/errcode"
	"dio64board/statusagg"
	"dio64board/transport"
	"dio64board/wire"
)

// ConfigArgs is the caller-facing Out_Config request (spec.md §4.4, §6).
type ConfigArgs struct {
	ScanHz  uint32
	Reps    uint32
	Trans   uint32
	Ctrl    uint32 // caller-set DIO_CTRL_USER bits (clock source, BPS96, etc.)
	Trigger TrigConfig

	StrobeDelay uint32 // wire.AUTO for board default
	SyncWait    uint32
	SyncPhase   uint32

	// Rack selects which of boardconfig's loaded per-rack strobe-delay
	// defaults resolves a wire.AUTO StrobeDelay (spec.md §6). Ignored when
	// the façade has no boardconfig.Config loaded.
	Rack int

	// MaskLen selects the sample size: 0 (default), 2 (8-byte), or 4
	// (12-byte) per spec.md §8 boundary behaviors.
	MaskLen int
}

func validateConfigArgs(args ConfigArgs) error {
	switch args.MaskLen {
	case 0, 2, 4:
	default:
		return errcode.Wrapf("api.OutConfig", errcode.Argument, "maskLen must be 0, 2, or 4")
	}
	return nil
}

// resolveAuto replaces any of cfg's wire.AUTO sentinel fields with this
// façade's loaded boardconfig.Config defaults, leaving them as AUTO (for
// the board itself to resolve) when no config file was loaded (spec.md §6,
// §4.12). memberIndex selects which of a rack's r0/r1/r2 strobe-delay
// defaults applies.
func (f *Facade) resolveAuto(cfg *wire.ClientConfig, rack, memberIndex int) {
	bc := f.boardCfg
	if bc == nil {
		return
	}
	if cfg.StrobeDelay == wire.AUTO {
		if s, ok := bc.ResolveStrobe(rack); ok {
			cfg.StrobeDelay = s.DelayFor(memberIndex)
		}
	}
	if cfg.SyncWait == wire.AUTO {
		cfg.SyncWait = bc.DefaultSyncWait(cfg.ScanHz)
	}
	if cfg.SyncPhase == wire.AUTO && bc.SyncPhase != 0 {
		cfg.SyncPhase = bc.SyncPhase
	}
}

// OutConfig validates args and fans OUT_CONFIG out to every live member of
// handle's linked group, applying role-specific transformations to
// secondaries (spec.md §4.4).
func (f *Facade) OutConfig(handle Handle, args ConfigArgs) error {
	if err := validateConfigArgs(args); err != nil {
		return err
	}
	trigIn, err := translateTrigger(args.Trigger)
	if err != nil {
		return err
	}
	ctrl := args.Ctrl
	if args.MaskLen == 4 {
		ctrl |= wire.CtrlBPS96
	}

	return f.withLock(func() error {
		members, _, err := f.members(handle)
		if err != nil {
			return err
		}
		for i, b := range members {
			w := workerOf(b)
			if w == nil {
				continue
			}
			cfg := wire.ClientConfig{
				ScanHz:      args.ScanHz,
				Ctrl:        ctrl,
				TrigIn:      trigIn,
				Reps:        args.Reps,
				Trans:       args.Trans,
				StrobeDelay: args.StrobeDelay,
				SyncWait:    args.SyncWait,
				SyncPhase:   args.SyncPhase,
			}
			if i > 0 {
				secTrig, err := translateTrigger(secondaryTrigConfig(args.Trigger))
				if err != nil {
					return err
				}
				cfg.TrigIn = secTrig
				cfg.Ctrl = secondaryCtrl(ctrl)
			}
			f.resolveAuto(&cfg, args.Rack, i)
			if _, err := w.Configure(cfg); err != nil {
				return err
			}
		}
		return nil
	})
}

// OutStatus polls handle's group and returns the severity-aggregated
// status and error code (spec.md §4.4).
func (f *Facade) OutStatus(handle Handle) (wire.ClientStatus, errcode.Code, error) {
	var result statusagg.Result
	err := f.withLock(func() error {
		members, _, err := f.members(handle)
		if err != nil {
			return err
		}
		agg := make([]statusagg.Member, len(members))
		for i, b := range members {
			w := workerOf(b)
			if w == nil {
				continue
			}
			st, err := w.Status()
			if err != nil {
				return err
			}
			b.LastStatus = st
			agg[i] = statusagg.Member{
				TabIndex: b.TabIndex,
				Status:   st,
				Running:  w.State() == board.StateRunning,
				ExtClockLockLost: st.StatusBits&wire.StatusError == wire.StatusErrLock,
			}
		}
		ignoreClockLoss := f.boardCfg != nil && f.boardCfg.IgnoreClockLoss
		result = statusagg.Aggregate(agg, ignoreClockLoss)
		return nil
	})
	if err != nil {
		return wire.ClientStatus{}, errcode.Of(err), err
	}
	return result.Status, result.Code, nil
}

// OutWrite fans a sample buffer out to handle's group, applying the
// linked 12-byte-to-8-byte slicer when the group is linked and the
// caller's samples are 12 bytes wide (spec.md §4.4, §4.5); otherwise every
// member receives the buffer unchanged.
func (f *Facade) OutWrite(handle Handle, samples []byte, callerSampleSize int) error {
	if len(samples) == 0 {
		return errcode.Wrapf("api.OutWrite", errcode.Argument, "empty write")
	}
	if len(samples)%callerSampleSize != 0 {
		return errcode.Wrapf("api.OutWrite", errcode.Argument, "buffer length not a multiple of the sample size")
	}

	return f.withLock(func() error {
		members, _, err := f.members(handle)
		if err != nil {
			return err
		}
		linked := len(members) > 1
		for i, b := range members {
			w := workerOf(b)
			if w == nil {
				continue
			}
			if linked && callerSampleSize == 12 {
				role := board.RolePrimary
				if i > 0 {
					role = board.RoleSecondary
				}
				slicedLen := (len(samples) / 12) * 8
				if err := w.WriteStream(slicedLen, func(emit func([]byte) error) error {
					return board.Slice(samples, role, emit)
				}); err != nil {
					return err
				}
				continue
			}
			if err := w.Write(samples); err != nil {
				return err
			}
		}
		return nil
	})
}

// OutStart starts handle's group from the last secondary to the primary,
// so the primary's start trigger finds all secondaries already armed
// (spec.md §4.4, §5). On any failure it stops boards already started.
func (f *Facade) OutStart(handle Handle) error {
	return f.withLock(func() error {
		members, _, err := f.members(handle)
		if err != nil {
			return err
		}
		var started []*board.Worker
		for i := len(members) - 1; i >= 0; i-- {
			w := workerOf(members[i])
			if w == nil {
				continue
			}
			if err := w.Start(); err != nil {
				for _, sw := range started {
					sw.Stop()
				}
				return err
			}
			started = append(started, w)
		}
		for _, w := range started {
			w.Drain(drainTimeout())
		}
		return nil
	})
}

// OutStop stops handle's group in reverse of Start: primary before
// secondaries (spec.md §4.4, §5).
func (f *Facade) OutStop(handle Handle) error {
	return f.withLock(func() error {
		members, _, err := f.members(handle)
		if err != nil {
			return err
		}
		for _, b := range members {
			w := workerOf(b)
			if w == nil {
				continue
			}
			if err := w.Stop(); err != nil {
				return err
			}
		}
		return nil
	})
}

// OutForceOutput composes Stop -> Config(reps=1) -> one-sample Write ->
// Start -> poll -> Stop on every member of handle's group (spec.md §4.4).
func (f *Facade) OutForceOutput(handle Handle, oneSample []byte) error {
	return f.withLock(func() error {
		members, _, err := f.members(handle)
		if err != nil {
			return err
		}
		for _, b := range members {
			w := workerOf(b)
			if w == nil {
				continue
			}
			if err := w.ForceOutput(oneSample); err != nil {
				return err
			}
		}
		return nil
	})
}

// InNotImplemented is returned by every In_* entry point (spec.md §6:
// "In_*: not implemented").
func InNotImplemented() error {
	return errcode.Wrapf("api.In", errcode.Unsupported, "input-capture operations are not implemented")
}

// drainTimeout bounds how long the façade waits after a linked Start's
// last ACK for queued status responses to settle (spec.md §4.4: "up to
// 10x the command-timeout").
func drainTimeout() time.Duration {
	return 10 * transport.DefaultCommandTimeout
}
