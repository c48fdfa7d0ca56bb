package api

import (
	"dio64board/errcode"
	"dio64board/wire"
)

// TriggerType is the DIO64 startType/stopType enumeration (spec.md §4.4).
type TriggerType int

const (
	TriggerNone TriggerType = iota
	TriggerLevelHigh
	TriggerLevelLow
	TriggerEdgeRising
	TriggerEdgeFalling
	TriggerEdgeToEdge
)

// TriggerSource is the DIO64 startSource/stopSource enumeration: which
// input line a trigger watches.
type TriggerSource int

const (
	SourceNone TriggerSource = iota
	SourceInput0
	SourceInput1
	SourceInput2
)

// TrigConfig is the caller-facing trigger configuration Out_Config
// translates into the board's TrigIn control word (TrigOut is not derived
// from it).
type TrigConfig struct {
	StartType TriggerType
	StartSrc  TriggerSource
	StopType  TriggerType
	StopSrc   TriggerSource
}

// Trigger control-word bit layout (wire-level, not in the DIO_CTRL_*
// space): low nibble start type, next nibble start source, etc. This is a
// documented table, not a class hierarchy (spec.md §9's "inheritance-based
// lookup tables" redesign note applies here too).
const (
	trigStartTypeShift = 0
	trigStartSrcShift  = 4
	trigStopTypeShift  = 8
	trigStopSrcShift   = 12
)

// translateTrigger packs a TrigConfig into the board's TrigIn control
// word, rejecting edge-to-edge-start combined with an explicit stop
// (edge-to-edge implicitly enables start, stop, and restart on the same
// edge — spec.md §4.4, §8 scenario 6).
func translateTrigger(tc TrigConfig) (uint32, error) {
	if tc.StartType == TriggerEdgeToEdge && tc.StopType != TriggerNone {
		return 0, errcode.Wrapf("api.translateTrigger", errcode.Argument,
			"edge-to-edge start implies stop/restart; an explicit stop may not also be programmed")
	}
	word := uint32(tc.StartType)<<trigStartTypeShift |
		uint32(tc.StartSrc)<<trigStartSrcShift |
		uint32(tc.StopType)<<trigStopTypeShift |
		uint32(tc.StopSrc)<<trigStopSrcShift
	return word, nil
}

// secondaryTrigConfig forces a linked secondary's trigger wiring: start on
// input-0 falling edge and (if the primary programmed a stop) stop/restart
// on input-1. External clock and auto-sync are set separately, by
// secondaryCtrl (spec.md §4.4: "Out_Config
// fan-out ... Secondary boards are forced to: external clock, auto-sync
// enable, start trigger on input-0 falling edge, stop/restart (if
// programmed) on input-1").
func secondaryTrigConfig(primary TrigConfig) TrigConfig {
	tc := TrigConfig{StartType: TriggerEdgeFalling, StartSrc: SourceInput0}
	if primary.StopType != TriggerNone {
		tc.StopType = TriggerEdgeFalling
		tc.StopSrc = SourceInput1
	}
	return tc
}

// secondaryCtrl applies the secondary-board control bits (external clock,
// auto-sync, role) on top of the primary's requested Ctrl word.
func secondaryCtrl(ctrl uint32) uint32 {
	return ctrl | wire.CtrlExtClk | wire.CtrlAutoSyncEn | wire.CtrlRoleSecondary
}
