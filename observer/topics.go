package observer

import "dio64board/bus"

// Topic roots for the board-domain event vocabulary published over the
// shared bus.Bus, replacing the teacher's HAL/PWM/env topic tree
// (spec.md §4.6's dashboard-observer event list).
var (
	TopicBoardAdded       = bus.T("board", "added")
	TopicBoardRemoved     = bus.T("board", "removed")
	TopicBoardIgnored     = bus.T("board", "ignored")
	TopicStatusChanged    = bus.T("board", "status")
	TopicCommandLog       = bus.T("board", "command")
	TopicConfigChanged    = bus.T("board", "config")
	TopicRunCount         = bus.T("board", "runcount")
	TopicClockLostWarning = bus.T("board", "clockLostWarning")
)

// boardTopic narrows a root topic to one board's tab index, so a dashboard
// can subscribe to a single board via the bus's single-level wildcard
// (board/+/<tab index>) without the
// observer needing to know about subscription filtering.
func boardTopic(root bus.Topic, tabIndex int) bus.Topic {
	out := make(bus.Topic, len(root)+1)
	copy(out, root)
	out[len(root)] = tabIndex
	return out
}
