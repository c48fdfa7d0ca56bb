// Package observer wraps a bus.Connection with the typed, non-blocking
// event vocabulary the public façade publishes for an external dashboard
// (spec.md §6 "Observer interface to UI"). It rides on bus/bus.go's
// non-blocking, best-effort delivery (tryDeliver/drainOne), which already
// is the "MUST NOT depend on the observer's responsiveness" contract
// spec.md asks for; this package supplies the board-domain topic
// vocabulary and payload shapes, each stamped with a wall-clock timestamp
// (x/timex) so a dashboard can render without its own clock.
package observer

import (
	"sync"
	"time"

	"dio64board/bus"
	"dio64board/wire"
	"dio64board/x/timex"
)

// Observer publishes board-domain events onto a shared bus.Bus.
type Observer struct {
	conn *bus.Connection

	mu         sync.Mutex
	lastPub    map[int]time.Time
	lastStatus map[int]uint32
}

// New wraps conn (obtained via bus.Bus.NewConnection) as an Observer.
func New(conn *bus.Connection) *Observer {
	return &Observer{
		conn:       conn,
		lastPub:    make(map[int]time.Time),
		lastStatus: make(map[int]uint32),
	}
}

func (o *Observer) publish(topic bus.Topic, payload any) {
	o.conn.Publish(o.conn.NewMessage(topic, payload, false))
}

// BoardAdded is published by board.Dial once a new worker has connected,
// before the façade inserts the board's registry record.
type BoardAdded struct {
	TabIndex int
	Addr     string
	At       int64 // Unix ms
}

func (o *Observer) BoardAdded(tabIndex int, addr string) {
	o.publish(boardTopic(TopicBoardAdded, tabIndex), BoardAdded{TabIndex: tabIndex, Addr: addr, At: timex.NowMs()})
}

// BoardRemoved is published whenever a worker's run loop exits: on an
// immediate Close, on deferred-close expiry, or on RequestExit.
type BoardRemoved struct {
	TabIndex int
	At       int64
}

func (o *Observer) BoardRemoved(tabIndex int) {
	o.publish(boardTopic(TopicBoardRemoved, tabIndex), BoardRemoved{TabIndex: tabIndex, At: timex.NowMs()})
}

// BoardIgnored is published when a connect-failure policy callback chooses
// Ignore for a secondary (spec.md §4.4).
type BoardIgnored struct {
	TabIndex int
	Addr     string
	At       int64
}

func (o *Observer) BoardIgnored(tabIndex int, addr string) {
	o.publish(boardTopic(TopicBoardIgnored, tabIndex), BoardIgnored{TabIndex: tabIndex, Addr: addr, At: timex.NowMs()})
}

// StatusChanged is the payload for a throttled status update.
type StatusChanged struct {
	TabIndex int
	Status   wire.ClientStatus
	At       int64
}

// Status publishes a status update, throttled to at most once per second
// per board unless the status bits actually changed (spec.md §6: "status
// bits changed, at most once per second unless the bits actually change").
func (o *Observer) Status(tabIndex int, status wire.ClientStatus) {
	o.mu.Lock()
	last, everSent := o.lastPub[tabIndex]
	lastBits, bitsKnown := o.lastStatus[tabIndex]
	changed := !bitsKnown || lastBits != status.StatusBits
	stale := !everSent || time.Since(last) >= time.Second
	if !changed && !stale {
		o.mu.Unlock()
		return
	}
	o.lastPub[tabIndex] = time.Now()
	o.lastStatus[tabIndex] = status.StatusBits
	o.mu.Unlock()

	o.publish(boardTopic(TopicStatusChanged, tabIndex), StatusChanged{TabIndex: tabIndex, Status: status, At: timex.NowMs()})
}

// CommandLog is the payload for a per-board command-log append.
type CommandLog struct {
	TabIndex int
	Cmd      wire.Command
	Note     string
	At       int64
}

func (o *Observer) CommandLog(tabIndex int, cmd wire.Command, note string) {
	o.publish(boardTopic(TopicCommandLog, tabIndex), CommandLog{TabIndex: tabIndex, Cmd: cmd, Note: note, At: timex.NowMs()})
}

// ConfigChanged is published whenever a board record's stored config is
// replaced after a successful Out_Config ACK.
type ConfigChanged struct {
	TabIndex int
	Config   wire.ClientConfig
	At       int64
}

func (o *Observer) ConfigChanged(tabIndex int, cfg wire.ClientConfig) {
	o.publish(boardTopic(TopicConfigChanged, tabIndex), ConfigChanged{TabIndex: tabIndex, Config: cfg, At: timex.NowMs()})
}

// RunCount is published by each worker whenever its own run counter
// increments, once per successful OUT_STOP. The counter is per board: the
// members of a linked group publish separately and no group-wide total is
// published.
type RunCount struct {
	TabIndex int
	Count    uint32
	At       int64
}

func (o *Observer) RunCount(tabIndex int, count uint32) {
	o.publish(boardTopic(TopicRunCount, tabIndex), RunCount{TabIndex: tabIndex, Count: count, At: timex.NowMs()})
}

// ClockLostWarning is published once per run the first time a board's
// status shows ERR_LOCK together with END: a dialog-style notification the
// UI shows without the operation itself returning an error, unless the
// façade's ignore_clock_loss flag is false (spec.md §7, §4.2 state table).
type ClockLostWarning struct {
	TabIndex int
	Status   wire.ClientStatus
	At       int64
}

func (o *Observer) ClockLostWarning(tabIndex int, status wire.ClientStatus) {
	o.publish(boardTopic(TopicClockLostWarning, tabIndex), ClockLostWarning{TabIndex: tabIndex, Status: status, At: timex.NowMs()})
}
