// Package board implements the per-board worker: one goroutine per FPGA
// board that owns its TCP socket, applies commands in enqueue order, and
// polls status while running (spec.md §4.2, §5).
//
// Grounded on the teacher's services/hal/worker.go single-goroutine
// select-loop shape (a channel of requests, a timer driving periodic
// work) and on services/bridge/bridge.go for the connection lifecycle and
// backoff-retry idiom; generalized from HAL's measurement-adaptor polling
// to DIO64's Configure/Write/Start/Stop/Status/Close command set.
package board

import (
	"context"
	"sync"
	"time"

	"dio64board/errcode"
	"dio64board/observer"
	"dio64board/queue"
	"dio64board/transport"
	"dio64board/wire"
	"dio64board/x/mathx"
)

// State is the worker's lifecycle state (spec.md §4.2).
type State int

const (
	StateUnconnected State = iota
	StateConnectedIdle
	StateConfigured
	StateRunning
	StateDeferredClose
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnectedIdle:
		return "connected_idle"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateDeferredClose:
		return "deferred_close"
	case StateExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// ConnectDecision is a connect-failure policy's verdict (spec.md §9,
// replacing the source's interactive Abort/Retry/Ignore message box).
type ConnectDecision int

const (
	ConnectRetry ConnectDecision = iota
	ConnectAbort
	ConnectIgnore
)

// ConnectPolicy decides how to handle a failed dial attempt. attempt is
// 1-based. The default policy (see DefaultConnectPolicy) makes three
// attempts in all, then aborts.
type ConnectPolicy func(addr string, attempt int, err error) ConnectDecision

// DefaultConnectPolicy retries up to 3 attempts, then aborts.
func DefaultConnectPolicy(addr string, attempt int, err error) ConnectDecision {
	if attempt < 3 {
		return ConnectRetry
	}
	return ConnectAbort
}

// StatusCallback is invoked from the worker's polling loop once per
// received status frame while Running (spec.md §4.6). It has no return
// value: a registered callback stays installed until RegisterCallback
// replaces it, and registering nil removes it. It must not call back into
// the public façade.
type StatusCallback func(wire.ClientStatus)

// PollInterval is how often the run loop polls status while Running.
const PollInterval = 100 * time.Millisecond

// DeferredCloseDefault is the default grace window after Close during
// which a prompt re-Open reuses this worker instead of tearing it down
// (spec.md §5, glossary "Deferred close").
const DeferredCloseDefault = 200 * time.Millisecond

// recvQCapacity bounds the status recv queue. It only ever needs to hold
// the single latest status entry (collapse-last keeps it at one), the
// slack exists for the rare window between Update and a consumer's Peek.
const recvQCapacity = 4

type reqKind int

const (
	reqConfigure reqKind = iota
	reqWrite
	reqWriteStream
	reqStart
	reqStop
	reqStatus
	reqClose
	reqReopen
	reqRegisterCallback
	reqSetSyncPhase
)

// chunkSource supplies a OUT_WRITE payload incrementally: it calls emit
// once per chunk, in order, with a buffer emit must not retain past the
// call. Used by WriteStream to carry a board.Slice-style producer through
// the request channel without pre-materializing the whole buffer.
type chunkSource func(emit func([]byte) error) error

type request struct {
	kind      reqKind
	cfg       wire.ClientConfig
	write     []byte
	writeLen  int
	writeFrom chunkSource
	closeDur  time.Duration
	cb        StatusCallback
	phase     uint32
	reply     chan response
}

type response struct {
	cfg    wire.ClientConfig
	status wire.ClientStatus
	err    error
}

// Worker owns one board's TCP connection and command stream.
type Worker struct {
	Addr     string
	TabIndex int
	Role     Role

	obs        *observer.Observer
	policy     ConnectPolicy
	cmdTimeout time.Duration
	ackTimeout time.Duration

	reqCh     chan request
	exitCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once

	// recvQ holds the most recent status frames pushed by the Running-state
	// poll loop via collapse-last, so a caller's Status() can Peek the
	// latest snapshot instead of forcing a fresh round trip (spec.md §4.2,
	// §4.3).
	recvQ *queue.Queue

	mu         sync.Mutex
	state      State
	conn       *transport.Conn
	cfg        wire.ClientConfig
	lastStatus wire.ClientStatus
	callback   StatusCallback
	runCount   uint32
	reps       uint32

	// clockLostNotified guards the one-shot ERR_LOCK+END observer dialog
	// (spec.md §4.2 state table) against firing again every poll for the
	// remainder of a run; doStart clears it for the next cycle.
	clockLostNotified bool

	deferredTimer *time.Timer
}

// Dial opens a TCP connection to addr and starts the worker's run loop.
// obs may be nil (no observer wired). policy may be nil (DefaultConnectPolicy).
// A ConnectRetry verdict waits a backoff delay (100 ms, doubling up to 1 s)
// before the next attempt; ctx cancelled during that wait aborts the dial.
func Dial(ctx context.Context, addr string, tabIndex int, role Role, obs *observer.Observer, policy ConnectPolicy) (*Worker, error) {
	if policy == nil {
		policy = DefaultConnectPolicy
	}
	var conn *transport.Conn
	var err error
	backoff := transport.BackoffSeq(100*time.Millisecond, time.Second)
	for attempt := 1; ; attempt++ {
		conn, err = transport.Dial(ctx, addr, transport.DefaultDialTimeout)
		if err == nil {
			break
		}
		switch policy(addr, attempt, err) {
		case ConnectAbort:
			return nil, errcode.Wrap("board.Dial", errcode.ConnectAbort, err)
		case ConnectIgnore:
			return nil, errcode.Wrap("board.Dial", errcode.ConnectIgnore, err)
		case ConnectRetry:
			if !transport.Sleep(ctx, backoff()) {
				return nil, errcode.Wrap("board.Dial", errcode.ConnectAbort, ctx.Err())
			}
			continue
		}
	}

	w := &Worker{
		Addr:       addr,
		TabIndex:   tabIndex,
		Role:       role,
		obs:        obs,
		policy:     policy,
		cmdTimeout: transport.DefaultCommandTimeout,
		ackTimeout: transport.DefaultUploadACKTimeout,
		conn:       conn,
		state:      StateConnectedIdle,
		reqCh:      make(chan request),
		exitCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		recvQ:      queue.New(recvQCapacity),
	}
	if obs != nil {
		obs.BoardAdded(tabIndex, addr)
	}
	go w.run()
	return w, nil
}

// RequestExit implements registry.WorkerHandle: it asks the run loop to
// synthesize THREAD_EXIT and tear down. Safe to call more than once.
func (w *Worker) RequestExit() {
	w.closeOnce.Do(func() { close(w.exitCh) })
	<-w.doneCh
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) run() {
	defer close(w.doneCh)
	defer func() {
		w.mu.Lock()
		conn := w.conn
		w.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		if w.obs != nil {
			w.obs.BoardRemoved(w.TabIndex)
		}
	}()

	pollTimer := time.NewTimer(PollInterval)
	defer pollTimer.Stop()

	for {
		select {
		case <-w.exitCh:
			return
		case req := <-w.reqCh:
			w.handle(req)
		case <-pollTimer.C:
			if w.State() == StateRunning {
				w.pollOnce()
			}
			pollTimer.Reset(PollInterval)
		}
	}
}

func (w *Worker) send(req request) response {
	select {
	case w.reqCh <- req:
	case <-w.exitCh:
		return response{err: errcode.Wrapf("board", errcode.NoWorker, "worker exiting")}
	}
	// Once the run loop has taken the request, handle always replies, even
	// when the request itself (Close with deferFor 0) closes exitCh.
	return <-req.reply
}

func (w *Worker) handle(req request) {
	switch req.kind {
	case reqConfigure:
		cfg, err := w.doConfigure(req.cfg)
		req.reply <- response{cfg: cfg, err: err}
	case reqWrite:
		err := w.doWrite(req.write)
		req.reply <- response{err: err}
	case reqWriteStream:
		err := w.doWriteStream(req.writeLen, req.writeFrom)
		req.reply <- response{err: err}
	case reqStart:
		err := w.doStart()
		req.reply <- response{err: err}
	case reqStop:
		err := w.doStop()
		req.reply <- response{err: err}
	case reqStatus:
		st, err := w.status()
		req.reply <- response{status: st, err: err}
	case reqClose:
		err := w.doClose(req.closeDur)
		req.reply <- response{err: err}
	case reqReopen:
		err := w.doReopen()
		req.reply <- response{err: err}
	case reqRegisterCallback:
		w.mu.Lock()
		w.callback = req.cb
		w.mu.Unlock()
		req.reply <- response{}
	case reqSetSyncPhase:
		err := w.doSetSyncPhase(req.phase)
		req.reply <- response{err: err}
	}
}

func (w *Worker) roundTrip(cmd wire.Command, payload []byte, respLen int) ([]byte, error) {
	hdr := wire.MakeHeader(cmd, wire.HeaderSize+len(payload))
	buf := make([]byte, wire.HeaderSize+len(payload))
	hdr.Encode(buf)
	copy(buf[wire.HeaderSize:], payload)

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return nil, errcode.Wrapf("board", errcode.NoWorker, "not connected")
	}

	if err := conn.Send(buf, w.cmdTimeout); err != nil {
		return nil, errcode.Wrap("board.roundTrip", errcode.Send, err)
	}
	resp := make([]byte, respLen)
	if err := conn.Recv(resp, w.cmdTimeout); err != nil {
		return nil, errcode.Wrap("board.roundTrip", errcode.Recv, err)
	}
	rh := wire.DecodeHeader(resp[:wire.HeaderSize])
	if rh.Command() == wire.CmdNack {
		return nil, errcode.Wrapf("board.roundTrip", errcode.ServerNACK, cmd.Name())
	}
	if rh.Command() != cmd && rh.Command() != wire.CmdAck && rh.Command() != wire.CmdGetStatus {
		return nil, errcode.Wrapf("board.roundTrip", errcode.Protocol, "got "+rh.Command().Name()+" for "+cmd.Name())
	}
	return resp[wire.HeaderSize:], nil
}

func (w *Worker) doConfigure(cfg wire.ClientConfig) (wire.ClientConfig, error) {
	payload := cfg.Encode()
	respLen, _ := wire.ResponseLen(wire.CmdOutConfig)
	body, err := w.roundTrip(wire.CmdOutConfig, payload, respLen)
	if err != nil {
		return wire.ClientConfig{}, err
	}
	got, err := wire.DecodeClientConfig(body)
	if err != nil {
		return wire.ClientConfig{}, errcode.Wrap("board.doConfigure", errcode.Protocol, err)
	}
	if got.Ctrl&wire.UserBits != cfg.Ctrl&wire.UserBits {
		return wire.ClientConfig{}, errcode.Wrapf("board.doConfigure", errcode.BoardState,
			"echoed config word does not match requested USER_BITS")
	}
	w.mu.Lock()
	w.cfg = got
	w.reps = got.Reps
	w.state = StateConfigured
	w.mu.Unlock()
	if w.obs != nil {
		w.obs.ConfigChanged(w.TabIndex, got)
		w.obs.CommandLog(w.TabIndex, wire.CmdOutConfig, "configured")
	}
	return got, nil
}

func (w *Worker) doWrite(samples []byte) error {
	return w.doWriteStream(len(samples), func(emit func([]byte) error) error {
		return emit(samples)
	})
}

// writeHeader builds and sends the OUT_WRITE length-prefix header declaring
// totalLen bytes of payload to follow, ahead of any of it being sent.
func (w *Worker) writeHeader(conn *transport.Conn, totalLen int) error {
	countPayload := []byte{
		byte(totalLen), byte(totalLen >> 8), byte(totalLen >> 16), byte(totalLen >> 24),
	}
	hdr := wire.MakeHeader(wire.CmdOutWrite, wire.HeaderSize+len(countPayload))
	head := make([]byte, wire.HeaderSize+len(countPayload))
	hdr.Encode(head)
	copy(head[wire.HeaderSize:], countPayload)
	return conn.Send(head, w.cmdTimeout)
}

// doWriteStream issues OUT_WRITE declaring totalLen bytes up front, then
// pulls chunks from source and sends each directly onto the wire as it is
// produced, never holding more than one chunk in memory at a time (spec.md
// §4.5's O(1)-memory constraint, which the caller-facing linked slicer
// path relies on: totalLen is computed analytically from the input size
// rather than from a materialized output buffer).
func (w *Worker) doWriteStream(totalLen int, source chunkSource) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return errcode.Wrapf("board", errcode.NoWorker, "not connected")
	}
	if err := w.writeHeader(conn, totalLen); err != nil {
		return errcode.Wrap("board.doWriteStream", errcode.Send, err)
	}
	if err := source(func(chunk []byte) error {
		if err := conn.SendChunked(chunk, w.cmdTimeout); err != nil {
			return errcode.Wrap("board.doWriteStream", errcode.Send, err)
		}
		return nil
	}); err != nil {
		return err
	}
	ack := make([]byte, wire.HeaderSize)
	if err := conn.Recv(ack, w.ackTimeout); err != nil {
		return errcode.Wrap("board.doWriteStream", errcode.Recv, err)
	}
	if wire.DecodeHeader(ack).Command() == wire.CmdNack {
		return errcode.Wrapf("board.doWriteStream", errcode.ServerNACK, "OUT_WRITE")
	}
	if w.obs != nil {
		w.obs.CommandLog(w.TabIndex, wire.CmdOutWrite, "wrote samples")
	}
	return nil
}

func (w *Worker) doStart() error {
	w.mu.Lock()
	reps := w.reps
	w.mu.Unlock()
	payload := []byte{byte(reps), byte(reps >> 8), byte(reps >> 16), byte(reps >> 24)}
	respLen, _ := wire.ResponseLen(wire.CmdOutStart)
	if _, err := w.roundTrip(wire.CmdOutStart, payload, respLen); err != nil {
		return err
	}
	w.mu.Lock()
	w.clockLostNotified = false
	w.mu.Unlock()
	w.setState(StateRunning)
	if w.obs != nil {
		w.obs.CommandLog(w.TabIndex, wire.CmdOutStart, "started")
	}
	return nil
}

func (w *Worker) doStop() error {
	respLen, _ := wire.ResponseLen(wire.CmdOutStop)
	if _, err := w.roundTrip(wire.CmdOutStop, nil, respLen); err != nil {
		return err
	}
	w.setState(StateConfigured)
	w.mu.Lock()
	w.runCount++
	count := w.runCount
	w.mu.Unlock()
	if w.obs != nil {
		w.obs.CommandLog(w.TabIndex, wire.CmdOutStop, "stopped")
		w.obs.RunCount(w.TabIndex, count)
	}
	return nil
}

func (w *Worker) doStatus() (wire.ClientStatus, error) {
	respLen, _ := wire.ResponseLen(wire.CmdGetStatusIRQ)
	body, err := w.roundTrip(wire.CmdGetStatusIRQ, nil, respLen)
	if err != nil {
		return wire.ClientStatus{}, err
	}
	st, err := wire.DecodeClientStatus(body)
	if err != nil {
		return wire.ClientStatus{}, errcode.Wrap("board.doStatus", errcode.Protocol, err)
	}
	w.mu.Lock()
	w.lastStatus = st
	w.mu.Unlock()
	return st, nil
}

// status serves a caller's Status() request. While Running, the poll loop
// (pollOnce) is already issuing GET_STATUS_IRQ on PollInterval and keeping
// recvQ current, so this peeks the cached entry instead of contending for
// another round trip on the wire (spec.md §4.2/§4.3: Peek "intended for
// status polling during RUN without disturbing the queue"). Outside
// Running there is no background poller, so it issues a fresh round trip.
func (w *Worker) status() (wire.ClientStatus, error) {
	if w.State() != StateRunning {
		return w.doStatus()
	}
	if e, ok := w.recvQ.Peek(0); ok {
		if st, ok := e.Data.(wire.ClientStatus); ok {
			return st, nil
		}
	}
	return w.doStatus()
}

// pollOnce is invoked only from the run loop's own goroutine while
// Running; it issues a status poll, publishes the result onto recvQ via
// collapse-last (spec.md §4.3 "Update") so a fast sequence of polls never
// grows the queue past one entry, and on success invokes the registered
// callback and the observer (spec.md §4.2, §4.6). A status that shows END
// or the RUN bit cleared ages the worker back to Configured without
// waiting for an explicit Out_Stop; ERR_LOCK combined with END additionally
// fires a one-shot observer dialog (spec.md §4.2 state table, §7).
func (w *Worker) pollOnce() {
	st, err := w.doStatus()
	if err != nil {
		return
	}
	w.recvQ.Update(&queue.Entry{Cmd: wire.CmdGetStatusIRQ, Data: st})
	if w.obs != nil {
		w.obs.Status(w.TabIndex, st)
	}

	ended := st.StatusBits&wire.StatusEnd != 0
	if ended || st.StatusBits&wire.StatusRun == 0 {
		w.setState(StateConfigured)
		if ended && st.StatusBits&wire.StatusErrLock != 0 && w.obs != nil {
			w.mu.Lock()
			already := w.clockLostNotified
			w.clockLostNotified = true
			w.mu.Unlock()
			if !already {
				w.obs.ClockLostWarning(w.TabIndex, st)
			}
		}
	}

	w.mu.Lock()
	cb := w.callback
	w.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

func (w *Worker) doClose(deferFor time.Duration) error {
	respLen, _ := wire.ResponseLen(wire.CmdReset)
	if _, err := w.roundTrip(wire.CmdReset, nil, respLen); err != nil {
		return err
	}
	w.setState(StateDeferredClose)
	if deferFor <= 0 {
		err := w.finalizeClose()
		w.closeOnce.Do(func() { close(w.exitCh) })
		return err
	}
	w.deferredTimer = time.AfterFunc(deferFor, func() {
		w.finalizeClose()
		w.closeOnce.Do(func() { close(w.exitCh) })
	})
	return nil
}

func (w *Worker) finalizeClose() error {
	respLen, _ := wire.ResponseLen(wire.CmdClose)
	_, err := w.roundTrip(wire.CmdClose, nil, respLen)
	if w.obs != nil {
		w.obs.CommandLog(w.TabIndex, wire.CmdClose, "closed")
	}
	return err
}

// doReopen cancels a pending deferred-close timer so the worker stays
// alive: the board already received RESET but not CLOSE (spec.md §8
// scenario 3).
func (w *Worker) doReopen() error {
	if w.deferredTimer != nil {
		w.deferredTimer.Stop()
		w.deferredTimer = nil
	}
	w.setState(StateConnectedIdle)
	return nil
}

// syncPhaseMaxRetries bounds how many times SetSyncPhase polls PS_ACTIVE
// before giving up; doSetSyncPhase passes it through mathx.Clamp into
// [1, 200].
const syncPhaseMaxRetries = 50

func (w *Worker) doSetSyncPhase(phase uint32) error {
	payload := []byte{byte(phase), byte(phase >> 8), byte(phase >> 16), byte(phase >> 24)}
	respLen, _ := wire.ResponseLen(wire.CmdSetSyncPhase)
	if _, err := w.roundTrip(wire.CmdSetSyncPhase, payload, respLen); err != nil {
		return err
	}

	retries := mathx.Clamp(syncPhaseMaxRetries, 1, 200)
	for i := 0; i < retries; i++ {
		st, err := w.doStatus()
		if err != nil {
			return err
		}
		if st.StatusBits&wire.PSActive == 0 {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errcode.Wrapf("board.doSetSyncPhase", errcode.Timeout, "PS_ACTIVE did not clear")
}

// SetSyncPhase issues SET_SYNC_PHASE and polls PS_ACTIVE until it clears,
// since a phase shift is not instantaneous (spec.md §4.1).
func (w *Worker) SetSyncPhase(phase uint32) error {
	r := w.send(request{kind: reqSetSyncPhase, phase: phase, reply: make(chan response, 1)})
	return r.err
}

// Configure issues OUT_CONFIG and returns the board's echoed configuration.
func (w *Worker) Configure(cfg wire.ClientConfig) (wire.ClientConfig, error) {
	r := w.send(request{kind: reqConfigure, cfg: cfg, reply: make(chan response, 1)})
	return r.cfg, r.err
}

// Write issues OUT_WRITE with the given raw sample bytes.
func (w *Worker) Write(samples []byte) error {
	r := w.send(request{kind: reqWrite, write: samples, reply: make(chan response, 1)})
	return r.err
}

// WriteStream issues OUT_WRITE declaring totalLen bytes up front, then
// pulls chunks from source directly onto the wire as they are produced
// instead of requiring the whole payload already assembled in memory
// (spec.md §4.5). Used by the façade's linked-slicer path, where source
// is board.Slice's emit callback and totalLen is known analytically from
// the caller's input size without running the slicer first.
func (w *Worker) WriteStream(totalLen int, source func(emit func([]byte) error) error) error {
	r := w.send(request{kind: reqWriteStream, writeLen: totalLen, writeFrom: source, reply: make(chan response, 1)})
	return r.err
}

// Start issues OUT_START.
func (w *Worker) Start() error {
	r := w.send(request{kind: reqStart, reply: make(chan response, 1)})
	return r.err
}

// Stop issues OUT_STOP.
func (w *Worker) Stop() error {
	r := w.send(request{kind: reqStop, reply: make(chan response, 1)})
	return r.err
}

// Status serves the façade's Out_Status entry point. While Running it
// returns the latest status cached by the poll loop (issuing a
// GET_STATUS_IRQ round trip only if none is cached yet); otherwise it
// issues a single GET_STATUS_IRQ round trip.
func (w *Worker) Status() (wire.ClientStatus, error) {
	r := w.send(request{kind: reqStatus, reply: make(chan response, 1)})
	return r.status, r.err
}

// Close issues RESET and starts the deferred-close window. A zero
// deferFor closes immediately (spec.md §5: "callers depending on
// promptness must pass timeout=0").
func (w *Worker) Close(deferFor time.Duration) error {
	r := w.send(request{kind: reqClose, closeDur: deferFor, reply: make(chan response, 1)})
	return r.err
}

// Reopen cancels this worker's deferred-close window for reuse by a rapid
// re-Open (spec.md §8 scenario 3).
func (w *Worker) Reopen() error {
	r := w.send(request{kind: reqReopen, reply: make(chan response, 1)})
	return r.err
}

// Drain empties any status entries already queued on recvQ, without
// blocking past budget total. The façade calls this after a linked
// group's Start has ACKed on every member, to flush whatever the
// Running-state poll loop queued up while earlier members were still
// starting (spec.md §4.4: "after ACK the façade drains any queued status
// responses up to 10x the command-timeout").
func (w *Worker) Drain(budget time.Duration) {
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		if _, ok := w.recvQ.Remove(0); !ok {
			return
		}
	}
}

// RegisterCallback installs or replaces the per-board status callback
// invoked from the polling loop while Running (spec.md §4.6).
func (w *Worker) RegisterCallback(cb StatusCallback) {
	w.send(request{kind: reqRegisterCallback, cb: cb, reply: make(chan response, 1)})
}

// ForceOutput composes Stop -> Configure(reps=1) -> one-sample Write ->
// Start -> poll until END/ERROR -> Stop, saving and restoring the
// configured repetition count and the run counter so the user-visible run
// counter is unaffected (spec.md §4.4). The RunCount events published by
// the intermediate Stops are not withdrawn.
func (w *Worker) ForceOutput(oneSample []byte) error {
	w.mu.Lock()
	savedReps := w.reps
	savedCfg := w.cfg
	savedRun := w.runCount
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.runCount = savedRun
		w.mu.Unlock()
	}()

	if w.State() == StateRunning {
		if err := w.Stop(); err != nil {
			return err
		}
	}

	forceCfg := savedCfg
	forceCfg.Reps = 1
	if _, err := w.Configure(forceCfg); err != nil {
		return err
	}
	if err := w.Write(oneSample); err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}

	deadline := time.Now().Add(10 * w.cmdTimeout)
	for time.Now().Before(deadline) {
		st, err := w.Status()
		if err != nil {
			return err
		}
		if st.StatusBits&(wire.StatusEnd|wire.StatusError) != 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := w.Stop(); err != nil {
		return err
	}

	savedCfg.Reps = savedReps
	_, err := w.Configure(savedCfg)
	return err
}
