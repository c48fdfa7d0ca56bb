package api

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"dio64board/board"
	"dio64board/errcode"
	"dio64board/registry"
	"dio64board/wire"
)

// fakeServer answers board-protocol frames on an accepted connection,
// standing in for a real board server. It records the last OUT_WRITE
// payload and the config it echoes back on OUT_CONFIG, mirroring the
// board package's own test double but reachable across an api-level
// linked group of two listeners.
type fakeServer struct {
	ln net.Listener

	mu         sync.Mutex
	lastWrite  []byte
	lastConfig wire.ClientConfig
	statusBits uint32
}

func newFakeServerAt(t *testing.T, host string, port int) (*fakeServer, string) {
	t.Helper()
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		t.Fatalf("net.Listen %s: %v", addr, err)
	}
	t.Cleanup(func() { ln.Close() })
	fs := &fakeServer{ln: ln}
	go fs.serve()
	return fs, ln.Addr().String()
}

func newFakeServer(t *testing.T) (*fakeServer, string) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	fs := &fakeServer{ln: ln}
	go fs.serve()
	return fs, ln.Addr().String()
}

func (fs *fakeServer) port() int {
	return fs.ln.Addr().(*net.TCPAddr).Port
}

func (fs *fakeServer) serve() {
	for {
		c, err := fs.ln.Accept()
		if err != nil {
			return
		}
		go fs.handleConn(c)
	}
}

func (fs *fakeServer) handleConn(c net.Conn) {
	defer c.Close()
	for {
		hdr := make([]byte, wire.HeaderSize)
		c.SetReadDeadline(time.Now().Add(5 * time.Second))
		if _, err := readFull(c, hdr); err != nil {
			return
		}
		h := wire.DecodeHeader(hdr)
		cmd := h.Command()
		payloadLen := h.Length() - wire.HeaderSize
		payload := make([]byte, payloadLen)
		if payloadLen > 0 {
			if _, err := readFull(c, payload); err != nil {
				return
			}
		}

		switch cmd {
		case wire.CmdOutConfig:
			cfg, _ := wire.DecodeClientConfig(payload)
			fs.mu.Lock()
			fs.lastConfig = cfg
			fs.mu.Unlock()
			resp := wire.MakeHeader(wire.CmdOutConfig, wire.HeaderSize+wire.ClientConfigSize)
			buf := make([]byte, wire.HeaderSize+wire.ClientConfigSize)
			resp.Encode(buf)
			copy(buf[wire.HeaderSize:], cfg.Encode())
			c.Write(buf)
		case wire.CmdOutWrite:
			n := int(payload[0]) | int(payload[1])<<8 | int(payload[2])<<16 | int(payload[3])<<24
			rest := make([]byte, n)
			readFull(c, rest)
			fs.mu.Lock()
			fs.lastWrite = rest
			fs.mu.Unlock()
			ack := make([]byte, wire.HeaderSize)
			wire.MakeHeader(wire.CmdAck, wire.HeaderSize).Encode(ack)
			c.Write(ack)
		case wire.CmdOutStart, wire.CmdOutStop, wire.CmdReset, wire.CmdClose, wire.CmdSetSyncPhase:
			respLen, _ := wire.ResponseLen(cmd)
			buf := make([]byte, respLen)
			wire.MakeHeader(wire.CmdAck, respLen).Encode(buf)
			c.Write(buf)
		case wire.CmdGetStatusIRQ, wire.CmdGetStatus:
			fs.mu.Lock()
			bits := fs.statusBits
			fs.mu.Unlock()
			st := wire.ClientStatus{StatusBits: bits}
			respLen, _ := wire.ResponseLen(wire.CmdGetStatusIRQ)
			buf := make([]byte, respLen)
			wire.MakeHeader(wire.CmdGetStatusIRQ, respLen).Encode(buf)
			copy(buf[wire.HeaderSize:], st.Encode())
			c.Write(buf)
		default:
			buf := make([]byte, wire.HeaderSize)
			wire.MakeHeader(wire.CmdNack, wire.HeaderSize).Encode(buf)
			c.Write(buf)
		}
	}
}

func readFull(c net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := c.Read(buf[n:])
		if err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}

func TestSingleBoardLifecycle(t *testing.T) {
	_, addr := newFakeServer(t)
	f := New()
	ctx := context.Background()

	h, err := f.Open(ctx, addr, registry.UserID(1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := f.OutConfig(h, ConfigArgs{ScanHz: 1000, Reps: 1}); err != nil {
		t.Fatalf("OutConfig: %v", err)
	}
	if err := f.OutWrite(h, make([]byte, 8*4), 8); err != nil {
		t.Fatalf("OutWrite: %v", err)
	}
	if err := f.OutStart(h); err != nil {
		t.Fatalf("OutStart: %v", err)
	}
	if _, _, err := f.OutStatus(h); err != nil {
		t.Fatalf("OutStatus: %v", err)
	}
	if err := f.OutStop(h); err != nil {
		t.Fatalf("OutStop: %v", err)
	}
	if err := f.Close(h, 0); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCloseThenCloseReturnsNoWorker(t *testing.T) {
	_, addr := newFakeServer(t)
	f := New()
	ctx := context.Background()

	h, err := f.Open(ctx, addr, registry.UserID(1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Close(h, 0); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	err = f.Close(h, 0)
	if err == nil {
		t.Fatal("expected error on double close")
	}
	if errcode.Of(err) != errcode.NoWorker {
		t.Fatalf("double-close code = %v, want NoWorker", errcode.Of(err))
	}
}

func TestDeferredCloseThenReopenReturnsSameHandle(t *testing.T) {
	_, addr := newFakeServer(t)
	f := New()
	ctx := context.Background()

	h1, err := f.Open(ctx, addr, registry.UserID(1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Close(h1, time.Second); err != nil {
		t.Fatalf("Close: %v", err)
	}

	h2, err := f.Open(ctx, addr, registry.UserID(1))
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	if h2 != h1 {
		t.Fatalf("reopen handle = %d, want %d (stable across deferred-close window)", h2, h1)
	}
}

func TestLinkedGroupWriteSlicesDataWords(t *testing.T) {
	fs1, addr1 := newFakeServerAt(t, "127.0.0.1", 0)
	port := fs1.port()
	fs2, addr2 := newFakeServerAt(t, "127.0.0.2", port)
	_ = addr2

	f := New()
	ctx := context.Background()

	h, err := f.OpenResource(ctx, addr1, registry.UserID(1), 2)
	if err != nil {
		t.Fatalf("OpenResource(baseio=2): %v", err)
	}
	if err := f.OutConfig(h, ConfigArgs{ScanHz: 1000, Reps: 1}); err != nil {
		t.Fatalf("OutConfig: %v", err)
	}

	// One 12-byte sample: time=0x01020304, primary word=0x05060708,
	// secondary word=0x090A0B0C.
	sample := []byte{4, 3, 2, 1, 8, 7, 6, 5, 0x0C, 0x0B, 0x0A, 0x09}
	if err := f.OutWrite(h, sample, 12); err != nil {
		t.Fatalf("OutWrite: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	fs1.mu.Lock()
	got1 := append([]byte(nil), fs1.lastWrite...)
	fs1.mu.Unlock()
	fs2.mu.Lock()
	got2 := append([]byte(nil), fs2.lastWrite...)
	fs2.mu.Unlock()

	want1 := []byte{4, 3, 2, 1, 8, 7, 6, 5}
	want2 := []byte{4, 3, 2, 1, 0x0C, 0x0B, 0x0A, 0x09}
	if string(got1) != string(want1) {
		t.Fatalf("primary got % x, want % x", got1, want1)
	}
	if string(got2) != string(want2) {
		t.Fatalf("secondary got % x, want % x", got2, want2)
	}
}

func TestOpenResourceIgnoresUnreachableSecondary(t *testing.T) {
	_, addr := newFakeServer(t)
	f := New(WithConnectPolicy(func(addr string, attempt int, err error) board.ConnectDecision {
		return board.ConnectIgnore
	}))
	ctx := context.Background()

	h, err := f.OpenResource(ctx, addr, registry.UserID(1), 2)
	if err == nil {
		t.Fatal("expected a ConnectIgnore error for the unreachable secondary")
	}
	if errcode.Of(err) != errcode.ConnectIgnore {
		t.Fatalf("code = %v, want ConnectIgnore", errcode.Of(err))
	}
	if h == 0 {
		t.Fatal("expected a valid primary handle despite the ignored secondary")
	}
	if err := f.Close(h, 0); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOutConfigRejectsEdgeToEdgeWithExplicitStop(t *testing.T) {
	_, addr := newFakeServer(t)
	f := New()
	ctx := context.Background()

	h, err := f.Open(ctx, addr, registry.UserID(1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = f.OutConfig(h, ConfigArgs{
		Trigger: TrigConfig{StartType: TriggerEdgeToEdge, StopType: TriggerEdgeRising},
	})
	if err == nil {
		t.Fatal("expected rejection of edge-to-edge start combined with an explicit stop")
	}
}

func TestExitAllTearsDownEveryBoard(t *testing.T) {
	_, addr1 := newFakeServer(t)
	_, addr2 := newFakeServer(t)
	f := New()
	ctx := context.Background()

	if _, err := f.Open(ctx, addr1, registry.UserID(1)); err != nil {
		t.Fatalf("Open 1: %v", err)
	}
	if _, err := f.Open(ctx, addr2, registry.UserID(2)); err != nil {
		t.Fatalf("Open 2: %v", err)
	}
	if err := f.ExitAll(); err != nil {
		t.Fatalf("ExitAll: %v", err)
	}
}
