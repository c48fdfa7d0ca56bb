package wire

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	h := MakeHeader(CmdOutWrite, HeaderSize+4)
	if h.Command() != CmdOutWrite {
		t.Fatalf("Command() = %v, want %v", h.Command(), CmdOutWrite)
	}
	if h.Length() != HeaderSize+4 {
		t.Fatalf("Length() = %d, want %d", h.Length(), HeaderSize+4)
	}

	buf := make([]byte, HeaderSize)
	h.Encode(buf)
	got := DecodeHeader(buf)
	if got != h {
		t.Fatalf("DecodeHeader(Encode(h)) = %v, want %v", got, h)
	}
}

func TestHeaderMasksOversizeFields(t *testing.T) {
	h := MakeHeader(Command(0xff), 0x7fff)
	if h.Command() != Command(0xff&0x3f) {
		t.Fatalf("Command() = %v, want %v", h.Command(), Command(0xff&0x3f))
	}
	if h.Length() != 0x7fff&0x3ff {
		t.Fatalf("Length() = %d, want %d", h.Length(), 0x7fff&0x3ff)
	}
}

func TestClientConfigRoundTrip(t *testing.T) {
	c := ClientConfig{
		BusHz:       10_000_000,
		ScanHz:      1_000_000,
		Ctrl:        CtrlIRQAll | CtrlBPS96,
		TrigIn:      0x1,
		TrigOut:     0x2,
		Reps:        1,
		Trans:       1000,
		StrobeDelay: AUTO,
		SyncWait:    AUTO,
		SyncPhase:   AUTO,
	}
	enc := c.Encode()
	if len(enc) != ClientConfigSize {
		t.Fatalf("Encode() len = %d, want %d", len(enc), ClientConfigSize)
	}
	dec, err := DecodeClientConfig(enc)
	if err != nil {
		t.Fatalf("DecodeClientConfig: %v", err)
	}
	if dec != c {
		t.Fatalf("DecodeClientConfig(Encode(c)) = %+v, want %+v", dec, c)
	}
}

func TestDecodeClientConfigShortBuffer(t *testing.T) {
	if _, err := DecodeClientConfig(make([]byte, ClientConfigSize-1)); err == nil {
		t.Fatal("expected error decoding a short buffer")
	}
}

func TestClientStatusRoundTrip(t *testing.T) {
	s := ClientStatus{BoardTime: 123, SampleIdx: 1003, StatusBits: StatusRun | StatusExtLocked}
	dec, err := DecodeClientStatus(s.Encode())
	if err != nil {
		t.Fatalf("DecodeClientStatus: %v", err)
	}
	if dec != s {
		t.Fatalf("round trip mismatch: got %+v, want %+v", dec, s)
	}
}

func TestCommandNameUnknownFallsBack(t *testing.T) {
	if got := Command(63).Name(); got != "UNKNOWN" {
		t.Fatalf("Name() = %q, want UNKNOWN", got)
	}
}

func TestSampleSize(t *testing.T) {
	if got := SampleSize(0); got != 8 {
		t.Fatalf("SampleSize(0) = %d, want 8", got)
	}
	if got := SampleSize(CtrlBPS96); got != 12 {
		t.Fatalf("SampleSize(CtrlBPS96) = %d, want 12", got)
	}
}
