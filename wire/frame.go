package wire

import "encoding/binary"

// HeaderSize is the byte length of a frame header on the wire.
const HeaderSize = 2

// MaxFrameLen is the largest total frame length the 10-bit length field
// can express (spec.md §6).
const MaxFrameLen = 0x3ff

// Header is the 16-bit little-endian frame header: 6 bits of command code
// packed with a 10-bit total frame length (header included). It uniquely
// identifies each command variant; length is a static property of the
// command code and is verified on both ends (spec.md §4.1).
type Header uint16

// MakeHeader packs cmd and totalLen into a Header. totalLen is silently
// masked to 10 bits; callers must keep frames within MaxFrameLen.
func MakeHeader(cmd Command, totalLen int) Header {
	return Header((uint16(cmd)&0x3f)<<10 | uint16(totalLen)&0x3ff)
}

// Command extracts the 6-bit command code.
func (h Header) Command() Command { return Command(h >> 10 & 0x3f) }

// Length extracts the 10-bit total frame length.
func (h Header) Length() int { return int(h & 0x3ff) }

// Encode writes the little-endian wire form of h into buf[0:2].
func (h Header) Encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf, uint16(h))
}

// DecodeHeader reads a Header from the first two bytes of buf.
func DecodeHeader(buf []byte) Header {
	return Header(binary.LittleEndian.Uint16(buf))
}

// FrameLen is the static total frame length (header included) for every
// command whose payload shape is fixed. OUT_WRITE's sample byte stream is
// not a frame: its byte count travels in the OUT_WRITE frame's 4-byte
// payload and the bytes follow that frame unframed.
var FrameLen = map[Command]int{
	CmdNone:     HeaderSize,
	CmdAck:      HeaderSize,
	CmdNack:     HeaderSize,
	CmdReset:    HeaderSize,
	CmdShutdown: HeaderSize,

	CmdGetFPGAStatus: HeaderSize,
	CmdGetDMAStatus:  HeaderSize,
	CmdGetStatusFull: HeaderSize,
	CmdGetStatus:     HeaderSize,
	CmdGetStatusIRQ:  HeaderSize,
	CmdTest:          HeaderSize + 4,

	CmdOpen:         HeaderSize,
	CmdOpenResource: HeaderSize,
	CmdMode:         HeaderSize,
	CmdLoad:         HeaderSize,
	CmdClose:        HeaderSize,

	CmdInStatus: HeaderSize,
	CmdInStart:  HeaderSize,
	CmdInRead:   HeaderSize,
	CmdInStop:   HeaderSize,

	CmdOutConfig: HeaderSize + ClientConfigSize,
	CmdOutStatus: HeaderSize,
	CmdOutWrite:  HeaderSize + 4, // payload = byte count, data streamed separately
	CmdOutStart:  HeaderSize + 4, // payload = repetitions
	CmdOutStop:   HeaderSize,
	CmdOutForce:  HeaderSize,

	CmdOutGetInput:  HeaderSize,
	CmdGetAttribute: HeaderSize,
	CmdSetAttribute: HeaderSize + 4,

	CmdGetReg:        HeaderSize + 4,
	CmdSetReg:        HeaderSize + 8,
	CmdSetSyncPhase:  HeaderSize + 4,
	CmdAutoSyncStart: HeaderSize,
	CmdAutoSyncStop:  HeaderSize,
}

// ResponseLen returns the frame length a client should expect for cmd's
// response, preferring the status-carrying variants over the bare
// command length where both are possible (GET_STATUS/GET_STATUS_IRQ).
func ResponseLen(cmd Command) (int, bool) {
	switch cmd {
	case CmdGetStatus, CmdGetStatusIRQ:
		return HeaderSize + ClientStatusSize, true
	case CmdGetStatusFull:
		return HeaderSize + ClientStatusFullSize, true
	case CmdOutConfig:
		return HeaderSize + ClientConfigSize, true
	default:
		n, ok := FrameLen[cmd]
		return n, ok
	}
}
