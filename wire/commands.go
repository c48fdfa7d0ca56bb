// Package wire implements the binary frame codec spoken on the TCP
// connection between this module and a board server: a 2-byte
// little-endian header (6 bits of command, 10 bits of total frame length)
// followed by a fixed-layout payload.
package wire

// Command identifies a frame's operation. The wire encoding packs a
// Command into the top 6 bits of the frame header.
type Command uint8

// Internal server commands (connection housekeeping, not board control).
const (
	CmdNone           Command = 0
	CmdAck            Command = 1
	CmdNack           Command = 2
	CmdReset          Command = 3
	CmdShutdown       Command = 4
	CmdGetFPGAStatus  Command = 5
	CmdGetDMAStatus   Command = 6
	CmdGetStatusFull  Command = 7
	CmdGetStatus      Command = 8
	CmdGetStatusIRQ   Command = 9
	CmdTest           Command = 10
)

// DIO64 board-control commands.
const (
	CmdOpen           Command = 16
	CmdOpenResource   Command = 17
	CmdMode           Command = 18
	CmdLoad           Command = 19
	CmdClose          Command = 20
	CmdInStatus       Command = 21
	CmdInStart        Command = 22
	CmdInRead         Command = 23
	CmdInStop         Command = 24
	CmdOutConfig      Command = 25
	CmdOutStatus      Command = 26
	CmdOutWrite       Command = 27
	CmdOutStart       Command = 28
	CmdOutStop        Command = 29
	CmdOutForce       Command = 30
	CmdOutGetInput    Command = 31
	CmdGetAttribute   Command = 32
	CmdSetAttribute   Command = 33
)

// Register probes and sync/phase commands (spec.md §4.1).
const (
	CmdGetReg        Command = 34
	CmdSetReg        Command = 35
	CmdSetSyncPhase  Command = 36
	CmdAutoSyncStart Command = 37
	CmdAutoSyncStop  Command = 38
)

// CmdGetStatusIRQResponse is the distinct response command a board sends when
// GET_STATUS_IRQ completes because an IRQ actually fired, as opposed to
// degrading to a plain RSP_STATUS on server-side timeout (spec.md §4.1).
// The client must treat both as a successful status response.
const CmdGetStatusIRQResponse Command = CmdGetStatusIRQ

var commandNames = map[Command]string{
	CmdNone:          "NONE",
	CmdAck:           "ACK",
	CmdNack:          "NACK",
	CmdReset:         "RESET",
	CmdShutdown:      "SHUTDOWN",
	CmdGetFPGAStatus: "GET_FPGA_STATUS_BITS",
	CmdGetDMAStatus:  "GET_DMA_STATUS_BITS",
	CmdGetStatusFull: "GET_STATUS_FULL",
	CmdGetStatus:     "GET_STATUS",
	CmdGetStatusIRQ:  "GET_STATUS_IRQ",
	CmdTest:          "TEST",
	CmdOpen:          "OPEN",
	CmdOpenResource:  "OPEN_RESOURCE",
	CmdMode:          "MODE",
	CmdLoad:          "LOAD",
	CmdClose:         "CLOSE",
	CmdInStatus:      "IN_STATUS",
	CmdInStart:       "IN_START",
	CmdInRead:        "IN_READ",
	CmdInStop:        "IN_STOP",
	CmdOutConfig:     "OUT_CONFIG",
	CmdOutStatus:     "OUT_STATUS",
	CmdOutWrite:      "OUT_WRITE",
	CmdOutStart:      "OUT_START",
	CmdOutStop:       "OUT_STOP",
	CmdOutForce:      "OUT_FORCE",
	CmdOutGetInput:   "OUT_GET_INPUT",
	CmdGetAttribute:  "GET_ATTRIBUTE",
	CmdSetAttribute:  "SET_ATTRIBUTE",
	CmdGetReg:        "GET_REG",
	CmdSetReg:        "SET_REG",
	CmdSetSyncPhase:  "SET_SYNC_PHASE",
	CmdAutoSyncStart: "AUTO_SYNC_START",
	CmdAutoSyncStop:  "AUTO_SYNC_STOP",
}

// Name returns the wire protocol's canonical spelling for cmd, or a
// generic placeholder for an unrecognized code. This is a flat lookup
// table rather than a class hierarchy of to-string overrides.
func (cmd Command) Name() string {
	if s, ok := commandNames[cmd]; ok {
		return s
	}
	return "UNKNOWN"
}

func (cmd Command) String() string { return cmd.Name() }

// DefaultServerPort is the board server's well-known TCP port.
const DefaultServerPort = "49701"

// DefaultPort is DefaultServerPort as a bare numeric string, for callers
// building "host:port" addresses.
const DefaultPort = DefaultServerPort
