package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// AUTO directs the board to load its own default for StrobeDelay, SyncWait,
// or SyncPhase (spec.md §3).
const AUTO uint32 = 0xffffffff

// ClientConfig is the wire-visible configuration structure exchanged by
// OUT_CONFIG, recovered from the DIO24 driver's client_config layout
// (original_source/Windows-DLL/dio64_32/dio24/dio24_server.h) and extended
// with the strobe/sync words spec.md §3 documents as part of the same
// structure. All fields are little-endian uint32 and packed without
// padding.
type ClientConfig struct {
	BusHz       uint32 // external/bus clock frequency in Hz
	ScanHz      uint32 // requested scan rate in; echoed as actual rate
	Ctrl        uint32 // DIO_CTRL_* bitfield
	TrigIn      uint32 // input trigger control word (start/stop/restart sources)
	TrigOut     uint32 // output trigger control word
	Reps        uint32 // repetition count, 0 = infinite
	Trans       uint32 // number of samples (informational, set by Out_Write)
	StrobeDelay uint32 // AUTO or a concrete strobe delay word
	SyncWait    uint32 // AUTO or a concrete sync-wait word
	SyncPhase   uint32 // AUTO or a concrete sync-phase word
}

// ClientConfigSize is ClientConfig's fixed wire size in bytes.
const ClientConfigSize = 4 * 10

// Encode writes c's wire representation, little-endian, into a fresh
// ClientConfigSize-byte slice.
func (c ClientConfig) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(ClientConfigSize)
	_ = binary.Write(buf, binary.LittleEndian, c)
	return buf.Bytes()
}

// DecodeClientConfig parses a ClientConfigSize-byte slice into a ClientConfig.
func DecodeClientConfig(b []byte) (ClientConfig, error) {
	var c ClientConfig
	if len(b) < ClientConfigSize {
		return c, fmt.Errorf("wire: short client_config: %d bytes, need %d", len(b), ClientConfigSize)
	}
	r := bytes.NewReader(b[:ClientConfigSize])
	if err := binary.Read(r, binary.LittleEndian, &c); err != nil {
		return c, err
	}
	return c, nil
}

// ClientStatus is the wire-visible run status returned by GET_STATUS and
// GET_STATUS_IRQ, grounded on the DIO24 driver's FPGA_status_run.
type ClientStatus struct {
	BoardTime  uint32 // FPGA scan-count register
	SampleIdx  uint32 // FPGA sample-index register
	StatusBits uint32 // DIO_STATUS_* bitfield
}

// ClientStatusSize is ClientStatus's fixed wire size in bytes.
const ClientStatusSize = 4 * 3

func (s ClientStatus) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(ClientStatusSize)
	_ = binary.Write(buf, binary.LittleEndian, s)
	return buf.Bytes()
}

func DecodeClientStatus(b []byte) (ClientStatus, error) {
	var s ClientStatus
	if len(b) < ClientStatusSize {
		return s, fmt.Errorf("wire: short client_status: %d bytes, need %d", len(b), ClientStatusSize)
	}
	r := bytes.NewReader(b[:ClientStatusSize])
	if err := binary.Read(r, binary.LittleEndian, &s); err != nil {
		return s, err
	}
	return s, nil
}

// ClientStatusFull is the extended GET_STATUS_FULL variant: control
// registers, period measurements, error/IRQ counters, descriptor counts,
// the last sample written, firmware version, and a hardware-model code,
// grounded on FPGA_status in dio24_driver.h.
type ClientStatusFull struct {
	ClientStatus

	CtrlFPGA uint32 // FPGA control register (echo of Ctrl)
	CtrlDMA  uint32 // DMA control bits

	PeriodMeasured uint32 // measured scan period, board time units

	ErrCountTX   uint32
	ErrCountRX   uint32
	ErrCountFPGA uint32

	IRQCountTX   uint32
	IRQCountRX   uint32
	IRQCountFPGA uint32

	DescPrepared uint8
	DescActive   uint8
	DescDone     uint8
	_            uint8 // pad to keep the struct 4-byte aligned on the wire

	LastSample [12]byte // last sample bytes (up to 96 bits/sample)

	FirmwareVersion uint32
	HWModel         uint32
}

// ClientStatusFullSize is ClientStatusFull's fixed wire size in bytes.
const ClientStatusFullSize = ClientStatusSize + 4*9 + 4 + 12 + 4*2

func (s ClientStatusFull) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(ClientStatusFullSize)
	_ = binary.Write(buf, binary.LittleEndian, s)
	return buf.Bytes()
}

func DecodeClientStatusFull(b []byte) (ClientStatusFull, error) {
	var s ClientStatusFull
	if len(b) < ClientStatusFullSize {
		return s, fmt.Errorf("wire: short client_status_full: %d bytes, need %d", len(b), ClientStatusFullSize)
	}
	r := bytes.NewReader(b[:ClientStatusFullSize])
	if err := binary.Read(r, binary.LittleEndian, &s); err != nil {
		return s, err
	}
	return s, nil
}
