// Package pes implements the narrow PES-header-parsing contract the clock
// inspector pipeline consumes: given the payload bytes of a PUSI=1 packet
// that begins with a PES start code, decode pts_dts_flags, PTS, and DTS.
// Full PES header fields (ESCR, trick mode, private data, ...) are outside
// this contract; see data_pes.go in the teacher library for the complete
// ISO/IEC 13818-1 2.4.3.7 layout this is narrowed from.
package pes

import (
	"bytes"
	"fmt"

	"github.com/icza/bitio"
)

// PTS/DTS indicator values, mirroring ISO/IEC 13818-1 Table 2-21.
const (
	PTSDTSFlagsNone = 0x0
	// 0x1 is forbidden.
	PTSDTSFlagsPTSOnly = 0x2
	PTSDTSFlagsBoth    = 0x3
)

// Header is the narrow PES header this package decodes: just enough for the
// clock inspector to correlate PTS/DTS against PCR and wallclock.
type Header struct {
	StreamID     uint8
	PTSDTSFlags  uint8
	PTS          int64 // 90kHz ticks, valid when PTSDTSFlags != PTSDTSFlagsNone
	DTS          int64 // 90kHz ticks, valid when PTSDTSFlags == PTSDTSFlagsBoth
	HeaderLength uint8 // bytes of optional header fields following HeaderLength itself
}

// ErrNotAPESUnit is returned when payload does not begin with the PES start
// code prefix 00 00 01.
var ErrNotAPESUnit = fmt.Errorf("pes: payload does not start with 00 00 01")

// minPESPrefixLength is the start code (3) + stream id (1) + packet length (2)
// + the two flags bytes and the header-length byte (3) of the optional header.
const minPESPrefixLength = 9

// ParseHeader decodes a PES header prefix out of payload, which must begin
// at the PES start code. It stops after PTS/DTS — it does not walk the rest
// of the optional header or return the elementary stream data that follows.
func ParseHeader(payload []byte) (*Header, error) {
	if len(payload) < 3 || payload[0] != 0x00 || payload[1] != 0x00 || payload[2] != 0x01 {
		return nil, ErrNotAPESUnit
	}
	if len(payload) < minPESPrefixLength {
		return nil, fmt.Errorf("pes: payload too short (%d bytes) for a PES header", len(payload))
	}

	h := &Header{StreamID: payload[3]}

	if !hasOptionalHeader(h.StreamID) {
		return h, nil
	}

	// payload[4:6] is the packet length, not needed by this contract.
	r := bitio.NewCountReader(bytes.NewReader(payload[6:]))

	_ = r.TryReadBits(2) // marker bits
	_ = r.TryReadBits(2) // scrambling control
	_ = r.TryReadBool()  // priority
	_ = r.TryReadBool()  // data alignment indicator
	_ = r.TryReadBool()  // copyright
	_ = r.TryReadBool()  // original or copy

	h.PTSDTSFlags = uint8(r.TryReadBits(2))
	hasESCR := r.TryReadBool()
	hasESRate := r.TryReadBool()
	hasDSMTrickMode := r.TryReadBool()
	hasAdditionalCopyInfo := r.TryReadBool()
	hasCRC := r.TryReadBool()
	hasExtension := r.TryReadBool()
	_ = hasESCR
	_ = hasESRate
	_ = hasDSMTrickMode
	_ = hasAdditionalCopyInfo
	_ = hasCRC
	_ = hasExtension

	h.HeaderLength = r.TryReadByte()

	switch h.PTSDTSFlags {
	case PTSDTSFlagsPTSOnly:
		pts, err := readTimestamp(r)
		if err != nil {
			return nil, fmt.Errorf("pes: reading PTS failed: %w", err)
		}
		h.PTS = pts
	case PTSDTSFlagsBoth:
		pts, err := readTimestamp(r)
		if err != nil {
			return nil, fmt.Errorf("pes: reading PTS failed: %w", err)
		}
		h.PTS = pts
		dts, err := readTimestamp(r)
		if err != nil {
			return nil, fmt.Errorf("pes: reading DTS failed: %w", err)
		}
		h.DTS = dts
	}

	if r.TryError != nil {
		return nil, fmt.Errorf("pes: parsing optional header failed: %w", r.TryError)
	}
	return h, nil
}

// hasOptionalHeader mirrors the teacher's hasPESOptionalHeader: padding and
// private-stream-2 streams never carry the optional header/PTS-DTS fields.
func hasOptionalHeader(streamID uint8) bool {
	const (
		streamIDPaddingStream  = 190
		streamIDPrivateStream2 = 191
	)
	return streamID != streamIDPaddingStream && streamID != streamIDPrivateStream2
}

// readTimestamp reads a 5-byte, 33-bit PTS/DTS field: 4 bits of
// marker/prefix, 3 bits, a marker bit, 15 bits, a marker bit, 15 bits, a
// marker bit.
func readTimestamp(r *bitio.CountReader) (int64, error) {
	_ = r.TryReadBits(4) // '0010' or '0011' prefix + top marker handled below
	hi := r.TryReadBits(3)
	_ = r.TryReadBool()
	mid := r.TryReadBits(15)
	_ = r.TryReadBool()
	lo := r.TryReadBits(15)
	_ = r.TryReadBool()
	if r.TryError != nil {
		return 0, r.TryError
	}
	return int64(hi)<<30 | int64(mid)<<15 | int64(lo), nil
}
