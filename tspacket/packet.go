// Package tspacket implements zero-copy accessors over a single 188-byte
// MPEG-TS packet: PID, continuity counter, adaptation-field control,
// payload-unit-start indicator, and an optional embedded program clock
// reference. It assumes, but does not re-verify, the leading 0x47 sync byte
// every caller is expected to have already checked against.
package tspacket

import "github.com/asticode/go-astikit"

// SyncByte is the mandatory first byte of every TS packet.
const SyncByte = 0x47

// PacketSize is the canonical MPEG-TS packet length in bytes.
const PacketSize = 188

// NullPID is the null-packet PID, excluded from continuity-counter checks.
const NullPID = 0x1FFF

// Adaptation field control values (byte 3, bits 5-4).
const (
	AFCPayloadOnly              = 0x1
	AFCAdaptationFieldOnly      = 0x2
	AFCAdaptationFieldAndPayload = 0x3
	AFCReserved                 = 0x0
)

// PID returns the 13-bit packet identifier from bytes 1-2.
func PID(p []byte) uint16 {
	return uint16(p[1]&0x1F)<<8 | uint16(p[2])
}

// PUSI returns the payload-unit-start indicator bit (byte 1, bit 6).
func PUSI(p []byte) bool {
	return p[1]&0x40 > 0
}

// TransportErrorIndicator returns the transport error bit (byte 1, bit 7).
func TransportErrorIndicator(p []byte) bool {
	return p[1]&0x80 > 0
}

// AFC returns the 2-bit adaptation field control value from byte 3.
func AFC(p []byte) uint8 {
	return (p[3] >> 4) & 0x3
}

// HasAdaptationField reports whether afc carries an adaptation field.
func HasAdaptationField(afc uint8) bool {
	return afc == AFCAdaptationFieldOnly || afc == AFCAdaptationFieldAndPayload
}

// HasPayload reports whether afc carries a payload.
func HasPayload(afc uint8) bool {
	return afc == AFCPayloadOnly || afc == AFCAdaptationFieldAndPayload
}

// ContinuityCounter returns the 4-bit continuity counter from byte 3.
func ContinuityCounter(p []byte) uint8 {
	return p[3] & 0xF
}

// AdaptationFieldLength returns the adaptation field length byte (byte 4),
// valid only when HasAdaptationField(AFC(p)) is true.
func AdaptationFieldLength(p []byte) int {
	return int(p[4])
}

// adaptationFieldFlagsOffset is the byte offset of the adaptation field
// flags byte, immediately following the length byte.
const adaptationFieldFlagsOffset = 5

// HasPCR reports whether the adaptation field's PCR_flag bit is set. Callers
// must have already verified HasAdaptationField and a non-zero
// AdaptationFieldLength.
func HasPCR(p []byte) bool {
	return p[adaptationFieldFlagsOffset]&0x10 > 0
}

// pcrFieldOffset is where the 6-byte PCR field begins when present.
const pcrFieldOffset = 6

// PCR extracts a 27MHz program clock reference from a packet already known
// to carry one (afc in {2,3} and the PCR_flag bit set). The PCR is
// reconstructed as base*300 + extension, per ISO/IEC 13818-1 2.4.3.5: a
// 33-bit base clocked at 90kHz, 6 reserved bits, and a 9-bit extension
// clocked at 27MHz.
func PCR(p []byte) int64 {
	i := p[pcrFieldOffset:]
	raw := uint64(i[0])<<40 | uint64(i[1])<<32 | uint64(i[2])<<24 | uint64(i[3])<<16 | uint64(i[4])<<8 | uint64(i[5])
	base := int64(raw >> 15)
	ext := int64(raw & 0x1FF)
	return base*300 + ext
}

// TryPCR returns the PCR embedded in p, if any, following the same
// afc/PCR_flag gating as the standalone "PCR extractor utility" contract
// this package's caller otherwise consumes as an opaque collaborator: given
// a 188-byte packet, it returns a PCR if the adaptation field carries one,
// else ok is false.
func TryPCR(p []byte) (pcr int64, ok bool) {
	afc := AFC(p)
	if !HasAdaptationField(afc) {
		return 0, false
	}
	if AdaptationFieldLength(p) == 0 {
		return 0, false
	}
	if !HasPCR(p) {
		return 0, false
	}
	return PCR(p), true
}

// EncodePCR re-encodes a PCR value into the 6-byte adaptation field PCR
// wire format base*300+ext -> (33-bit base, 6 reserved bits set to 1, 9-bit
// extension). It is the inverse of PCR/TryPCR, used by property tests to
// assert that extraction and re-encoding round-trip.
func EncodePCR(pcr int64) [6]byte {
	base := uint64(pcr/300) & 0x1FFFFFFFF
	ext := uint64(pcr%300) & 0x1FF
	raw := (base << 15) | (0x3F << 9) | ext
	var out [6]byte
	out[0] = byte(raw >> 40)
	out[1] = byte(raw >> 32)
	out[2] = byte(raw >> 24)
	out[3] = byte(raw >> 16)
	out[4] = byte(raw >> 8)
	out[5] = byte(raw)
	return out
}

// PayloadOffset returns the byte offset at which the packet's payload
// begins, given afc and (when present) the adaptation field length.
func PayloadOffset(afc uint8, adaptationFieldLength int) int {
	offset := 4
	if HasAdaptationField(afc) {
		offset += 1 + adaptationFieldLength
	}
	return offset
}

// Payload returns the payload slice of p, or nil if afc carries no payload.
func Payload(p []byte) []byte {
	afc := AFC(p)
	if !HasPayload(afc) {
		return nil
	}
	afl := 0
	if HasAdaptationField(afc) {
		afl = AdaptationFieldLength(p)
	}
	off := PayloadOffset(afc, afl)
	if off >= len(p) {
		return nil
	}
	return p[off:]
}

// HasPESStartPrefix reports whether payload begins with the PES start code
// prefix 00 00 01, the gate the inspector pipeline uses before attempting to
// parse a PES header out of a PUSI=1 packet's payload.
func HasPESStartPrefix(payload []byte) bool {
	return len(payload) >= 3 && payload[0] == 0x00 && payload[1] == 0x00 && payload[2] == 0x01
}

// Iterator wraps astikit.BytesIterator to walk a packet's adaptation field
// extension data (transport private data, LTW, piecewise rate, etc.) the way
// the teacher library walks PSI/PES payloads; kept here so callers needing
// more than the fixed-offset accessors above don't hand-roll offset math.
func Iterator(p []byte) *astikit.BytesIterator {
	return astikit.NewBytesIterator(p)
}
