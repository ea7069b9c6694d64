package tspacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newPacket(pid uint16, pusi bool, afc uint8, cc uint8) []byte {
	p := make([]byte, PacketSize)
	p[0] = SyncByte
	p[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		p[1] |= 0x40
	}
	p[2] = byte(pid)
	p[3] = (afc << 4) | (cc & 0xF)
	return p
}

func TestPIDAndFlags(t *testing.T) {
	p := newPacket(0x100, true, AFCPayloadOnly, 7)
	assert.Equal(t, uint16(0x100), PID(p))
	assert.True(t, PUSI(p))
	assert.Equal(t, uint8(AFCPayloadOnly), AFC(p))
	assert.Equal(t, uint8(7), ContinuityCounter(p))
	assert.True(t, HasPayload(AFC(p)))
	assert.False(t, HasAdaptationField(AFC(p)))
}

func withPCR(p []byte, pcr int64) []byte {
	p[3] = (AFCAdaptationFieldAndPayload << 4) | (p[3] & 0xF)
	p[4] = byte(183) // adaptation field length, plenty of room
	p[5] = 0x10       // PCR_flag set
	enc := EncodePCR(pcr)
	copy(p[6:], enc[:])
	return p
}

func TestPCRRoundTrip(t *testing.T) {
	cases := []int64{0, 1, 1_000_000, 27_000_000 * 3600, int64(1)<<33*300 - 1}
	for _, pcr := range cases {
		p := newPacket(0x31, false, AFCAdaptationFieldAndPayload, 0)
		p = withPCR(p, pcr)
		got, ok := TryPCR(p)
		assert.True(t, ok)
		assert.Equal(t, pcr, got)
	}
}

func TestTryPCRAbsent(t *testing.T) {
	p := newPacket(0x100, true, AFCPayloadOnly, 0)
	_, ok := TryPCR(p)
	assert.False(t, ok)
}

func TestHasPESStartPrefix(t *testing.T) {
	assert.True(t, HasPESStartPrefix([]byte{0x00, 0x00, 0x01, 0xE0}))
	assert.False(t, HasPESStartPrefix([]byte{0x00, 0x01, 0x01}))
	assert.False(t, HasPESStartPrefix([]byte{0x00, 0x00}))
}

func TestPayload(t *testing.T) {
	p := newPacket(0x100, true, AFCPayloadOnly, 0)
	copy(p[4:], []byte{0x00, 0x00, 0x01, 0xE0})
	pl := Payload(p)
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0xE0}, pl[:4])
}
