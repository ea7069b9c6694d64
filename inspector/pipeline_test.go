package inspector

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPacket constructs a minimal 188-byte TS packet with the given PID,
// PUSI, AFC and continuity counter, matching tspacket's own test fixtures.
func buildPacket(pid uint16, pusi bool, afc uint8, cc uint8) []byte {
	p := make([]byte, 188)
	p[0] = 0x47
	p[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		p[1] |= 0x40
	}
	p[2] = byte(pid)
	p[3] = (afc << 4) | (cc & 0xF)
	return p
}

// TestCCErrorReportLine matches §8 scenario 2: a PID whose continuity
// counter skips a value must produce exactly one !CC Error report line
// naming the expected and observed values.
func TestCCErrorReportLine(t *testing.T) {
	var out bytes.Buffer
	ins := NewInspector(OptOutput(&out))

	require.NoError(t, ins.ProcessPacket(buildPacket(0x100, false, 0x1, 4), 0))
	require.NoError(t, ins.ProcessPacket(buildPacket(0x100, false, 0x1, 6), 188))

	assert.Contains(t, out.String(), "!CC Error pid 0x0100")
	assert.Contains(t, out.String(), "expected 05 got 06")
}

func TestCCNoErrorOnSequentialCounters(t *testing.T) {
	var out bytes.Buffer
	ins := NewInspector(OptOutput(&out))

	for cc := uint8(0); cc < 5; cc++ {
		require.NoError(t, ins.ProcessPacket(buildPacket(0x100, false, 0x1, cc), int64(cc)*188))
	}
	assert.Empty(t, out.String())
}

func TestNullPIDNeverFlagged(t *testing.T) {
	var out bytes.Buffer
	ins := NewInspector(OptOutput(&out))

	require.NoError(t, ins.ProcessPacket(buildPacket(0x1FFF, false, 0x1, 0), 0))
	require.NoError(t, ins.ProcessPacket(buildPacket(0x1FFF, false, 0x1, 5), 188))
	assert.Empty(t, out.String())
}

func TestAdaptationOnlyPacketsSkipContinuityCheck(t *testing.T) {
	var out bytes.Buffer
	ins := NewInspector(OptOutput(&out))

	require.NoError(t, ins.ProcessPacket(buildPacket(0x100, false, 0x1, 0), 0))
	// AFC=0x2 (adaptation field only, no payload) carries no CC semantics.
	require.NoError(t, ins.ProcessPacket(buildPacket(0x100, false, 0x2, 9), 188))
	require.NoError(t, ins.ProcessPacket(buildPacket(0x100, false, 0x1, 1), 376))
	assert.Empty(t, out.String())
}

func TestProcessPacketRejectsShortPacket(t *testing.T) {
	ins := NewInspector()
	err := ins.ProcessPacket(make([]byte, 10), 0)
	assert.Error(t, err)
}

func TestProcessPacketRejectsBadSyncByte(t *testing.T) {
	ins := NewInspector()
	pkt := buildPacket(0x100, false, 0x1, 0)
	pkt[0] = 0x00
	err := ins.ProcessPacket(pkt, 0)
	assert.Error(t, err)
}
