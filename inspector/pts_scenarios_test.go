package inspector

import (
	"bytes"
	"testing"

	"github.com/icza/bitio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groovybits/ltntstools/internal/pes"
	"github.com/groovybits/ltntstools/tspacket"
)

func encodeTimestamp(prefix uint8, ts int64) []byte {
	buf := &bytes.Buffer{}
	w := bitio.NewWriter(buf)
	w.TryWriteBits(uint64(prefix), 4)
	w.TryWriteBits(uint64(ts>>30)&0x7, 3)
	w.TryWriteBool(true)
	w.TryWriteBits(uint64(ts>>15)&0x7FFF, 15)
	w.TryWriteBool(true)
	w.TryWriteBits(uint64(ts)&0x7FFF, 15)
	w.TryWriteBool(true)
	_ = w.Close()
	return buf.Bytes()
}

func buildPESPayload(streamID uint8, ptsDtsFlags uint8, pts int64) []byte {
	buf := []byte{0x00, 0x00, 0x01, streamID, 0x00, 0x00}
	// '10' marker byte, PTS_DTS_flags byte, then the header length byte.
	flags := ptsDtsFlags << 6
	buf = append(buf, 0x80, flags, 0x00)
	opt := encodeTimestamp(0x2, pts)
	buf[8] = byte(len(opt))
	return append(buf, opt...)
}

func pesPacket(pid uint16, cc uint8, pts int64) []byte {
	p := buildPacket(pid, true, 0x1, cc)
	payload := buildPESPayload(0xE0, pes.PTSDTSFlagsPTSOnly, pts)
	copy(p[4:], payload)
	return p
}

func buildPESPayloadBoth(streamID uint8, pts, dts int64) []byte {
	buf := []byte{0x00, 0x00, 0x01, streamID, 0x00, 0x00}
	flags := byte(pes.PTSDTSFlagsBoth << 6)
	buf = append(buf, 0x80, flags, 0x00)
	opt := append(encodeTimestamp(0x3, pts), encodeTimestamp(0x1, dts)...)
	buf[8] = byte(len(opt))
	return append(buf, opt...)
}

func pesPacketBoth(pid uint16, cc uint8, pts, dts int64) []byte {
	p := buildPacket(pid, true, 0x1, cc)
	copy(p[4:], buildPESPayloadBoth(0xE0, pts, dts))
	return p
}

func pcrPacket(pid uint16, pcr int64) []byte {
	p := make([]byte, 188)
	p[0] = 0x47
	p[1] = byte(pid >> 8 & 0x1F)
	p[2] = byte(pid)
	p[3] = 0x20 // AFC=2, adaptation field only
	p[4] = 183  // adaptation field length
	p[5] = 0x10 // PCR_flag set
	enc := tspacket.EncodePCR(pcr)
	copy(p[6:], enc[:])
	return p
}

// TestPTSBehindPCRWarning matches §8 scenario 4: a PTS whose value, converted
// to milliseconds, is smaller than the SCR's, must emit the "arriving
// BEHIND the PCR" warning.
func TestPTSBehindPCRWarning(t *testing.T) {
	var out bytes.Buffer
	ins := NewInspector(OptOutput(&out), OptPTSStats(true))

	// SCR corresponds to a later stream-time than the PTS that follows it.
	require.NoError(t, ins.ProcessPacket(pcrPacket(0x31, 27_000_000_00), 0))
	require.NoError(t, ins.ProcessPacket(pesPacket(0x100, 0, 90_000), 188))

	assert.Contains(t, out.String(), "arriving BEHIND the PCR")
}

func TestPTSAheadOfPCRNoWarning(t *testing.T) {
	var out bytes.Buffer
	ins := NewInspector(OptOutput(&out), OptPTSStats(true))

	require.NoError(t, ins.ProcessPacket(pcrPacket(0x31, 27_000_000), 0))
	require.NoError(t, ins.ProcessPacket(pesPacket(0x100, 0, 900_000_000), 188))

	assert.NotContains(t, out.String(), "arriving BEHIND the PCR")
}

// TestDriftThresholdWarning matches §8 scenario 5 literally: successive PTS
// values of 0 and 63001 ticks (90kHz) give pts_diff_ticks == 63001, which is
// 700.01ms, crossing the default -D 700 threshold and rounding to "is 700"
// in the report.
func TestDriftThresholdWarning(t *testing.T) {
	var out bytes.Buffer
	ins := NewInspector(OptOutput(&out), OptPTSStats(true))

	require.NoError(t, ins.ProcessPacket(pesPacket(0x200, 0, 0), 0))
	require.NoError(t, ins.ProcessPacket(pesPacket(0x200, 1, 63001), 188))

	assert.Contains(t, out.String(), "!PTS pid 0x0200 pts Difference from wallclock >= ±700ms (is 700)")
}

// TestDTSDifferenceWarningUsesDTSTag matches §8's "identical rule ... for
// the DTS pair": the drift-threshold warning on the DTS domain must carry
// its own !DTS tag, not the !PTS tag used for the PTS domain.
func TestDTSDifferenceWarningUsesDTSTag(t *testing.T) {
	var out bytes.Buffer
	ins := NewInspector(OptOutput(&out), OptPTSStats(true))

	require.NoError(t, ins.ProcessPacket(pesPacketBoth(0x200, 0, 0, 0), 0))
	require.NoError(t, ins.ProcessPacket(pesPacketBoth(0x200, 1, 63001, 63001), 188))

	assert.Contains(t, out.String(), "!DTS pid 0x0200 dts Difference from wallclock >= ±700ms (is 700)")
	assert.NotContains(t, out.String(), "!PTS pid 0x0200 dts")
}

// TestBaselinePTSReportLine checks the informational "PTS #…" line §4.F
// requires alongside the conformance warnings, carrying the diff-in-ticks
// and clock-tracker drift fields.
func TestBaselinePTSReportLine(t *testing.T) {
	var out bytes.Buffer
	ins := NewInspector(OptOutput(&out), OptPTSStats(true))

	require.NoError(t, ins.ProcessPacket(pesPacket(0x300, 0, 90_000), 0))
	require.NoError(t, ins.ProcessPacket(pesPacket(0x300, 1, 180_000), 188))

	assert.Contains(t, out.String(), "PTS #1 pid 0x0300 ticks 90000 diff 0 ticks")
	assert.Contains(t, out.String(), "PTS #2 pid 0x0300 ticks 180000 diff 90000 ticks")
}

// TestSCRReportLineIncludesDiff checks the SCR #… line reports the forward
// SCR delta in ticks and µs between successive observations on the -S PID,
// rather than silently discarding it.
func TestSCRReportLineIncludesDiff(t *testing.T) {
	var out bytes.Buffer
	ins := NewInspector(OptOutput(&out), OptSCRStats(true))

	require.NoError(t, ins.ProcessPacket(pcrPacket(0x31, 27_000_000), 0))
	require.NoError(t, ins.ProcessPacket(pcrPacket(0x31, 27_000_000+27_000), 188))

	assert.Contains(t, out.String(), "SCR #1 pid 0x0031 pcr 27000000 diff 0 ticks (0us)")
	assert.Contains(t, out.String(), "SCR #2 pid 0x0031 pcr 27027000 diff 27000 ticks (1000us)")
}

// TestPESDeliveryTicksUsesContinuousScrLastSeen checks the pusi==0 branch
// keeps scr_last_seen current between PES unit headers so
// prior_pes_delivery_ticks reflects the SCR elapsed since the previous unit
// header, not zero.
func TestPESDeliveryTicksUsesContinuousScrLastSeen(t *testing.T) {
	var out bytes.Buffer
	ins := NewInspector(OptOutput(&out), OptPTSStats(true), OptPESDeliveryReport(true))

	require.NoError(t, ins.ProcessPacket(pcrPacket(0x31, 27_000_000), 0))
	require.NoError(t, ins.ProcessPacket(pesPacket(0x400, 0, 90_000), 188))
	require.NoError(t, ins.ProcessPacket(pcrPacket(0x31, 27_000_000+27_000), 376))
	require.NoError(t, ins.ProcessPacket(buildPacket(0x400, false, 0x1, 1), 564))
	require.NoError(t, ins.ProcessPacket(pesPacket(0x400, 2, 180_000), 752))

	assert.Contains(t, out.String(), "PES delivery pid 0x0400 took 27000 SCR ticks")
}

func TestSuppressWarningsSilencesReports(t *testing.T) {
	var out bytes.Buffer
	ins := NewInspector(OptOutput(&out), OptSuppressWarnings(true))

	require.NoError(t, ins.ProcessPacket(buildPacket(0x100, false, 0x1, 0), 0))
	require.NoError(t, ins.ProcessPacket(buildPacket(0x100, false, 0x1, 5), 188))
	assert.Empty(t, out.String())
}
