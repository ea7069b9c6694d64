package pcrindex

import (
	"bytes"

	"github.com/groovybits/ltntstools/tspacket"
)

// buildSyntheticStream builds a TS byte stream carrying a PCR on pid every
// pcrIntervalPackets packets, starting at pcr0 and advancing by
// pcrStepTicks each time a PCR is written, for exactly packetCount packets
// total. Non-PCR packets are payload-only filler packets on a different
// PID so Build has something to skip over.
func buildSyntheticStream(pid uint16, pcr0, pcrStepTicks int64, pcrIntervalPackets, packetCount int) []byte {
	buf := &bytes.Buffer{}
	cc := uint8(0)
	pcr := pcr0
	for i := 0; i < packetCount; i++ {
		p := make([]byte, tspacket.PacketSize)
		p[0] = tspacket.SyncByte

		if i%pcrIntervalPackets == 0 {
			p[1] = byte(pid >> 8 & 0x1F)
			p[2] = byte(pid)
			p[3] = (tspacket.AFCAdaptationFieldAndPayload << 4) | (cc & 0xF)
			p[4] = 183
			p[5] = 0x10
			enc := tspacket.EncodePCR(pcr)
			copy(p[6:], enc[:])
			pcr += pcrStepTicks
		} else {
			p[1] = 0x00
			p[2] = 0x41 // filler PID 0x41
			p[3] = (tspacket.AFCPayloadOnly << 4) | (cc & 0xF)
		}
		cc = (cc + 1) % 16
		buf.Write(p)
	}
	return buf.Bytes()
}
