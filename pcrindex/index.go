// Package pcrindex implements the PCR indexer/slicer companion: a single
// forward scan over a transport stream file that records (byte offset, PID,
// PCR) triples, a packed on-disk format for that index, random-access
// lookup by PCR, a constant-time "fast query" duration estimate for large
// files, and a byte-exact file slicer driven by two index records.
package pcrindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/groovybits/ltntstools/tspacket"
)

// recordSize is the fixed on-disk size of one PcrPosition: 8 bytes offset +
// 2 bytes PID + 8 bytes PCR, big-endian, with no header — the index file's
// length in records is simply file size / recordSize. Big-endian is fixed
// here (rather than left as "native order") specifically so index files are
// portable across architectures, per §6's note that implementations
// targeting cross-platform use should document and fix endianness.
const recordSize = 18

// chunkSize is the scan granularity: approximately 16MiB, rounded down to a
// multiple of tspacket.PacketSize.
const chunkSize = (16 << 20 / tspacket.PacketSize) * tspacket.PacketSize

// fastQueryThreshold is the file-size cutoff below which FastQuery reads the
// whole file instead of just its head and tail. It is a var rather than a
// const solely so tests can shrink it and exercise the head/tail-only path
// without constructing multi-gigabyte fixtures.
var fastQueryThreshold int64 = 32 << 20

// headTailSize is how much of the head and tail FastQuery reads for files
// at or above fastQueryThreshold. Same test-only rationale as above.
var headTailSize int64 = 16 << 20

// PcrPosition is one indexed occurrence of a PCR in the file.
type PcrPosition struct {
	ByteOffset uint64
	PID        uint16
	PCR        int64
}

// Build scans r (assumed to start at the beginning of a TS file) in
// chunkSize chunks, 188-byte aligned, and returns every (offset, pid, pcr)
// triple found by tspacket.TryPCR. The produced records are monotonically
// non-decreasing in ByteOffset, but not necessarily in PCR (pre-roll can
// occur).
func Build(r io.Reader) ([]PcrPosition, error) {
	br := bufio.NewReaderSize(r, chunkSize)
	buf := make([]byte, chunkSize)
	var records []PcrPosition
	var offset uint64

	for {
		n, err := io.ReadFull(br, buf)
		// A short final chunk rounded down to a whole number of packets is
		// still scanned; only bytes past the last whole packet are dropped.
		whole := (n / tspacket.PacketSize) * tspacket.PacketSize
		for i := 0; i < whole; i += tspacket.PacketSize {
			pkt := buf[i : i+tspacket.PacketSize]
			if pcr, ok := tspacket.TryPCR(pkt); ok {
				records = append(records, PcrPosition{
					ByteOffset: offset + uint64(i),
					PID:        tspacket.PID(pkt),
					PCR:        pcr,
				})
			}
		}
		offset += uint64(whole)

		if err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				break
			}
			return nil, fmt.Errorf("pcrindex: scanning chunk at offset %d failed: %w", offset, err)
		}
	}
	return records, nil
}

// BuildFile opens path and scans it with Build. It first probes the packet
// size via tspacket.DetectPacketSize and logs a diagnostic (rather than
// failing) when the stream is not packed at the canonical 188 bytes, since
// Build itself always scans at a fixed 188-byte stride.
func BuildFile(path string) ([]PcrPosition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcrindex: opening %s failed: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, chunkSize)
	if size, err := tspacket.DetectPacketSize(br); err != nil {
		logger.Errorf("pcrindex: detecting packet size in %s failed: %v", path, err)
	} else if size != tspacket.PacketSize {
		logger.Errorf("pcrindex: %s appears to be packed at %d bytes/packet, not the assumed %d", path, size, tspacket.PacketSize)
	}

	return Build(br)
}

// SidecarPath returns the conventional index path for a given input file:
// "<input>.idx".
func SidecarPath(inputPath string) string {
	return inputPath + ".idx"
}

// WriteIndex persists records to path as a packed, headerless, big-endian
// sequence of PcrPosition records.
func WriteIndex(path string, records []PcrPosition) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pcrindex: creating %s failed: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	buf := make([]byte, recordSize)
	for _, r := range records {
		encodeRecord(buf, r)
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("pcrindex: writing record failed: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("pcrindex: flushing %s failed: %w", path, err)
	}
	return nil
}

// ReadIndex loads a packed index file produced by WriteIndex. A corrupt
// index (one whose length is not a whole multiple of recordSize) is
// reported as an error so the caller can fall through to rebuilding it, per
// §7's "corrupt index is treated as missing" rule.
func ReadIndex(path string) ([]PcrPosition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pcrindex: reading %s failed: %w", path, err)
	}
	if len(data)%recordSize != 0 {
		return nil, fmt.Errorf("pcrindex: %s has length %d, not a multiple of record size %d", path, len(data), recordSize)
	}

	n := len(data) / recordSize
	records := make([]PcrPosition, n)
	for i := 0; i < n; i++ {
		records[i] = decodeRecord(data[i*recordSize : (i+1)*recordSize])
	}
	return records, nil
}

func encodeRecord(buf []byte, r PcrPosition) {
	binary.BigEndian.PutUint64(buf[0:8], r.ByteOffset)
	binary.BigEndian.PutUint16(buf[8:10], r.PID)
	binary.BigEndian.PutUint64(buf[10:18], uint64(r.PCR))
}

func decodeRecord(buf []byte) PcrPosition {
	return PcrPosition{
		ByteOffset: binary.BigEndian.Uint64(buf[0:8]),
		PID:        binary.BigEndian.Uint16(buf[8:10]),
		PCR:        int64(binary.BigEndian.Uint64(buf[10:18])),
	}
}

// LoadOrBuild reads the sidecar index for inputPath if present and valid,
// otherwise builds it fresh and persists it, implementing §7's "missing
// index triggers build; corrupt index is treated as missing" rule.
func LoadOrBuild(inputPath string) ([]PcrPosition, error) {
	idxPath := SidecarPath(inputPath)
	if records, err := ReadIndex(idxPath); err == nil {
		return records, nil
	}

	records, err := BuildFile(inputPath)
	if err != nil {
		return nil, err
	}
	if err := WriteIndex(idxPath, records); err != nil {
		logger.Errorf("pcrindex: persisting index to %s failed: %v", idxPath, err)
	}
	return records, nil
}

// Duration returns the modular SCR-domain span between the first and last
// record's PCR values.
func Duration(records []PcrPosition) int64 {
	if len(records) == 0 {
		return 0
	}
	first, last := records[0].PCR, records[len(records)-1].PCR
	d := last - first
	if d < 0 {
		d += int64(1) << 33 * 300
	}
	return d
}
