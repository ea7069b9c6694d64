package tspacket

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ErrPacketStartSyncByte is returned when the first byte of a stream is not
// the sync byte 0x47, so packet-size detection cannot even begin.
var ErrPacketStartSyncByte = errors.New("tspacket: first byte is not a sync byte")

// ErrSingleSyncByte is returned when only one sync byte is found within the
// detection window, meaning the packet size could not be inferred.
var ErrSingleSyncByte = errors.New("tspacket: only one sync byte detected")

// detectionWindow must span at least two packets at the largest packet size
// this detects (204, for Reed-Solomon FEC streams), plus one byte.
const detectionWindow = 2*204 + 1

// DetectPacketSize inspects the first bytes of r to determine whether the
// stream is packed at the canonical 188 bytes or, as DVB-ASI/FEC capture
// tools sometimes produce, 192 or 204 bytes (188 plus a timestamp and/or
// Reed-Solomon parity). It requires r to start exactly on a sync byte. This
// exists because pcrindex.Build and the inspector ingest loop both assume a
// fixed stride; detecting a non-188 stride up front lets callers log a clear
// diagnostic instead of silently misparsing every packet after the first.
func DetectPacketSize(r io.Reader) (int, error) {
	b := make([]byte, detectionWindow)
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, detectionWindow)
	}

	peeked, err := br.Peek(len(b))
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("tspacket: peeking first %d bytes failed: %w", len(b), err)
	}
	copy(b, peeked)
	n := len(peeked)

	if n == 0 || b[0] != SyncByte {
		return 0, ErrPacketStartSyncByte
	}

	for idx := PacketSize; idx < n; idx++ {
		if b[idx] == SyncByte {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("%w in first %d bytes", ErrSingleSyncByte, n)
}
