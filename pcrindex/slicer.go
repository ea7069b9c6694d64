package pcrindex

import (
	"fmt"
	"io"
	"os"
)

// sliceCopyBlockSize is the suggested block size for slice copies: 188*64
// bytes, large enough to amortize syscalls while staying packet-aligned.
const sliceCopyBlockSize = 188 * 64

// Slice copies the byte range [start.ByteOffset, end.ByteOffset) from
// inputPath into outputPath, unmodified. No PCR rewriting is performed —
// producing playable output beyond a byte-exact slice is out of scope.
func Slice(inputPath, outputPath string, start, end PcrPosition) (int64, error) {
	if end.ByteOffset < start.ByteOffset {
		return 0, fmt.Errorf("pcrindex: end offset %d is before start offset %d", end.ByteOffset, start.ByteOffset)
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return 0, fmt.Errorf("pcrindex: opening %s failed: %w", inputPath, err)
	}
	defer in.Close()

	if _, err := in.Seek(int64(start.ByteOffset), io.SeekStart); err != nil {
		return 0, fmt.Errorf("pcrindex: seeking to offset %d in %s failed: %w", start.ByteOffset, inputPath, err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("pcrindex: creating %s failed: %w", outputPath, err)
	}
	defer out.Close()

	remaining := int64(end.ByteOffset - start.ByteOffset)
	n, err := copyInBlocks(out, in, remaining, sliceCopyBlockSize)
	if err != nil {
		return n, fmt.Errorf("pcrindex: copying %d bytes from %s to %s failed: %w", remaining, inputPath, outputPath, err)
	}
	return n, nil
}

// copyInBlocks copies n bytes from r to w in block-sized chunks. If r ends
// first it stops without an error; the returned count is what was copied.
func copyInBlocks(w io.Writer, r io.Reader, n int64, block int) (int64, error) {
	buf := make([]byte, block)
	var copied int64
	for copied < n {
		want := int64(block)
		if remaining := n - copied; remaining < want {
			want = remaining
		}
		read, err := io.ReadFull(r, buf[:want])
		copied += int64(read)
		if read > 0 {
			if _, werr := w.Write(buf[:read]); werr != nil {
				return copied, werr
			}
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return copied, nil
			}
			return copied, err
		}
	}
	return copied, nil
}

// FindBoundsByTime resolves two stream-time-derived PCR targets against an
// index, returning the first record at or after each target; when no record
// reaches endPCR, end is the index's last record. It is the glue
// between the CLI's -s/-e flags (already converted to PCR ticks by the
// caller) and Slice's PcrPosition-based contract.
func FindBoundsByTime(records []PcrPosition, startPCR, endPCR int64) (start, end PcrPosition, err error) {
	start, ok := LookupGE(records, startPCR)
	if !ok {
		return PcrPosition{}, PcrPosition{}, fmt.Errorf("pcrindex: no record with pcr >= %d", startPCR)
	}
	end, ok = LookupGE(records, endPCR)
	if !ok {
		end = records[len(records)-1]
	}
	return start, end, nil
}
