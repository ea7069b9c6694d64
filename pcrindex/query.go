package pcrindex

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/groovybits/ltntstools/tspacket"
)

// LookupGE returns the first record in records (assumed non-decreasing in
// ByteOffset, the order Build produces them in) whose PCR is >= pcr. A
// linear scan is always correct; when records are also known to be
// monotonic in PCR, binary search is used instead since a 2-hour
// recording's index is, per §4.I, only a few hundred thousand records —
// modest enough that either approach is fine, but a sorted index makes
// binary search free to use.
func LookupGE(records []PcrPosition, pcr int64) (PcrPosition, bool) {
	if isMonotonicInPCR(records) {
		idx := sort.Search(len(records), func(i int) bool {
			return records[i].PCR >= pcr
		})
		if idx == len(records) {
			return PcrPosition{}, false
		}
		return records[idx], true
	}

	for _, r := range records {
		if r.PCR >= pcr {
			return r, true
		}
	}
	return PcrPosition{}, false
}

func isMonotonicInPCR(records []PcrPosition) bool {
	for i := 1; i < len(records); i++ {
		if records[i].PCR < records[i-1].PCR {
			return false
		}
	}
	return true
}

// FastQueryResult is the outcome of FastQuery: the first record observed
// (from the head of the file) and the last (from the tail), together with
// the modular PCR span between them.
type FastQueryResult struct {
	First    PcrPosition
	Last     PcrPosition
	Duration int64 // 27MHz ticks
}

// String renders a human-readable duration summary, using humanize to format
// the byte offsets and time.Duration to format the approximate wallclock
// duration the PCR span represents.
func (r FastQueryResult) String() string {
	seconds := float64(r.Duration) / 27_000_000
	return fmt.Sprintf("first pcr=%d @byte %s, last pcr=%d @byte %s, duration=%s",
		r.First.PCR, humanize.Comma(int64(r.First.ByteOffset)),
		r.Last.PCR, humanize.Comma(int64(r.Last.ByteOffset)),
		time.Duration(seconds*float64(time.Second)).String())
}

// FastQuery answers "how long is this recording?" in constant time on
// arbitrarily large files: for files under fastQueryThreshold it scans the
// whole file; for larger ones it scans only the first and last
// headTailSize bytes, returning the first record found in the head and the
// last found in the tail.
func FastQuery(path string) (FastQueryResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return FastQueryResult{}, fmt.Errorf("pcrindex: opening %s failed: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FastQueryResult{}, fmt.Errorf("pcrindex: stat %s failed: %w", path, err)
	}
	size := info.Size()

	if size < fastQueryThreshold {
		records, err := Build(f)
		if err != nil {
			return FastQueryResult{}, err
		}
		if len(records) == 0 {
			return FastQueryResult{}, fmt.Errorf("pcrindex: no PCR records found in %s", path)
		}
		return FastQueryResult{
			First:    records[0],
			Last:     records[len(records)-1],
			Duration: Duration(records),
		}, nil
	}

	headRecords, err := scanRegion(f, 0, headTailSize)
	if err != nil {
		return FastQueryResult{}, fmt.Errorf("pcrindex: scanning head of %s failed: %w", path, err)
	}
	if len(headRecords) == 0 {
		return FastQueryResult{}, fmt.Errorf("pcrindex: no PCR records found in head of %s", path)
	}

	tailStart := alignDown(size-headTailSize, tspacket.PacketSize)
	tailRecords, err := scanRegion(f, tailStart, size-tailStart)
	if err != nil {
		return FastQueryResult{}, fmt.Errorf("pcrindex: scanning tail of %s failed: %w", path, err)
	}
	if len(tailRecords) == 0 {
		return FastQueryResult{}, fmt.Errorf("pcrindex: no PCR records found in tail of %s", path)
	}

	for i := range tailRecords {
		tailRecords[i].ByteOffset += uint64(tailStart)
	}

	first := headRecords[0]
	last := tailRecords[len(tailRecords)-1]
	return FastQueryResult{
		First:    first,
		Last:     last,
		Duration: func() int64 {
			d := last.PCR - first.PCR
			if d < 0 {
				d += int64(1) << 33 * 300
			}
			return d
		}(),
	}, nil
}

func scanRegion(f *os.File, offset, length int64) ([]PcrPosition, error) {
	section := io.NewSectionReader(f, offset, length)
	return Build(section)
}

func alignDown(v int64, align int64) int64 {
	if v < 0 {
		return 0
	}
	return (v / align) * align
}
