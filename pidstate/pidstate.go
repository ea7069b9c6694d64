// Package pidstate implements the fixed-size, hash-free per-PID state table
// the clock inspector pipeline drives: one State per 13-bit PID (8192
// slots total), holding continuity-counter bookkeeping, SCR tracking, and
// the PTS/DTS subtrees each carrying their own clock tracker and trend
// window.
package pidstate

import (
	"github.com/groovybits/ltntstools/clocktracker"
	"github.com/groovybits/ltntstools/trend"
)

// NumPIDs is the size of the 13-bit PID space (0..8191).
const NumPIDs = 8192

// NullPID is excluded from continuity-counter checking.
const NullPID = 0x1FFF

// ClockSubtree holds the PTS or DTS bookkeeping for one PID: the last
// observed value, the wrap-corrected forward delta since the previous
// observation, the SCR value captured alongside that previous observation
// (pts_last_scr), and the lazily created clock tracker / trend window that
// correlate it against wallclock time.
type ClockSubtree struct {
	Count      uint64
	HasLast    bool
	Last       int64 // 90kHz ticks
	DiffTicks  int64 // wrap-corrected forward delta since Last (pts_diff_ticks)
	HasLastSCR bool
	LastSCR    int64 // 27MHz SCR captured alongside the previous Last (pts_last_scr)
	Clock      *clocktracker.Clock
	Trend      *trend.Trend
}

// State is the per-PID bookkeeping the inspector pipeline mutates as
// packets on that PID arrive. It is zero-valued at startup and lives for
// the lifetime of the process; only the ingest task ever mutates it.
type State struct {
	PID uint16

	// Continuity-counter state machine: Fresh -> Tracking on first packet.
	Tracking bool
	LastCC   uint8
	PktCount uint64
	CCErrors uint64

	// SCR tracking.
	HasSCR            bool
	SCR               int64
	ScrFirst          int64
	ScrFirstWallUs    int64
	ScrUpdates        uint64

	// PES arrival correlation: the SCR value (and its wallclock timestamp)
	// seen at the last PES unit header, and the SCR value (and timestamp)
	// most recently seen since, used to measure how long the previous PES
	// unit took to arrive.
	HasPesUnitHeader        bool
	ScrAtPesUnitHeader      int64
	ScrAtPesUnitHeaderWalUs int64
	ScrLastSeen             int64
	ScrLastSeenWallUs       int64

	PTS ClockSubtree
	DTS ClockSubtree

	// Reorder is non-nil only when the inspector is running in -R mode; it
	// accumulates (nr, pts, filepos) triples in display order.
	Reorder *OrderedPTSList
}

// Table is the fixed 8192-slot array of per-PID State, indexed directly by
// PID with no hashing. It is owned exclusively by the inspector pipeline
// and is never shared across goroutines.
type Table struct {
	slots [NumPIDs]State
}

// NewTable allocates a zero-initialized PID table.
func NewTable() *Table {
	t := &Table{}
	for pid := range t.slots {
		t.slots[pid].PID = uint16(pid)
	}
	return t
}

// Get returns the State for pid. The returned pointer is stable for the
// lifetime of the Table.
func (t *Table) Get(pid uint16) *State {
	return &t.slots[pid&(NumPIDs-1)]
}

// CheckContinuity applies the §4.F continuity rule to a payload-bearing
// packet on s: PID 0x1FFF is never checked; the first packet on any other
// PID transitions Fresh->Tracking without a check; thereafter cc must equal
// (prev+1) mod 16. It returns true if a continuity error was detected
// (and, symmetrically, increments CCErrors and always adopts the new cc to
// avoid cascading false positives on every later packet of that PID).
func (s *State) CheckContinuity(pid uint16, cc uint8) (errored bool, expected uint8) {
	s.PktCount++
	if pid == NullPID {
		return false, 0
	}
	if !s.Tracking {
		s.Tracking = true
		s.LastCC = cc
		return false, 0
	}

	expected = (s.LastCC + 1) % 16
	errored = cc != expected
	if errored {
		s.CCErrors++
	}
	s.LastCC = cc
	return errored, expected
}
