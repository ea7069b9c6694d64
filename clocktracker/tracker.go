// Package clocktracker associates a clock domain (27MHz SCR or 90kHz
// PTS/DTS) with an initial wallclock reference and reports how far the
// clock has drifted from wallclock time since that reference was
// established.
package clocktracker

import "time"

// nowFunc is overridable in tests; production code always uses time.Now.
var nowFunc = time.Now

// Clock tracks one clock domain's relationship to wallclock time. It is not
// safe for concurrent use: per §5 of the design, clocks are touched only by
// the single-threaded ingest task.
type Clock struct {
	timebaseHz  int64
	modulus     int64
	established bool

	wallAnchorUs int64
	tickAnchor   int64
	lastTicks    int64
}

// New creates a Clock for a domain running at timebaseHz ticks/second whose
// tick value wraps modulo modulus (MaxPTS for 90kHz PTS/DTS, MaxSCR for
// 27MHz SCR).
func New(timebaseHz, modulus int64) *Clock {
	c := &Clock{}
	c.Initialize(timebaseHz, modulus)
	return c
}

// Initialize resets all fields for tracking a clock running at timebaseHz
// ticks/second wrapping modulo modulus.
func (c *Clock) Initialize(timebaseHz, modulus int64) {
	*c = Clock{timebaseHz: timebaseHz, modulus: modulus}
}

// EstablishWallclock idempotently anchors this clock: the first call
// records (now, firstTicks) as the anchor pair; subsequent calls are no-ops.
func (c *Clock) EstablishWallclock(firstTicks int64) {
	if c.established {
		return
	}
	c.wallAnchorUs = nowFunc().UnixMicro()
	c.tickAnchor = firstTicks
	c.lastTicks = firstTicks
	c.established = true
}

// SetTicks records the latest observed tick value for this clock.
func (c *Clock) SetTicks(t int64) {
	c.lastTicks = t
}

// Established reports whether EstablishWallclock has been called.
func (c *Clock) Established() bool {
	return c.established
}

// modDiff returns (b-a) mod modulus, reduced into [0, modulus) the way
// tsclock.PTSDiff/SCRDiff do, kept local here to avoid this package
// depending on which domain constant applies — the modulus is supplied by
// the caller at construction.
func modDiff(a, b, modulus int64) int64 {
	d := (b - a) % modulus
	if d < 0 {
		d += modulus
	}
	return d
}

// DriftUs returns the clock's current drift in microseconds: expected wall
// time elapsed (derived from the tick delta since the anchor) minus actual
// wall time elapsed. Negative means the clock lags wallclock.
func (c *Clock) DriftUs() int64 {
	if !c.established {
		return 0
	}
	tickDelta := modDiff(c.tickAnchor, c.lastTicks, c.modulus)
	expectedUs := tickDelta * 1_000_000 / c.timebaseHz
	actualUs := nowFunc().UnixMicro() - c.wallAnchorUs
	return expectedUs - actualUs
}

// DriftMs returns DriftUs converted to milliseconds.
func (c *Clock) DriftMs() float64 {
	return float64(c.DriftUs()) / 1000
}
