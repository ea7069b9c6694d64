// Package trend implements a bounded-window online linear regression: a
// ring of (x, y) samples with running sums so slope, intercept, standard
// deviation and r² are all computable in O(1) at report time, without
// rescanning the window.
package trend

import (
	"math"
	"sync"
)

// DefaultCapacity is the default sample window size (§4.E / CLI -A).
const DefaultCapacity = 216000

// MinCapacity is the minimum sample window size accepted by -A.
const MinCapacity = 60

// warmupSamples is the number of leading observations per PID discarded so
// the model has a chance to stabilize before it starts influencing reports.
const warmupSamples = 16

type sample struct {
	x, y float64
}

// Trend is a bounded ring of (x, y) samples with exact running sums over
// the retained window. It is safe for concurrent use: Observe is called from
// the ingest task, Clone from the reporter task, each holding the lock
// only for the brief span of updating/copying state.
type Trend struct {
	mu sync.Mutex

	name     string
	capacity int
	count    int
	next     int // ring write cursor
	values   []sample

	sumX, sumY, sumXX, sumXY, sumYY float64

	seen      int // total observations ever offered, including warmup
	firstX    float64
	firstY    float64
	firstSeen bool
}

// New creates a Trend with the given name and capacity. Capacity is clamped
// to MinCapacity.
func New(name string, capacity int) *Trend {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	return &Trend{
		name:     name,
		capacity: capacity,
		values:   make([]sample, capacity),
	}
}

// Name returns the trend's identifying name (typically "pts:<pid>" or
// "dts:<pid>").
func (t *Trend) Name() string {
	return t.name
}

// Observe offers a raw (wallclockSeconds, valueSeconds) pair. The first
// warmupSamples observations are discarded so the regression isn't skewed
// by startup transients, and the first retained observation latches the
// (firstX, firstY) origin that every retained sample is offset against,
// per §4.E.
func (t *Trend) Observe(wallclockSeconds, valueSeconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seen++
	if t.seen <= warmupSamples {
		return
	}
	if !t.firstSeen {
		t.firstX = wallclockSeconds
		t.firstY = valueSeconds
		t.firstSeen = true
	}
	t.insertLocked(wallclockSeconds-t.firstX, valueSeconds-t.firstY)
}

// insertLocked adds (x, y) into the ring. When the ring is full, it
// overwrites the oldest sample and subtracts its contribution from the
// running sums first, keeping every sum exact for the current window.
func (t *Trend) insertLocked(x, y float64) {
	if t.count == t.capacity {
		old := t.values[t.next]
		t.sumX -= old.x
		t.sumY -= old.y
		t.sumXX -= old.x * old.x
		t.sumXY -= old.x * old.y
		t.sumYY -= old.y * old.y
	} else {
		t.count++
	}

	s := sample{x: x, y: y}
	t.values[t.next] = s
	t.next = (t.next + 1) % t.capacity

	t.sumX += s.x
	t.sumY += s.y
	t.sumXX += s.x * s.x
	t.sumXY += s.x * s.y
	t.sumYY += s.y * s.y
}

// Count returns the number of samples currently retained in the window.
func (t *Trend) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Point is one retained (x, y) observation, offset-adjusted against the
// trend's latched origin.
type Point struct {
	X, Y float64
}

// Samples returns every currently retained observation in ring order
// (oldest first). It is used only by the -L 3 full-sample-dump reporter
// verbosity; ordinary reporting uses Clone/Snapshot instead.
func (t *Trend) Samples() []Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Point, 0, t.count)
	start := t.next
	if t.count < t.capacity {
		start = 0
	}
	for i := 0; i < t.count; i++ {
		s := t.values[(start+i)%t.capacity]
		out = append(out, Point{X: s.x, Y: s.y})
	}
	return out
}

// Snapshot is a deep, lock-free copy of a Trend's running sums, suitable
// for a reporter goroutine to compute slope/intercept/deviation/r² from
// without holding the Trend's mutex during the computation.
type Snapshot struct {
	Name     string
	Capacity int
	Count    int
	SumX     float64
	SumY     float64
	SumXX    float64
	SumXY    float64
	SumYY    float64
}

// Clone returns a Snapshot of the current running sums. The lock is held
// only for the duration of this copy, never during the caller's subsequent
// slope/r² computation.
func (t *Trend) Clone() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Name:     t.name,
		Capacity: t.capacity,
		Count:    t.count,
		SumX:     t.sumX,
		SumY:     t.sumY,
		SumXX:    t.sumXX,
		SumXY:    t.sumXY,
		SumYY:    t.sumYY,
	}
}

// Slope returns the least-squares slope of the current window, or 0 if
// fewer than 2 samples or the x-variance is 0.
func (s Snapshot) Slope() float64 {
	n := float64(s.Count)
	denom := n*s.SumXX - s.SumX*s.SumX
	if n < 2 || denom == 0 {
		return 0
	}
	return (n*s.SumXY - s.SumX*s.SumY) / denom
}

// Intercept returns the least-squares intercept of the current window.
func (s Snapshot) Intercept() float64 {
	n := float64(s.Count)
	if n == 0 {
		return 0
	}
	return (s.SumY - s.Slope()*s.SumX) / n
}

// Deviation returns sqrt(sum((y - mean(y))^2) / n), the standard deviation
// of y over the current window, derived from the running sums without
// rescanning the ring.
func (s Snapshot) Deviation() float64 {
	n := float64(s.Count)
	if n == 0 {
		return 0
	}
	meanY := s.SumY / n
	// sum((y-meanY)^2) = SumYY - 2*meanY*SumY + n*meanY^2
	ss := s.SumYY - 2*meanY*s.SumY + n*meanY*meanY
	if ss < 0 {
		ss = 0
	}
	return math.Sqrt(ss / n)
}

// RSquared returns the coefficient of determination of the least-squares
// fit over the current window, computed entirely from the running sums.
func (s Snapshot) RSquared() float64 {
	n := float64(s.Count)
	if n == 0 {
		return 0
	}
	slope := s.Slope()
	intercept := s.Intercept()
	meanY := s.SumY / n

	// ssRes = sum((y - (slope*x+intercept))^2)
	//       = SumYY - 2*slope*SumXY - 2*intercept*SumY + slope^2*SumXX + 2*slope*intercept*SumX + n*intercept^2
	ssRes := s.SumYY - 2*slope*s.SumXY - 2*intercept*s.SumY +
		slope*slope*s.SumXX + 2*slope*intercept*s.SumX + n*intercept*intercept

	// ssTot = sum((y - meanY)^2)
	ssTot := s.SumYY - 2*meanY*s.SumY + n*meanY*meanY

	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
