package tsclock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSCRDiffSymmetry(t *testing.T) {
	cases := []struct{ a, b int64 }{
		{0, 0},
		{0, MaxSCR - 1},
		{MaxSCR - 1, 0},
		{1234567890, 987654321},
		{MaxSCR / 2, MaxSCR/2 + 42},
	}
	for _, c := range cases {
		d1 := SCRDiff(c.a, c.b)
		d2 := SCRDiff(c.b, c.a)
		assert.True(t, d1 >= 0 && d1 < MaxSCR)
		assert.True(t, d2 >= 0 && d2 < MaxSCR)
		assert.Equal(t, int64(0), (d1+d2)%MaxSCR)
	}
}

func TestPTSDiffWrap(t *testing.T) {
	// After PTS = 2^33-1, the next expected PTS is 0; pts_diff returns the
	// forward delta of 1 tick.
	assert.Equal(t, int64(1), PTSDiff(MaxPTS-1, 0))
}

func TestPTSDiffWrapWithinPESUnit(t *testing.T) {
	// Two PES headers on a PID, PTS = 2^33-9000 then 0: forward delta is
	// 9000 ticks (100ms at 90kHz), no conformance warning expected.
	d := PTSDiff(MaxPTS-9000, 0)
	assert.Equal(t, int64(9000), d)
	assert.InDelta(t, 100.0, TicksToMs90k(d), 0.001)
}

func TestPTSDiffWithWrapCorrectionNoWrap(t *testing.T) {
	// Same inputs as TestPTSDiffWrapWithinPESUnit: the naive forward delta
	// of 9000 ticks is well under the 10s wrap-assumption threshold, so no
	// correction is applied.
	assert.Equal(t, int64(9000), PTSDiffWithWrapCorrection(MaxPTS-9000, 0))
}

func TestPTSDiffWithWrapCorrectionAppliesWrap(t *testing.T) {
	// A naive forward delta of 11s worth of ticks exceeds the 10s
	// wrap-assumption threshold, so the corrected (negative) value must be
	// returned rather than the naive one.
	last := int64(0)
	next := int64(11 * PTSHz)
	d := PTSDiffWithWrapCorrection(last, next)
	assert.Equal(t, next-MaxPTS, d)
	assert.Less(t, d, int64(0))
}

func TestContinuityCounterWrap(t *testing.T) {
	assert.Equal(t, uint8(0), uint8((15+1)%16))
}

func TestStreamTimeRoundTrip(t *testing.T) {
	for _, ms := range []int64{0, 1000, 59000, 3661000, 86400000 + 3723000} {
		s := StreamTime(ms)
		back, err := ParseStreamTime(s)
		assert.NoError(t, err)
		assert.Equal(t, ms, back)
	}
}

func TestTimeToPCRRoundTrip(t *testing.T) {
	s := "0.00:00:10.000"
	ms, err := ParseStreamTime(s)
	assert.NoError(t, err)
	pcr := TimeToPCR(ms)
	assert.Equal(t, int64(10)*SCRHz, pcr)
	backMs := PCRToTime(pcr)
	assert.Equal(t, ms, backMs)
	assert.Equal(t, s, StreamTime(backMs))
}

func TestStreamTimeAlwaysZeroMillis(t *testing.T) {
	// Documented quirk: the millisecond field is always truncated to 0.
	s := StreamTime(1500)
	assert.Equal(t, "0.00:00:01.000", s)
}
