// Package tsclock implements modular arithmetic over the two MPEG-TS clock
// domains (27MHz system clock, 90kHz presentation/decode clock) and the
// wallclock <-> stream-time formatting helpers built on top of it.
package tsclock

import "fmt"

// Clock domain moduli.
const (
	// MaxPTS is the modulus of the 90kHz PTS/DTS clock (2^33 ticks).
	MaxPTS = int64(1) << 33
	// MaxSCR is the modulus of the 27MHz system clock reference
	// (33 bits of base clocked at 90kHz, times the 300 extension steps).
	MaxSCR = MaxPTS * 300

	// PTSHz is the presentation/decode clock rate.
	PTSHz = int64(90000)
	// SCRHz is the system clock reference rate.
	SCRHz = int64(27000000)

	// maxAllowableWrapSeconds bounds how large a naive forward diff can be
	// before it is assumed to be a wrap rather than genuine reordering.
	maxAllowableWrapSeconds = 10
)

// PTSDiff returns (b-a) mod MaxPTS, reduced into [0, MaxPTS) by adding the
// modulus when the naive difference is negative. This is the "smallest
// positive forward delta" rule required across every clock subtraction in
// this codebase: never subtract raw tick values directly.
func PTSDiff(a, b int64) int64 {
	return modDiff(a, b, MaxPTS)
}

// SCRDiff returns (b-a) mod MaxSCR using the same smallest-positive-forward-
// delta rule as PTSDiff, over the wider 27MHz*300 modulus.
func SCRDiff(a, b int64) int64 {
	return modDiff(a, b, MaxSCR)
}

func modDiff(a, b, mod int64) int64 {
	d := (b - a) % mod
	if d < 0 {
		d += mod
	}
	return d
}

// PTSDiffWithWrapCorrection computes the forward delta between two 90kHz
// ticks the way the inspector pipeline does for pts_diff_ticks: it takes the
// naive forward delta and, if that delta exceeds 10 seconds worth of ticks,
// assumes a legal wrap occurred earlier and corrects for it by treating the
// value as already-wrapped. In practice PTSDiff already returns the smallest
// forward delta, so this only matters when a caller wants the distinction
// between "genuine large forward jump" and "wrap"; it is kept as a separate
// entry point so pipeline code can name the rule from spec invariants
// explicitly rather than re-deriving it.
func PTSDiffWithWrapCorrection(last, next int64) int64 {
	naive := next - last
	if naive < 0 {
		naive += MaxPTS
	}
	if naive > maxAllowableWrapSeconds*PTSHz {
		return naive - MaxPTS
	}
	return naive
}

// TicksToMs90k converts 90kHz ticks to milliseconds.
func TicksToMs90k(ticks int64) float64 {
	return float64(ticks) / (float64(PTSHz) / 1000)
}

// TicksToMs27m converts 27MHz ticks to milliseconds.
func TicksToMs27m(ticks int64) float64 {
	return float64(ticks) / (float64(SCRHz) / 1000)
}

// StreamTime formats a duration, expressed in milliseconds since the start
// of the stream, as "D.HH:MM:SS.mmm".
//
// The source this tool is modeled on computes msecs via an expression and
// then unconditionally zeroes it before formatting; that is an intentional,
// preserved quirk (see DESIGN.md) rather than a bug, so the millisecond
// field below is always "000".
func StreamTime(ms int64) string {
	totalSeconds := ms / 1000
	days := totalSeconds / 86400
	rem := totalSeconds % 86400
	hours := rem / 3600
	rem %= 3600
	minutes := rem / 60
	seconds := rem % 60
	const msecs = 0
	return fmt.Sprintf("%d.%02d:%02d:%02d.%03d", days, hours, minutes, seconds, msecs)
}

// ParseStreamTime parses a "D.HH:MM:SS.mmm" string into milliseconds since
// the start of the stream. It is the left inverse of StreamTime for any
// well-formed input with a zero millisecond field; see the note on
// StreamTime above about the always-zero fractional field.
func ParseStreamTime(s string) (ms int64, err error) {
	var days, hours, minutes, seconds, millis int64
	n, scanErr := fmt.Sscanf(s, "%d.%d:%d:%d.%d", &days, &hours, &minutes, &seconds, &millis)
	if scanErr != nil || n != 5 {
		err = fmt.Errorf("tsclock: parsing stream time %q failed: %w", s, scanErr)
		return
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 {
		err = fmt.Errorf("tsclock: stream time %q out of range", s)
		return
	}
	ms = (((days*24+hours)*60+minutes)*60+seconds)*1000 + millis
	return
}

// TimeToPCR converts a stream-time offset in milliseconds into 27MHz ticks.
func TimeToPCR(ms int64) int64 {
	return ms * (SCRHz / 1000)
}

// PCRToTime converts 27MHz ticks into a stream-time offset in milliseconds.
func PCRToTime(pcr int64) int64 {
	return pcr / (SCRHz / 1000)
}
