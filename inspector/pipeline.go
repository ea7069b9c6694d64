package inspector

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/groovybits/ltntstools/clocktracker"
	"github.com/groovybits/ltntstools/internal/pes"
	"github.com/groovybits/ltntstools/internal/source"
	"github.com/groovybits/ltntstools/pidstate"
	"github.com/groovybits/ltntstools/trend"
	"github.com/groovybits/ltntstools/tsclock"
	"github.com/groovybits/ltntstools/tspacket"
)

// Inspector is the §4.F/§4.G pipeline: a single-threaded ingest path that
// mutates a pidstate.Table packet by packet, and a periodic reporter task
// that reads only Trend snapshots from it. Every exported report line format
// below is matched literally against the scenarios this tool is checked
// against; do not reformat them without re-checking those scenarios.
type Inspector struct {
	cfg   *Config
	table *pidstate.Table

	sessionID uuid.UUID
	pktCount  uint64
	byteCount int64
}

// NewInspector builds an Inspector from options, applying defaultConfig
// first the way the teacher's demuxer constructors apply their own defaults
// before folding in DemuxerOptXxx.
func NewInspector(opts ...Opt) *Inspector {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return &Inspector{
		cfg:       cfg,
		table:     pidstate.NewTable(),
		sessionID: uuid.New(),
	}
}

// SessionID identifies this inspector run; it tags the -L 2/3 trend dump
// filenames so concurrent runs against the same stream don't clobber each
// other's output.
func (ins *Inspector) SessionID() uuid.UUID { return ins.sessionID }

// Table exposes the per-PID state table for callers (notably the reporter
// task and tests) that need read access to Trend objects.
func (ins *Inspector) Table() *pidstate.Table { return ins.table }

// Run drives the ingest loop against src until it reports EOF, ctx is
// canceled, or (when cfg.stopAfter is non-zero) that much wall time has
// elapsed. A reporter task runs alongside it, coordinated via errgroup so a
// hard failure in either tears down the other.
func (ins *Inspector) Run(ctx context.Context, src source.Source) error {
	g, gctx := errgroup.WithContext(ctx)
	// The reporter only returns once its context is done, so ingest ending
	// cleanly (EOF, -t deadline) cancels it too.
	ctx, cancel := context.WithCancel(gctx)
	defer cancel()

	if ins.cfg.reportPeriod > 0 {
		g.Go(func() error { return ins.runReporter(ctx) })
	}

	g.Go(func() error {
		defer cancel()
		return ins.runIngest(ctx, src)
	})

	return g.Wait()
}

func (ins *Inspector) runIngest(ctx context.Context, src source.Source) error {
	buf := make([]byte, tspacket.PacketSize)
	deadline := time.Time{}
	if ins.cfg.stopAfter > 0 {
		deadline = time.Now().Add(ins.cfg.stopAfter)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil
		}

		n, result, err := src.Read(buf)
		switch result {
		case source.ResultOK:
			if n < tspacket.PacketSize {
				continue
			}
			if err := ins.ProcessPacket(buf, ins.byteCount); err != nil {
				logger.Errorf("inspector: processing packet at offset %d failed: %v", ins.byteCount, err)
			}
			ins.byteCount += int64(n)
		case source.ResultWouldBlock:
			continue
		case source.ResultEOF:
			return nil
		case source.ResultError:
			return fmt.Errorf("inspector: reading source failed: %w", err)
		}
	}
}

// ProcessPacket applies the §4.F per-packet rules to a single 188-byte
// packet observed at byte offset: continuity-counter checking, SCR capture
// on the configured -S PID, and PTS/DTS correlation on PUSI=1 packets.
func (ins *Inspector) ProcessPacket(pkt []byte, offset int64) error {
	if len(pkt) < tspacket.PacketSize {
		return fmt.Errorf("inspector: short packet (%d bytes)", len(pkt))
	}
	if pkt[0] != tspacket.SyncByte {
		return fmt.Errorf("inspector: bad sync byte 0x%02x at offset %d", pkt[0], offset)
	}

	if ins.cfg.hexDump {
		ins.dumpHex(pkt, offset)
	}

	pid := tspacket.PID(pkt)
	afc := tspacket.AFC(pkt)
	state := ins.table.Get(pid)

	if tspacket.HasPayload(afc) {
		cc := tspacket.ContinuityCounter(pkt)
		errored, expected := state.CheckContinuity(pid, cc)
		if errored {
			if ins.cfg.metrics != nil {
				ins.cfg.metrics.observeCCError(fmt.Sprintf("0x%04x", pid))
			}
			if !ins.cfg.suppressWarnings {
				fmt.Fprintf(ins.cfg.out, "!CC Error pid 0x%04x offset %d expected %02x got %02x\n",
					pid, offset, expected, cc)
			}
		}
	}

	if pid == ins.cfg.scrPID {
		ins.observeSCR(state, pid, pkt)
	}

	if ins.cfg.ptsEnabled {
		if tspacket.PUSI(pkt) {
			payload := tspacket.Payload(pkt)
			if tspacket.HasPESStartPrefix(payload) {
				hdr, err := pes.ParseHeader(payload)
				if err != nil {
					logger.Errorf("inspector: parsing PES header on pid 0x%04x at offset %d failed: %v", pid, offset, err)
				} else {
					ins.observePESHeader(state, pid, hdr, offset)
				}
			}
		} else {
			ins.observeContinuation(state)
		}
	}

	ins.pktCount++
	if ins.cfg.progressEnabled && ins.pktCount%200000 == 0 {
		ins.reportProgress(offset)
	}

	return nil
}

func (ins *Inspector) dumpHex(pkt []byte, offset int64) {
	fmt.Fprintf(os.Stderr, "packet @%d:\n", offset)
	for i := 0; i < len(pkt); i += 16 {
		end := i + 16
		if end > len(pkt) {
			end = len(pkt)
		}
		fmt.Fprintf(os.Stderr, "  %04x  % x\n", i, pkt[i:end])
	}
}

func (ins *Inspector) reportProgress(offset int64) {
	fmt.Fprintf(ins.cfg.out, "... %d packets, offset %d\n", ins.pktCount, offset)
}

// observeSCR captures the SCR on the -S PID, latching scr_first/
// scr_first_wall_time on the first observation, and, when -s is set, emits
// the per-PCR report line with the SCR-diff in ticks and µs and the
// scr_first-anchored stream time.
func (ins *Inspector) observeSCR(state *pidstate.State, pid uint16, pkt []byte) {
	pcr, ok := tspacket.TryPCR(pkt)
	if !ok {
		return
	}

	var scrDiffTicks int64
	if state.HasSCR {
		scrDiffTicks = tsclock.SCRDiff(state.SCR, pcr)
	} else {
		state.ScrFirst = pcr
		state.ScrFirstWallUs = time.Now().UnixMicro()
	}
	state.HasSCR = true
	state.SCR = pcr
	state.ScrUpdates++

	if ins.cfg.scrEnabled {
		scrDiffSinceFirst := tsclock.SCRDiff(state.ScrFirst, pcr)
		streamMs := int64(tsclock.TicksToMs27m(scrDiffSinceFirst))
		fmt.Fprintf(ins.cfg.out, "SCR #%d pid 0x%04x pcr %d diff %d ticks (%dus) stream-time %s\n",
			state.ScrUpdates, pid, pcr, scrDiffTicks, scrDiffTicks/27, tsclock.StreamTime(streamMs))
	}
}

// observeContinuation implements the pusi==0 branch of §4.F step 3: it keeps
// scr_last_seen (and its wallclock timestamp) current between PES unit
// headers so the next header can measure prior_pes_delivery_ticks against
// an up-to-date anchor rather than the stale value from its own arrival.
func (ins *Inspector) observeContinuation(state *pidstate.State) {
	scrState := ins.table.Get(ins.cfg.scrPID)
	if !scrState.HasSCR {
		return
	}
	state.ScrLastSeen = scrState.SCR
	state.ScrLastSeenWallUs = time.Now().UnixMicro()
}

// observePESHeader updates PES-arrival correlation bookkeeping and, when the
// header carries a PTS/DTS, dispatches to observeTimestamp for each domain.
func (ins *Inspector) observePESHeader(state *pidstate.State, pid uint16, hdr *pes.Header, offset int64) {
	nowUs := time.Now().UnixMicro()
	scrState := ins.table.Get(ins.cfg.scrPID)

	if ins.cfg.pesDeliveryReport && state.HasPesUnitHeader {
		deliveryTicks := tsclock.SCRDiff(state.ScrAtPesUnitHeader, state.ScrLastSeen)
		deliverUs := state.ScrLastSeenWallUs - state.ScrAtPesUnitHeaderWalUs
		fmt.Fprintf(ins.cfg.out, "PES delivery pid 0x%04x took %d SCR ticks (%dus) since previous unit header\n",
			pid, deliveryTicks, deliverUs)
	}

	state.ScrAtPesUnitHeader = scrState.SCR
	state.ScrAtPesUnitHeaderWalUs = nowUs
	state.ScrLastSeen = scrState.SCR
	state.ScrLastSeenWallUs = nowUs
	state.HasPesUnitHeader = true

	switch hdr.PTSDTSFlags {
	case pes.PTSDTSFlagsPTSOnly:
		ins.observeTimestamp(state, pid, "pts", hdr.PTS, offset)
	case pes.PTSDTSFlagsBoth:
		ins.observeTimestamp(state, pid, "pts", hdr.PTS, offset)
		ins.observeTimestamp(state, pid, "dts", hdr.DTS, offset)
	}
}

// observeTimestamp applies the §4.E clock-tracker/trend update to a single
// PTS or DTS observation, emits the baseline PTS/DTS report line, and drives
// the §4.F conformance warnings off pts_diff_ticks (the wrap-corrected
// forward delta since the previous observation of this domain) rather than
// the clock tracker's cumulative wallclock drift, which is informational
// only and appears in the report line, not the threshold check.
func (ins *Inspector) observeTimestamp(state *pidstate.State, pid uint16, domain string, ticks int64, offset int64) {
	cs := ins.subtree(state, domain)
	tag := strings.ToUpper(domain)

	if cs.Clock == nil {
		cs.Clock = clocktracker.New(tsclock.PTSHz, tsclock.MaxPTS)
	}
	if cs.Trend == nil {
		cs.Trend = trend.New(fmt.Sprintf("%s:0x%04x", domain, pid), ins.cfg.trendCapacity)
	}
	if !cs.Clock.Established() {
		cs.Clock.EstablishWallclock(ticks)
	}
	cs.Clock.SetTicks(ticks)

	var diffTicks int64
	if cs.HasLast {
		diffTicks = tsclock.PTSDiffWithWrapCorrection(cs.Last, ticks)
	}
	cs.DiffTicks = diffTicks
	cs.HasLast = true
	cs.Last = ticks
	cs.Count++

	nowUs := time.Now().UnixMicro()
	cs.Trend.Observe(float64(nowUs)/1e6, float64(ticks)/float64(tsclock.PTSHz))

	if domain == "pts" && ins.cfg.reorderEnabled {
		if state.Reorder == nil {
			state.Reorder = pidstate.NewOrderedPTSList()
		}
		state.Reorder.Insert(cs.Count, ticks, offset)
	}

	driftMs := cs.Clock.DriftMs()
	if ins.cfg.metrics != nil {
		ins.cfg.metrics.observeDrift(fmt.Sprintf("0x%04x", pid), domain, driftMs)
	}
	if snap := cs.Trend.Clone(); ins.cfg.metrics != nil {
		ins.cfg.metrics.observeTrend(fmt.Sprintf("0x%04x", pid), domain, snap.Slope(), snap.RSquared())
	}

	diffMs := tsclock.TicksToMs90k(diffTicks)
	if ins.cfg.ptsEnabled {
		fmt.Fprintf(ins.cfg.out, "%s #%d pid 0x%04x ticks %d diff %d ticks (%.0fms) drift %.0fms\n",
			tag, cs.Count, pid, ticks, diffTicks, diffMs, driftMs)
	}

	if !ins.cfg.suppressWarnings && math.Abs(diffMs) >= float64(ins.cfg.maxAllowableDriftMs) {
		fmt.Fprintf(ins.cfg.out, "!%s pid 0x%04x %s Difference from wallclock >= ±%dms (is %.0f)\n",
			tag, pid, domain, ins.cfg.maxAllowableDriftMs, diffMs)
	}

	ins.checkAgainstSCR(cs, pid, domain, tag, ticks)
}

// checkAgainstSCR implements the two SCR-relative §4.F checks for a single
// PTS or DTS observation: pts_minus_scr_ticks, a stateless signed check
// (§9 Open Question: the sign is preserved rather than compared by
// magnitude) that drives the "arriving BEHIND the PCR" warning, and
// pts_scr_diff_ms, which compares the SCR captured alongside the previous
// observation of this domain (pts_last_scr) against the current SCR and
// shares the same threshold rule and message format as the pts_diff_ticks
// check in observeTimestamp.
func (ins *Inspector) checkAgainstSCR(cs *pidstate.ClockSubtree, pid uint16, domain, tag string, ticks int64) {
	scrState := ins.table.Get(ins.cfg.scrPID)
	if !scrState.HasSCR {
		return
	}

	minusScrTicks := ticks*300 - scrState.SCR
	if !ins.cfg.suppressWarnings && minusScrTicks < 0 {
		fmt.Fprintf(ins.cfg.out, "!%s pid 0x%04x arriving BEHIND the PCR (diff %.0fms)\n",
			tag, pid, tsclock.TicksToMs27m(minusScrTicks))
	}

	if cs.HasLastSCR {
		scrDiffMs := float64(tsclock.SCRDiff(cs.LastSCR, scrState.SCR)) / 27000
		if !ins.cfg.suppressWarnings && scrDiffMs >= float64(ins.cfg.maxAllowableDriftMs) {
			fmt.Fprintf(ins.cfg.out, "!%s pid 0x%04x %s Difference from wallclock >= ±%dms (is %.0f)\n",
				tag, pid, domain, ins.cfg.maxAllowableDriftMs, scrDiffMs)
		}
	}
	cs.LastSCR = scrState.SCR
	cs.HasLastSCR = true
}

func (ins *Inspector) subtree(state *pidstate.State, domain string) *pidstate.ClockSubtree {
	if domain == "dts" {
		return &state.DTS
	}
	return &state.PTS
}
