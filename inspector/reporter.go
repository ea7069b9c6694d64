package inspector

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/groovybits/ltntstools/pidstate"
	"github.com/groovybits/ltntstools/trend"
)

// reporterPollInterval is how often the reporter task wakes to check whether
// cfg.reportPeriod has elapsed, per §4.G ("checked every 250ms, fires on its
// own period"). It is independent of the report period itself so a short
// report period still fires close to on time.
const reporterPollInterval = 250 * time.Millisecond

// runReporter is the periodic trend reporter task of §4.G: it holds no lock
// on the ingest path, only ever Clone()-ing Trend snapshots, and prints one
// summary line per tracked PID/domain at -L 1, additionally appending a CSV
// row per tick at -L 2, and additionally dumping the full retained sample
// window at -L 3.
func (ins *Inspector) runReporter(ctx context.Context) error {
	ticker := time.NewTicker(reporterPollInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if now.Sub(last) < ins.cfg.reportPeriod {
				continue
			}
			last = now
			ins.emitReport()
		}
	}
}

func (ins *Inspector) emitReport() {
	for pid := 0; pid < pidstate.NumPIDs; pid++ {
		state := ins.table.Get(uint16(pid))
		ins.reportSubtree(uint16(pid), "pts", &state.PTS)
		ins.reportSubtree(uint16(pid), "dts", &state.DTS)
	}
}

func (ins *Inspector) reportSubtree(pid uint16, domain string, cs *pidstate.ClockSubtree) {
	if cs.Trend == nil {
		return
	}
	snap := cs.Trend.Clone()
	if snap.Count == 0 {
		return
	}

	slope := snap.Slope()
	rsq := snap.RSquared()
	dev := snap.Deviation()

	if ins.cfg.trendVerbosity >= 1 {
		fmt.Fprintf(ins.cfg.out, "trend pid 0x%04x %s n=%d slope=%.6f r2=%.4f dev=%.6f\n",
			pid, domain, snap.Count, slope, rsq, dev)
	}

	if ins.cfg.trendVerbosity >= 2 {
		ins.appendTrendCSV(snap, slope, rsq, dev)
	}

	if ins.cfg.trendVerbosity >= 3 {
		ins.dumpTrendSamples(cs.Trend, snap.Name)
	}
}

func (ins *Inspector) appendTrendCSV(snap trend.Snapshot, slope, rsq, dev float64) {
	path := fmt.Sprintf("trend-%s-%s.csv", ins.sessionID.String(), snap.Name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Errorf("inspector: opening trend csv %s failed: %v", path, err)
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "%d,%d,%.6f,%.4f,%.6f\n", time.Now().Unix(), snap.Count, slope, rsq, dev)
}

func (ins *Inspector) dumpTrendSamples(t *trend.Trend, name string) {
	path := fmt.Sprintf("trend-%s-%s-samples.csv", ins.sessionID.String(), name)
	f, err := os.Create(path)
	if err != nil {
		logger.Errorf("inspector: creating trend sample dump %s failed: %v", path, err)
		return
	}
	defer f.Close()

	for _, p := range t.Samples() {
		fmt.Fprintf(f, "%.6f,%.6f\n", p.X, p.Y)
	}
}
