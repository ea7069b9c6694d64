package inspector

import (
	"io"
	"os"
	"time"

	"github.com/groovybits/ltntstools/trend"
)

// Config holds every tunable named by the §6 inspector CLI surface. It is
// built up via functional Opt... options applied in NewInspector, following
// the teacher's DemuxerOptXxx pattern.
type Config struct {
	scrPID              uint16
	scrEnabled          bool
	ptsEnabled          bool
	reorderEnabled      bool
	suppressWarnings    bool
	pesDeliveryReport   bool
	progressEnabled     bool
	maxAllowableDriftMs int64
	trendCapacity       int
	reportPeriod        time.Duration
	stopAfter           time.Duration
	trendVerbosity      int
	hexDump             bool
	out                 io.Writer
	metrics             *Metrics
}

// Opt configures an Inspector at construction time.
type Opt func(*Config)

func defaultConfig() *Config {
	return &Config{
		scrPID:              0x31,
		maxAllowableDriftMs: 700,
		trendCapacity:       trend.DefaultCapacity,
		reportPeriod:        15 * time.Second,
		out:                 os.Stdout,
	}
}

// OptSCRPID sets the PID whose SCR is used for PTS/DTS-relative computations
// (-S, default 0x31).
func OptSCRPID(pid uint16) Opt { return func(c *Config) { c.scrPID = pid } }

// OptSCRStats enables SCR statistics reporting (-s).
func OptSCRStats(enabled bool) Opt { return func(c *Config) { c.scrEnabled = enabled } }

// OptPTSStats enables PTS/DTS statistics reporting (-p).
func OptPTSStats(enabled bool) Opt { return func(c *Config) { c.ptsEnabled = enabled } }

// OptReorder enables ordered-PTS mode (-R).
func OptReorder(enabled bool) Opt { return func(c *Config) { c.reorderEnabled = enabled } }

// OptSuppressWarnings suppresses conformance warnings (-Z).
func OptSuppressWarnings(enabled bool) Opt { return func(c *Config) { c.suppressWarnings = enabled } }

// OptPESDeliveryReport enables the PES-delivery report line (-Y).
func OptPESDeliveryReport(enabled bool) Opt {
	return func(c *Config) { c.pesDeliveryReport = enabled }
}

// OptProgress enables the progress indicator (-P).
func OptProgress(enabled bool) Opt { return func(c *Config) { c.progressEnabled = enabled } }

// OptMaxAllowableDriftMs sets the drift threshold in ms (-D, default 700).
func OptMaxAllowableDriftMs(ms int64) Opt {
	return func(c *Config) { c.maxAllowableDriftMs = ms }
}

// OptTrendCapacity sets the trend window size (-A, default 216000, min 60).
func OptTrendCapacity(n int) Opt {
	return func(c *Config) {
		if n < trend.MinCapacity {
			n = trend.MinCapacity
		}
		c.trendCapacity = n
	}
}

// OptReportPeriod sets the trend report period (-B, default 15s, min 5s).
func OptReportPeriod(d time.Duration) Opt {
	return func(c *Config) {
		if d < 5*time.Second {
			d = 5 * time.Second
		}
		c.reportPeriod = d
	}
}

// OptStopAfter sets the -t stop-after-N-seconds duration; zero means run
// until the source reports EOF or the context is canceled.
func OptStopAfter(d time.Duration) Opt { return func(c *Config) { c.stopAfter = d } }

// OptTrendVerbosity sets the -L trend-report verbosity (1/2/3).
func OptTrendVerbosity(level int) Opt { return func(c *Config) { c.trendVerbosity = level } }

// OptHexDump enables per-packet hex dumping to stderr (-d).
func OptHexDump(enabled bool) Opt { return func(c *Config) { c.hexDump = enabled } }

// OptOutput redirects report lines away from os.Stdout.
func OptOutput(w io.Writer) Opt { return func(c *Config) { c.out = w } }

// OptMetrics attaches a Prometheus metrics sink (-M).
func OptMetrics(m *Metrics) Opt { return func(c *Config) { c.metrics = m } }
