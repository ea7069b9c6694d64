// Command tsclock-inspect implements the §6 inspector CLI surface: per-PID
// continuity, SCR and PTS/DTS conformance reporting over a file or
// multicast UDP MPEG-TS input.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/groovybits/ltntstools/inspector"
	"github.com/groovybits/ltntstools/internal/source"
)

var (
	ctx, cancel = context.WithCancel(context.Background())

	cpuProfiling    = flag.Bool("cp", false, "if yes, cpu profiling is enabled")
	memoryProfiling = flag.Bool("mp", false, "if yes, memory profiling is enabled")

	inputPath  = flag.String("i", "", "the input path, a file or udp://host:port")
	scrPID     = flag.Int("S", 0x31, "the PID carrying the SCR/PCR used for PTS/DTS correlation")
	scrStats   = flag.Bool("s", false, "enable SCR statistics reporting")
	ptsStats   = astikit.NewFlagStrings()
	reorder    = flag.Bool("R", false, "enable ordered-PTS mode")
	suppress   = flag.Bool("Z", false, "suppress conformance warnings")
	pesReport  = flag.Bool("Y", false, "enable the PES delivery report")
	progress   = flag.Bool("P", false, "enable the progress indicator")
	driftMs    = flag.Int64("D", 700, "maximum allowable clock drift, in milliseconds")
	trendCap   = flag.Int("A", 216000, "trend window sample capacity")
	reportSecs = flag.Int("B", 15, "trend report period, in seconds")
	stopAfter  = flag.Int("t", 0, "stop after N seconds (0 = run until EOF)")
	verbosity  = flag.Int("L", 1, "trend report verbosity (1, 2 or 3)")
	hexDump    = flag.Bool("d", false, "hex-dump every packet")
	metricAddr = flag.String("M", "", "if set, serve Prometheus metrics on this address")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Var(ptsStats, "p", "enable PTS/DTS statistics reporting on every PID (repeatable; the value given is not used to filter PIDs)")
	flag.Parse()

	handleSignals()

	if *cpuProfiling {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	} else if *memoryProfiling {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	if *inputPath == "" {
		log.Fatal(fmt.Errorf("tsclock-inspect: use -i to indicate an input path"))
	}

	src, err := source.Open(ctx, *inputPath)
	if err != nil {
		log.Fatal(fmt.Errorf("tsclock-inspect: opening input failed: %w", err))
	}
	defer src.Close()

	opts := []inspector.Opt{
		inspector.OptSCRPID(uint16(*scrPID)),
		inspector.OptSCRStats(*scrStats),
		inspector.OptPTSStats(len(ptsStats.Map) > 0),
		inspector.OptReorder(*reorder),
		inspector.OptSuppressWarnings(*suppress),
		inspector.OptPESDeliveryReport(*pesReport),
		inspector.OptProgress(*progress),
		inspector.OptMaxAllowableDriftMs(*driftMs),
		inspector.OptTrendCapacity(*trendCap),
		inspector.OptReportPeriod(time.Duration(*reportSecs) * time.Second),
		inspector.OptStopAfter(time.Duration(*stopAfter) * time.Second),
		inspector.OptTrendVerbosity(*verbosity),
		inspector.OptHexDump(*hexDump),
	}

	if *metricAddr != "" {
		reg := prometheus.NewRegistry()
		m := inspector.NewMetrics(reg)
		opts = append(opts, inspector.OptMetrics(m))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("tsclock-inspect: metrics server stopped: %v\n", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	ins := inspector.NewInspector(opts...)
	if err := ins.Run(ctx, src); err != nil && ctx.Err() == nil {
		log.Fatal(fmt.Errorf("tsclock-inspect: run failed: %w", err))
	}
}

func handleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch)
	go func() {
		for s := range ch {
			if s != syscall.SIGURG {
				log.Printf("Received signal %s\n", s)
			}
			switch s {
			case syscall.SIGABRT, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM:
				cancel()
				return
			}
		}
	}()
}
