// Command tsclock-slice implements the §6 slicer CLI surface: build or load
// a PCR index for an input transport stream and copy a byte-exact slice
// between two stream-time offsets.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/profile"

	"github.com/groovybits/ltntstools/pcrindex"
	"github.com/groovybits/ltntstools/tsclock"
)

var (
	cpuProfiling    = flag.Bool("cp", false, "if yes, cpu profiling is enabled")
	memoryProfiling = flag.Bool("mp", false, "if yes, memory profiling is enabled")

	inputPath  = flag.String("i", "", "the input path")
	outputPath = flag.String("o", "", "the output path")
	startTime  = flag.String("s", "", "slice start, as D.HH:MM:SS.mmm")
	endTime    = flag.String("e", "", "slice end, as D.HH:MM:SS.mmm")
	listOnly   = flag.Bool("l", false, "print the fast-query duration summary and exit")
	quiet      = flag.Bool("q", false, "suppress progress output")
	indexKind  = flag.String("x", "raw", "index backend: raw or sqlite")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *cpuProfiling {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	} else if *memoryProfiling {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	if *inputPath == "" {
		log.Fatal(fmt.Errorf("tsclock-slice: use -i to indicate an input path"))
	}

	if *listOnly {
		result, err := pcrindex.FastQuery(*inputPath)
		if err != nil {
			log.Fatal(fmt.Errorf("tsclock-slice: fast query failed: %w", err))
		}
		fmt.Println(result.String())
		return
	}

	if *outputPath == "" || *startTime == "" || *endTime == "" {
		log.Fatal(fmt.Errorf("tsclock-slice: -o, -s and -e are required unless -l is set"))
	}

	startMs, err := tsclock.ParseStreamTime(*startTime)
	if err != nil {
		log.Fatal(fmt.Errorf("tsclock-slice: parsing -s failed: %w", err))
	}
	endMs, err := tsclock.ParseStreamTime(*endTime)
	if err != nil {
		log.Fatal(fmt.Errorf("tsclock-slice: parsing -e failed: %w", err))
	}

	records, err := loadIndex()
	if err != nil {
		log.Fatal(fmt.Errorf("tsclock-slice: loading index failed: %w", err))
	}

	start, end, err := pcrindex.FindBoundsByTime(records, tsclock.TimeToPCR(startMs), tsclock.TimeToPCR(endMs))
	if err != nil {
		log.Fatal(fmt.Errorf("tsclock-slice: resolving slice bounds failed: %w", err))
	}

	n, err := pcrindex.Slice(*inputPath, *outputPath, start, end)
	if err != nil {
		log.Fatal(fmt.Errorf("tsclock-slice: slicing failed: %w", err))
	}

	if !*quiet {
		fmt.Printf("wrote %s bytes to %s\n", humanize.Comma(n), *outputPath)
	}
}

func loadIndex() ([]pcrindex.PcrPosition, error) {
	if *indexKind != "sqlite" {
		return pcrindex.LoadOrBuild(*inputPath)
	}

	db, err := pcrindex.OpenSQLiteIndex(pcrindex.SidecarPath(*inputPath) + ".db")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	records, err := pcrindex.BuildFile(*inputPath)
	if err != nil {
		return nil, err
	}
	if err := pcrindex.WriteSQLiteIndex(db, records); err != nil {
		return nil, err
	}
	return records, nil
}
