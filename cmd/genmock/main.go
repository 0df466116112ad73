// Command genmock writes a synthetic point-file tree for a tornado catalog so
// the reshape stage can be exercised without archive credentials. Every file
// holds a standard-atmosphere profile at the requested point and hour.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -catalog data/ESWD_Tornado_FinalVersion_1995_2024.csv \
//	  -out data/mock/points \
//	  -seed 42
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/era5-sounding/internal/adapter/netcdf/netcdftest"
	"github.com/couchcryptid/era5-sounding/internal/catalog"
	"github.com/couchcryptid/era5-sounding/internal/domain"
	"github.com/couchcryptid/era5-sounding/internal/observability"
	"github.com/couchcryptid/era5-sounding/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	catalogPath := flag.String("catalog", "", "tornado catalog CSV")
	outDir := flag.String("out", "", "directory to write point files into")
	perEvent := flag.Int("per-event", 10, "control points per event")
	seed := flag.Uint64("seed", 42, "control point seed")
	legacy := flag.Bool("legacy", false, "write the packed legacy layout")
	limit := flag.Int("limit", 0, "only use the first n events (0 for all)")
	flag.Parse()

	if *catalogPath == "" || *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -catalog, -out")
	}
	if *perEvent < 0 {
		return fmt.Errorf("-per-event must not be negative")
	}

	events, err := catalog.Load(*catalogPath)
	if err != nil {
		return err
	}
	if *limit > 0 && *limit < len(events) {
		events = events[:*limit]
	}
	log.Printf("catalog: %d events", len(events))

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	sampler := domain.NewSeededSampler(domain.Germany, *seed)
	fetcher := pipeline.NewPointFetcher(netcdftest.Archive{Legacy: *legacy}, sampler, *perEvent, *outDir,
		logger, observability.NewMetrics(), clockwork.NewRealClock())

	if err := fetcher.Run(context.Background(), events); err != nil {
		return err
	}

	printStats(*outDir, fetcher.Progress())
	return nil
}

func printStats(dir string, p pipeline.Progress) {
	fmt.Println()
	fmt.Println("=== Synthetic Point Files ===")
	fmt.Printf("  directory: %s\n", dir)
	fmt.Printf("  written:   %d\n", p.Done)
	for _, c := range domain.Collections {
		matches, err := filepath.Glob(filepath.Join(dir, c.Pattern))
		if err != nil {
			continue
		}
		fmt.Printf("  %-9s %d files, %d rows expected\n", c.Name+":", len(matches), len(matches)*len(domain.PressureLevels))
	}
}
