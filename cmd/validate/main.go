// Command validate checks the sounding tables produced by the reshape stage:
// row counts against the point files, row order, and physical consistency of
// the derived columns.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -points data/ERA5_MitRandomPoints \
//	  -processed data/ERA5_ProcessedFiles
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/era5-sounding/internal/adapter/sounding"
	"github.com/couchcryptid/era5-sounding/internal/config"
	"github.com/couchcryptid/era5-sounding/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxErrors caps the detail printed per phase.
const maxErrors = 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	pointDir := flag.String("points", cfg.PointDir, "directory holding the point files")
	processedDir := flag.String("processed", cfg.ProcessedDir, "directory holding the sounding tables")
	flag.Parse()

	cfg.PointDir, cfg.ProcessedDir = *pointDir, *processedDir
	if code := run(cfg); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config) int {
	fmt.Println("=== Sounding Table Validation ===")
	fmt.Println()

	var phases []*phase
	for _, c := range domain.Collections {
		matches, err := filepath.Glob(filepath.Join(cfg.PointDir, c.Pattern))
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: glob %s: %v\n", c.Pattern, err)
			return 1
		}

		path := cfg.TablePath(cfg.Basename(c.Name))
		rows, err := sounding.ReadTable(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
		fmt.Printf("%s: %d point files, %d rows in %s\n", c.Name, len(matches), len(rows), path)

		phases = append(phases,
			validateCounts(c, rows, len(matches)),
			validateOrder(c, rows),
			validatePhysics(c, rows),
		)
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrors {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxErrors)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validateCounts checks that every point file contributed one row per
// standard pressure level.
func validateCounts(c domain.Collection, rows []domain.ProfileRow, files int) *phase {
	p := &phase{name: c.Name + ": row counts"}
	levels := len(domain.PressureLevels)
	if want := files * levels; len(rows) != want {
		p.errorf("%d rows, want %d (%d files x %d levels)", len(rows), want, files, levels)
	}

	type profile struct {
		at       int64
		lat, lon float64
	}
	perProfile := make(map[profile]int)
	for _, r := range rows {
		perProfile[profile{r.ValidTime.Time().Unix(), r.Latitude, r.Longitude}]++
	}
	for k, n := range perProfile {
		if n%levels != 0 {
			p.errorf("profile at %d (%.4f, %.4f) has %d rows, not a multiple of %d", k.at, k.lat, k.lon, n, levels)
		}
	}
	return p
}

// validateOrder checks that the rows follow the collection's sort order.
func validateOrder(c domain.Collection, rows []domain.ProfileRow) *phase {
	p := &phase{name: c.Name + ": row order"}
	for i := 1; i < len(rows); i++ {
		if c.Order.Compare(rows[i-1], rows[i]) > 0 {
			p.errorf("row %d sorts before row %d", i+2, i+1)
		}
	}
	return p
}

// validatePhysics checks that every row sits on an analysis hour and that
// the derived columns agree with the raw ones.
func validatePhysics(c domain.Collection, rows []domain.ProfileRow) *phase {
	p := &phase{name: c.Name + ": row values"}
	for i, r := range rows {
		line := i + 2
		if hour := domain.Timestamp(r.ValidTime.Time().Truncate(time.Hour)); !r.ValidTime.Equal(hour) {
			p.errorf("line %d: valid_time %s is not on the hour", line, r.ValidTime.Time().Format(time.RFC3339))
		}
		if !floatEq(r.Altitude, domain.GeopotentialHeight(r.GptHeight)) {
			p.errorf("line %d: altitude %g does not match gpt_height %g", line, r.Altitude, r.GptHeight)
		}
		if r.DewPoint > r.Temperature+1e-9 {
			p.errorf("line %d: dew point %g above temperature %g", line, r.DewPoint, r.Temperature)
		}
		if !floatEq(r.WindSpeed, domain.WindSpeedKnots(r.UWind, r.VWind)) {
			p.errorf("line %d: wind speed %g does not match u=%g v=%g", line, r.WindSpeed, r.UWind, r.VWind)
		}
		if r.WindDirection < 0 || r.WindDirection >= 360 {
			p.errorf("line %d: wind direction %g outside [0, 360)", line, r.WindDirection)
		}
	}
	return p
}

// floatEq compares with a relative tolerance. Missing values match each other.
func floatEq(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
