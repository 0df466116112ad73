package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/couchcryptid/era5-sounding/internal/adapter/netcdf"
	"github.com/couchcryptid/era5-sounding/internal/adapter/sounding"
	"github.com/couchcryptid/era5-sounding/internal/domain"
	"github.com/couchcryptid/era5-sounding/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ProfileSink receives the finished table rows of a collection.
type ProfileSink interface {
	Publish(ctx context.Context, collection string, rows []domain.ProfileRow) error
}

// Output names the files written for one collection.
type Output struct {
	Checkpoint string // derived netCDF
	Table      string // sounding CSV
}

// Reshaper turns the point files into one sounding table per collection.
type Reshaper struct {
	pointDir string
	outputs  func(collection string) Output
	sink     ProfileSink
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	ready    atomic.Bool
}

// NewReshaper creates the reshape stage. sink may be nil.
func NewReshaper(pointDir string, outputs func(collection string) Output, sink ProfileSink, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Reshaper {
	return &Reshaper{
		pointDir: pointDir,
		outputs:  outputs,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
	}
}

// CheckReadiness returns nil once every point file has been loaded.
func (r *Reshaper) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("point files have not been loaded yet")
	}
	return nil
}

// Run loads every collection before writing anything, so a missing or
// malformed input leaves no partial outputs behind.
func (r *Reshaper) Run(ctx context.Context) error {
	start := r.clock.Now()
	r.metrics.StageRunning.WithLabelValues("reshape").Set(1)
	defer r.metrics.StageRunning.WithLabelValues("reshape").Set(0)

	loaded := make([]domain.Sounding, len(domain.Collections))
	for i, c := range domain.Collections {
		s, err := r.load(c)
		if err != nil {
			return err
		}
		loaded[i] = s
	}
	r.ready.Store(true)

	for i, c := range domain.Collections {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.reshape(ctx, c, loaded[i]); err != nil {
			return fmt.Errorf("%s collection: %w", c.Name, err)
		}
	}

	r.logger.Info("reshape finished", "duration", r.clock.Since(start))
	return nil
}

func (r *Reshaper) load(c domain.Collection) (domain.Sounding, error) {
	pattern := filepath.Join(r.pointDir, c.Pattern)
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return domain.Sounding{}, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(paths) == 0 {
		return domain.Sounding{}, fmt.Errorf("no %s point files match %s", c.Name, pattern)
	}

	s, err := netcdf.LoadPoints(paths)
	if err != nil {
		return domain.Sounding{}, fmt.Errorf("load %s point files: %w", c.Name, err)
	}
	r.metrics.FilesLoaded.WithLabelValues(c.Name).Add(float64(len(paths)))
	r.logger.Info("point files loaded", "collection", c.Name, "files", len(paths), "levels", len(s.Levels))
	return s, nil
}

// reshape derives, checkpoints, flattens, sorts, and writes one collection.
func (r *Reshaper) reshape(ctx context.Context, c domain.Collection, raw domain.Sounding) error {
	out := r.outputs(c.Name)

	derived, err := domain.Derive(raw)
	if err != nil {
		return err
	}
	if err := netcdf.WriteCheckpoint(out.Checkpoint, derived); err != nil {
		return err
	}
	r.logger.Info("checkpoint written", "collection", c.Name, "file", out.Checkpoint)

	reopened, err := netcdf.ReadCheckpoint(out.Checkpoint)
	if err != nil {
		return err
	}

	rows := domain.Flatten(reopened.DropCarryOver())
	domain.SortRows(rows, c.Order)
	if err := sounding.WriteTable(out.Table, rows); err != nil {
		return err
	}
	r.metrics.ProfileRows.WithLabelValues(c.Name).Add(float64(len(rows)))
	r.logger.Info("sounding table written", "collection", c.Name, "file", out.Table, "rows", len(rows))

	if r.sink != nil {
		if err := r.sink.Publish(ctx, c.Name, rows); err != nil {
			return err
		}
	}
	return nil
}
