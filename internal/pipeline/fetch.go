package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/couchcryptid/era5-sounding/internal/domain"
	"github.com/couchcryptid/era5-sounding/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Progress is a snapshot of a fetch stage.
type Progress struct {
	Stage   string `json:"stage"`
	Total   int64  `json:"total"`
	Done    int64  `json:"done"`
	Skipped int64  `json:"skipped"`
}

// fetcher holds what the point and grid stages share: sequential retrieval,
// fail-fast error handling, and progress reporting.
type fetcher struct {
	stage     string
	retriever domain.Retriever
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	ready   atomic.Bool
	total   atomic.Int64
	done    atomic.Int64
	skipped atomic.Int64
}

// CheckReadiness returns nil once the stage has planned its requests.
func (f *fetcher) CheckReadiness(_ context.Context) error {
	if !f.ready.Load() {
		return fmt.Errorf("%s stage has not started", f.stage)
	}
	return nil
}

// Progress reports how many planned requests have completed.
func (f *fetcher) Progress() Progress {
	return Progress{
		Stage:   f.stage,
		Total:   f.total.Load(),
		Done:    f.done.Load(),
		Skipped: f.skipped.Load(),
	}
}

func (f *fetcher) start(plan []PlannedRequest) {
	f.total.Store(int64(len(plan)))
	f.done.Store(0)
	f.skipped.Store(0)
	f.ready.Store(true)
	f.metrics.StageRunning.WithLabelValues(f.stage).Set(1)
}

func (f *fetcher) stop() {
	f.metrics.StageRunning.WithLabelValues(f.stage).Set(0)
}

// retrieve runs one request and records its outcome.
func (f *fetcher) retrieve(ctx context.Context, pr PlannedRequest) error {
	start := f.clock.Now()
	err := f.retriever.Retrieve(ctx, pr.Request, pr.Target)
	f.metrics.RetrievalDuration.WithLabelValues(f.stage).Observe(f.clock.Since(start).Seconds())
	if err != nil {
		f.metrics.Retrievals.WithLabelValues(f.stage, "error").Inc()
		return fmt.Errorf("retrieve %s for event %d (%s): %w", pr.Target, pr.Event.Index, pr.Event.RawTime, err)
	}
	f.metrics.Retrievals.WithLabelValues(f.stage, "success").Inc()
	f.done.Add(1)
	return nil
}

// PointFetcher retrieves a profile at every event location and at randomly
// sampled control points.
type PointFetcher struct {
	fetcher
	sampler  *domain.Sampler
	perEvent int
	dir      string
}

// NewPointFetcher creates the point stage. perEvent control points are drawn
// from sampler for every event and written under dir.
func NewPointFetcher(r domain.Retriever, sampler *domain.Sampler, perEvent int, dir string, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *PointFetcher {
	return &PointFetcher{
		fetcher: fetcher{
			stage:     "point",
			retriever: r,
			logger:    logger,
			metrics:   metrics,
			clock:     clock,
		},
		sampler:  sampler,
		perEvent: perEvent,
		dir:      dir,
	}
}

// Run retrieves every planned point file in catalog order. Existing files are
// overwritten. The first failure stops the stage.
func (p *PointFetcher) Run(ctx context.Context, events []domain.Event) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create point directory: %w", err)
	}

	plan := PointRequests(events, p.sampler, p.perEvent, p.dir)
	p.start(plan)
	defer p.stop()
	p.logger.Info("point stage started", "events", len(events), "requests", len(plan), "dir", p.dir)

	for _, pr := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.retrieve(ctx, pr); err != nil {
			return err
		}
		lat, lon := pr.Request.Area.Center()
		p.logger.Info("downloaded point profile",
			"time", pr.Event.RawTime,
			"lat", lat,
			"lon", lon,
			"file", pr.Target,
			"done", p.done.Load(),
			"total", len(plan),
		)
	}

	p.logger.Info("point stage finished", "files", len(plan))
	return nil
}

// GridFetcher retrieves the national grid at every event hour, skipping
// files that already exist.
type GridFetcher struct {
	fetcher
	box domain.BoundingBox
	dir string
}

// NewGridFetcher creates the grid stage writing under dir.
func NewGridFetcher(r domain.Retriever, box domain.BoundingBox, dir string, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *GridFetcher {
	return &GridFetcher{
		fetcher: fetcher{
			stage:     "grid",
			retriever: r,
			logger:    logger,
			metrics:   metrics,
			clock:     clock,
		},
		box: box,
		dir: dir,
	}
}

// Run retrieves one grid per event unless its file is already present, so a
// rerun only fetches what is missing. The first failure stops the stage.
func (g *GridFetcher) Run(ctx context.Context, events []domain.Event) error {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("create grid directory: %w", err)
	}

	plan := GridRequests(events, g.box, g.dir)
	g.start(plan)
	defer g.stop()
	g.logger.Info("grid stage started", "events", len(events), "dir", g.dir)

	for _, pr := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}

		exists, err := fileExists(pr.Target)
		if err != nil {
			return err
		}
		if exists {
			g.skipped.Add(1)
			g.metrics.FilesSkipped.Inc()
			g.logger.Info("grid file already exists", "file", pr.Target)
			continue
		}

		if err := g.retrieve(ctx, pr); err != nil {
			return err
		}
		g.logger.Info("downloaded grid", "time", pr.Event.RawTime, "file", pr.Target)
	}

	g.logger.Info("grid stage finished",
		"downloaded", g.done.Load(),
		"skipped", g.skipped.Load(),
	)
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("check %s: %w", path, err)
	}
}
