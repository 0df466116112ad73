package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/couchcryptid/era5-sounding/internal/adapter/netcdf/netcdftest"
	"github.com/couchcryptid/era5-sounding/internal/domain"
	"github.com/couchcryptid/era5-sounding/internal/observability"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type call struct {
	Request domain.Request
	Target  string
}

// fakeRetriever records every call and writes a small file to the target.
// When failAt is positive, that call (1-based) fails instead.
type fakeRetriever struct {
	mu     sync.Mutex
	calls  []call
	failAt int
	write  func(req domain.Request, target string) error
}

var errArchive = errors.New("archive unavailable")

func (f *fakeRetriever) Retrieve(_ context.Context, req domain.Request, target string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{Request: req, Target: target})
	n := len(f.calls)
	f.mu.Unlock()

	if f.failAt > 0 && n == f.failAt {
		return errArchive
	}
	if f.write != nil {
		return f.write(req, target)
	}
	return os.WriteFile(target, []byte(target), 0o644)
}

func (f *fakeRetriever) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// writeProfile stores an ERA5-shaped profile at the centre of the request.
func writeProfile(req domain.Request, target string) error {
	lat, lon := req.Area.Center()
	return netcdftest.Write(target, netcdftest.Profile(req.Time(), lat, lon))
}

type recordingSink struct {
	rows map[string][]domain.ProfileRow
	err  error
}

func (s *recordingSink) Publish(_ context.Context, collection string, rows []domain.ProfileRow) error {
	if s.err != nil {
		return s.err
	}
	if s.rows == nil {
		s.rows = make(map[string][]domain.ProfileRow)
	}
	s.rows[collection] = append(s.rows[collection], rows...)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustEvent(t *testing.T, index int, raw string, lat, lon float64) domain.Event {
	t.Helper()
	at, err := domain.ParseEventTime(raw)
	require.NoError(t, err)
	return domain.Event{Index: index, RawTime: raw, Time: at, Lat: lat, Lon: lon}
}
