package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/era5-sounding/internal/domain"
	"github.com/couchcryptid/era5-sounding/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPointFetcher(r domain.Retriever, dir string) (*pipeline.PointFetcher, func() float64) {
	m := newTestMetrics()
	f := pipeline.NewPointFetcher(r, domain.NewSeededSampler(domain.Germany, 3), 10, dir, discardLogger(), m, clockwork.NewFakeClock())
	return f, func() float64 { return testutil.ToFloat64(m.Retrievals.WithLabelValues("point", "success")) }
}

func TestPointFetcher_RetrievesAllInOrder(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRetriever{}
	f, successes := newPointFetcher(r, dir)

	events := []domain.Event{
		mustEvent(t, 1, "2021-07-04 14:00:00", 51.5, 9.5),
		mustEvent(t, 2, "2021-07-05 09:00:00", 50.0, 8.0),
	}
	require.NoError(t, f.Run(context.Background(), events))

	calls := r.Calls()
	require.Len(t, calls, 22)
	assert.Equal(t, filepath.Join(dir, "era5_1_2021-07-04_140000.nc"), calls[0].Target)
	assert.Equal(t, filepath.Join(dir, "random_1_1_2021-07-04_140000.nc"), calls[1].Target)
	assert.Equal(t, filepath.Join(dir, "era5_2_2021-07-05_090000.nc"), calls[11].Target)
	assert.InDelta(t, 22, successes(), 0)

	p := f.Progress()
	assert.Equal(t, pipeline.Progress{Stage: "point", Total: 22, Done: 22}, p)
	require.NoError(t, f.CheckReadiness(context.Background()))
}

func TestPointFetcher_OverwritesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "era5_1_2021-07-04_140000.nc")
	require.NoError(t, os.WriteFile(target, []byte("stale"), 0o644))

	r := &fakeRetriever{}
	f, _ := newPointFetcher(r, dir)
	require.NoError(t, f.Run(context.Background(), []domain.Event{mustEvent(t, 1, "2021-07-04 14:00:00", 51.5, 9.5)}))

	assert.Len(t, r.Calls(), 11)
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, target, string(got))
}

func TestPointFetcher_StopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRetriever{failAt: 3}
	f, successes := newPointFetcher(r, dir)

	err := f.Run(context.Background(), []domain.Event{mustEvent(t, 1, "2021-07-04 14:00:00", 51.5, 9.5)})
	require.ErrorIs(t, err, errArchive)
	assert.Contains(t, err.Error(), "random_1_2_2021-07-04_140000.nc")
	assert.Len(t, r.Calls(), 3)
	assert.InDelta(t, 2, successes(), 0)
	assert.Equal(t, int64(2), f.Progress().Done)
}

func TestPointFetcher_NotReadyBeforeRun(t *testing.T) {
	f, _ := newPointFetcher(&fakeRetriever{}, t.TempDir())
	require.Error(t, f.CheckReadiness(context.Background()))
}

func TestPointFetcher_CancelledContext(t *testing.T) {
	r := &fakeRetriever{}
	f, _ := newPointFetcher(r, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.Run(ctx, []domain.Event{mustEvent(t, 1, "2021-07-04 14:00:00", 51.5, 9.5)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.Calls())
}

func newGridFetcher(r domain.Retriever, dir string) (*pipeline.GridFetcher, func() float64) {
	m := newTestMetrics()
	g := pipeline.NewGridFetcher(r, domain.Germany, dir, discardLogger(), m, clockwork.NewFakeClock())
	return g, func() float64 { return testutil.ToFloat64(m.FilesSkipped) }
}

func TestGridFetcher_SecondRunIsNoOp(t *testing.T) {
	dir := t.TempDir()
	events := []domain.Event{
		mustEvent(t, 1, "2021-07-04 14:00:00", 51.5, 9.5),
		mustEvent(t, 2, "2021-07-05 09:00:00", 50.0, 8.0),
	}

	first := &fakeRetriever{}
	g1, _ := newGridFetcher(first, dir)
	require.NoError(t, g1.Run(context.Background(), events))
	require.Len(t, first.Calls(), 2)

	before := readDir(t, dir)

	second := &fakeRetriever{}
	g2, skipped := newGridFetcher(second, dir)
	require.NoError(t, g2.Run(context.Background(), events))
	assert.Empty(t, second.Calls())
	assert.InDelta(t, 2, skipped(), 0)
	assert.Equal(t, pipeline.Progress{Stage: "grid", Total: 2, Skipped: 2}, g2.Progress())

	assert.Equal(t, before, readDir(t, dir))
}

func TestGridFetcher_IdenticalTimestampsCollapse(t *testing.T) {
	dir := t.TempDir()
	events := []domain.Event{
		mustEvent(t, 1, "2021-07-04 14:00:00", 51.5, 9.5),
		mustEvent(t, 2, "2021-07-04 14:00:00", 48.0, 11.0),
	}

	r := &fakeRetriever{}
	g, skipped := newGridFetcher(r, dir)
	require.NoError(t, g.Run(context.Background(), events))

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, filepath.Join(dir, "era5_germany_2021-07-04_140000.nc"), calls[0].Target)
	assert.Equal(t, domain.Germany, calls[0].Request.Area)
	assert.InDelta(t, 1, skipped(), 0)
}

func TestGridFetcher_StopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	events := []domain.Event{
		mustEvent(t, 1, "2021-07-04 14:00:00", 51.5, 9.5),
		mustEvent(t, 2, "2021-07-05 09:00:00", 50.0, 8.0),
		mustEvent(t, 3, "2021-07-06 18:00:00", 52.0, 13.0),
	}

	r := &fakeRetriever{failAt: 2}
	g, _ := newGridFetcher(r, dir)
	require.ErrorIs(t, g.Run(context.Background(), events), errArchive)
	assert.Len(t, r.Calls(), 2)
	assert.NoFileExists(t, filepath.Join(dir, "era5_germany_2021-07-06_180000.nc"))

	// A rerun resumes where the first run stopped.
	resume := &fakeRetriever{}
	g2, skipped := newGridFetcher(resume, dir)
	require.NoError(t, g2.Run(context.Background(), events))
	assert.Len(t, resume.Calls(), 2)
	assert.InDelta(t, 1, skipped(), 0)
}

func readDir(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = string(b)
	}
	return out
}
