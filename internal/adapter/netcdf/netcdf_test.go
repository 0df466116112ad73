package netcdf

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/couchcryptid/era5-sounding/internal/adapter/netcdf/netcdftest"
	"github.com/couchcryptid/era5-sounding/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventTime = time.Date(2021, 7, 4, 14, 0, 0, 0, time.UTC)

func writePoint(t *testing.T, dir, name string, p netcdftest.Point) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, netcdftest.Write(path, p))
	return path
}

func TestLoadPoint_CurrentLayout(t *testing.T) {
	p := netcdftest.Profile(eventTime, 51.5, 9.5)
	p.ExpVer = 5
	path := writePoint(t, t.TempDir(), "era5_1_2021-07-04_140000.nc", p)

	s, err := LoadPoint(path)
	require.NoError(t, err)

	require.Len(t, s.Levels, 37)
	assert.InDelta(t, 1000, s.Levels[0], 0)
	assert.InDelta(t, 1, s.Levels[36], 0)
	assert.True(t, s.CarryOver)
	assert.False(t, s.Derived)

	require.Len(t, s.Slots, 1)
	slot := s.Slots[0]
	assert.Equal(t, path, slot.Source)
	assert.True(t, slot.Time.Equal(eventTime), "got %s", slot.Time)
	assert.InDelta(t, 51.5, slot.Lat, 1e-9)
	assert.InDelta(t, 9.5, slot.Lon, 1e-9)
	assert.Equal(t, 5, slot.ExpVer)
	assert.Equal(t, 0, slot.Member)
	for k := range p.T {
		assert.InDelta(t, p.T[k], slot.Temperature[k], 1e-4)
		assert.InDelta(t, p.Q[k], slot.Humidity[k], 1e-7)
	}
}

func TestLoadPoint_LegacyPackedLayout(t *testing.T) {
	p := netcdftest.Profile(eventTime, 48.1, 11.6)
	p.Legacy = true
	path := writePoint(t, t.TempDir(), "era5_2.nc", p)

	s, err := LoadPoint(path)
	require.NoError(t, err)
	require.Len(t, s.Slots, 1)
	slot := s.Slots[0]
	assert.True(t, slot.Time.Equal(eventTime), "got %s", slot.Time)

	lo, hi := minMax(p.Z)
	tol := netcdftest.PackingTolerance(lo, hi)
	for k := range p.Z {
		assert.InDelta(t, p.Z[k], slot.Geopotential[k], tol)
	}
}

func TestLoadPoint_NotAPoint(t *testing.T) {
	p := netcdftest.Profile(eventTime, 51.5, 9.5)
	p.Lats = []float64{51.5, 51.25}
	path := writePoint(t, t.TempDir(), "era5_3.nc", p)

	_, err := LoadPoint(path)
	require.ErrorIs(t, err, ErrNotAPoint)
	assert.Contains(t, err.Error(), "era5_3.nc")
}

func TestLoadPoint_MissingFile(t *testing.T) {
	_, err := LoadPoint(filepath.Join(t.TempDir(), "absent.nc"))
	require.Error(t, err)
}

func TestLoadPoints_AppendsInOrder(t *testing.T) {
	dir := t.TempDir()
	a := writePoint(t, dir, "era5_1.nc", netcdftest.Profile(eventTime, 50, 8))
	b := writePoint(t, dir, "era5_2.nc", netcdftest.Profile(eventTime.Add(-time.Hour), 52, 10))

	s, err := LoadPoints([]string{a, b})
	require.NoError(t, err)
	require.Len(t, s.Slots, 2)
	assert.Equal(t, a, s.Slots[0].Source)
	assert.Equal(t, b, s.Slots[1].Source)
	assert.InDelta(t, 52, s.Slots[1].Lat, 1e-9)
}

func TestLoadPoints_LevelMismatch(t *testing.T) {
	dir := t.TempDir()
	a := writePoint(t, dir, "era5_1.nc", netcdftest.Profile(eventTime, 50, 8))

	short := netcdftest.Profile(eventTime, 52, 10)
	short.Levels = short.Levels[:5]
	short.T, short.Z, short.U, short.V, short.Q = short.T[:5], short.Z[:5], short.U[:5], short.V[:5], short.Q[:5]
	b := writePoint(t, dir, "era5_2.nc", short)

	_, err := LoadPoints([]string{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pressure levels differ")
}

func TestLoadPoints_Empty(t *testing.T) {
	_, err := LoadPoints(nil)
	require.Error(t, err)
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := writePoint(t, dir, "era5_1.nc", netcdftest.Profile(eventTime, 50, 8))
	pb := netcdftest.Profile(eventTime.Add(24*time.Hour), 52, 10)
	pb.Number, pb.ExpVer = 3, 5
	b := writePoint(t, dir, "era5_2.nc", pb)

	raw, err := LoadPoints([]string{a, b})
	require.NoError(t, err)
	derived, err := domain.Derive(raw)
	require.NoError(t, err)

	path := filepath.Join(dir, "Processed.nc")
	require.NoError(t, WriteCheckpoint(path, derived))
	assert.NoFileExists(t, path+".part")

	got, err := ReadCheckpoint(path)
	require.NoError(t, err)
	assert.True(t, got.Derived)
	assert.True(t, got.CarryOver)
	assert.Equal(t, derived.Levels, got.Levels)
	require.Len(t, got.Slots, 2)

	for i, want := range derived.Slots {
		slot := got.Slots[i]
		assert.True(t, slot.Time.Equal(want.Time))
		assert.InDelta(t, want.Lat, slot.Lat, 1e-12)
		assert.Equal(t, want.Member, slot.Member)
		assert.Equal(t, want.ExpVer, slot.ExpVer)
		assertClose(t, want.Temperature, slot.Temperature)
		assertClose(t, want.Altitude, slot.Altitude)
		assertClose(t, want.DewPoint, slot.DewPoint)
		assertClose(t, want.WindSpeed, slot.WindSpeed)
		assertClose(t, want.WindDirection, slot.WindDirection)
	}
	assert.Equal(t, 3, got.Slots[1].Member)
	assert.Equal(t, 5, got.Slots[1].ExpVer)

	dropped := got.DropCarryOver()
	assert.False(t, dropped.CarryOver)
	assert.Equal(t, 0, dropped.Slots[1].ExpVer)
}

func TestWriteCheckpoint_RequiresDerived(t *testing.T) {
	path := writePoint(t, t.TempDir(), "era5_1.nc", netcdftest.Profile(eventTime, 50, 8))
	raw, err := LoadPoint(path)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.nc")
	require.Error(t, WriteCheckpoint(out, raw))
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units string
		unit  time.Duration
		epoch time.Time
	}{
		{"seconds since 1970-01-01", time.Second, time.Unix(0, 0).UTC()},
		{"hours since 1900-01-01 00:00:00.0", time.Hour, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"days since 2000-01-01T00:00:00Z", 24 * time.Hour, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			unit, epoch, err := parseTimeUnits(tt.units)
			require.NoError(t, err)
			assert.Equal(t, tt.unit, unit)
			assert.True(t, epoch.Equal(tt.epoch), "got %s", epoch)
		})
	}

	_, _, err := parseTimeUnits("fortnights since 1970-01-01")
	require.Error(t, err)
	_, _, err = parseTimeUnits("")
	require.Error(t, err)
}

func TestIntValue(t *testing.T) {
	n, err := intValue([]string{"0005"})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = intValue(int64(1))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = intValue([]int32{3})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = intValue([]string{})
	require.Error(t, err)
}

func TestFlatten_Nested(t *testing.T) {
	got, err := flatten([][]float32{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, got)

	_, err = flatten([]string{"x"})
	require.Error(t, err)
}

func assertClose(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]))
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9)
	}
}

func minMax(vals []float64) (float64, float64) {
	lo, hi := vals[0], vals[0]
	for _, x := range vals {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

func TestArchive_WritesLoadablePoint(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "era5_1_2021-07-04_140000.nc")
	req := domain.NewPointRequest(eventTime, 51.5, 9.5)

	require.NoError(t, netcdftest.Archive{Legacy: true}.Retrieve(context.Background(), req, target))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file left behind")

	s, err := LoadPoint(target)
	require.NoError(t, err)
	require.Len(t, s.Slots, 1)
	assert.InDelta(t, 51.5, s.Slots[0].Lat, 1e-9)
	assert.InDelta(t, 9.5, s.Slots[0].Lon, 1e-9)
}

// Current deliveries are netCDF4: valid_time is int64 seconds and expver is a
// string variable.
func TestDecode_NetCDF4Shapes(t *testing.T) {
	attrs, err := util.NewOrderedMap([]string{"units"}, map[string]any{"units": "seconds since 1970-01-01"})
	require.NoError(t, err)

	times, err := decodeTimes(&api.Variable{
		Values:     []int64{eventTime.Unix()},
		Dimensions: []string{"valid_time"},
		Attributes: attrs,
	})
	require.NoError(t, err)
	require.Len(t, times, 1)
	assert.True(t, times[0].Equal(eventTime), "got %s", times[0])

	n, err := intValue([]string{"0001"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
