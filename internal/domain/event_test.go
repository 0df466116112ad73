package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRawTime = "2021-07-04 14:00:00"

func TestParseEventTime(t *testing.T) {
	got, err := ParseEventTime(testRawTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 7, 4, 14, 0, 0, 0, time.UTC), got)

	_, err = ParseEventTime("04.07.2021 14:00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse event time")
}

func TestNewRequest_TruncatesToHour(t *testing.T) {
	raws := []string{
		"1995-01-01 00:00:00",
		"2000-02-29 23:59:59",
		"2021-07-04 14:00:00",
		"2021-07-04 14:37:12",
		"2024-12-31 09:05:01",
	}

	for _, raw := range raws {
		t.Run(raw, func(t *testing.T) {
			ts, err := ParseEventTime(raw)
			require.NoError(t, err)

			req := NewPointRequest(ts, 51.5, 9.5)
			assert.Equal(t, ts.Year(), req.Year)
			assert.Equal(t, int(ts.Month()), req.Month)
			assert.Equal(t, ts.Day(), req.Day)
			assert.Equal(t, ts.Hour(), req.Hour)
			assert.Equal(t, ts.Truncate(time.Hour), req.Time())
			assert.Equal(t, Event{Time: ts}.Hour(), req.Time())
		})
	}
}

func TestNewRequest_FixedFields(t *testing.T) {
	req := NewRequest(time.Date(2021, 7, 4, 14, 0, 0, 0, time.UTC), Germany)

	assert.Equal(t, "reanalysis-era5-pressure-levels", req.Dataset)
	assert.Equal(t, "reanalysis", req.ProductType)
	assert.Equal(t, "netcdf", req.Format)
	assert.Len(t, req.Variables, 5)
	assert.Len(t, req.PressureLevels, 37)
	assert.Equal(t, 1000, req.PressureLevels[0])
	assert.Equal(t, 1, req.PressureLevels[36])
	assert.Equal(t, []float64{55.09, 5.87, 47.27, 15.04}, req.Area.Area())

	// Requests own their slices.
	req.PressureLevels[0] = 0
	assert.Equal(t, 1000, PressureLevels[0])
}

func TestPointBox(t *testing.T) {
	box := PointBox(51.5, 9.5, PointHalfWidth)

	assert.InDelta(t, 51.51, box.North, floatTolerance)
	assert.InDelta(t, 9.49, box.West, floatTolerance)
	assert.InDelta(t, 51.49, box.South, floatTolerance)
	assert.InDelta(t, 9.51, box.East, floatTolerance)
	assert.InDelta(t, 0.02, box.North-box.South, floatTolerance)
	assert.InDelta(t, 0.02, box.East-box.West, floatTolerance)
	assert.True(t, box.Contains(51.5, 9.5))
	assert.False(t, box.Contains(51.6, 9.5))
}

func TestBoundingBoxValidate(t *testing.T) {
	require.NoError(t, Germany.Validate())

	tests := []struct {
		name string
		box  BoundingBox
		msg  string
	}{
		{"inverted latitude", BoundingBox{North: 40, South: 50, West: 0, East: 1}, "south"},
		{"inverted longitude", BoundingBox{North: 50, South: 40, West: 10, East: 1}, "west"},
		{"out of range", BoundingBox{North: 95, South: 40, West: 0, East: 1}, "WGS-84"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.box.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "2021-07-04_140000", SanitizeTimestamp(testRawTime))
	assert.Equal(t, "era5_1_2021-07-04_140000.nc", PointFileName(1, testRawTime))
	assert.Equal(t, "random_1_10_2021-07-04_140000.nc", RandomFileName(1, 10, testRawTime))
	assert.Equal(t, "era5_germany_2021-07-04_140000.nc", GridFileName(testRawTime))
}

func TestSampler_StaysInsideGermany(t *testing.T) {
	s := NewSampler(Germany, nil)
	for range 10000 {
		lat, lon := s.Point()
		assert.GreaterOrEqual(t, lat, 47.27)
		assert.LessOrEqual(t, lat, 55.09)
		assert.GreaterOrEqual(t, lon, 5.87)
		assert.LessOrEqual(t, lon, 15.04)
	}
}

func TestSampler_Seeded(t *testing.T) {
	a := NewSeededSampler(Germany, 42)
	b := NewSeededSampler(Germany, 42)
	for range 5 {
		latA, lonA := a.Point()
		latB, lonB := b.Point()
		assert.Equal(t, latA, latB)
		assert.Equal(t, lonA, lonB)
	}
}
