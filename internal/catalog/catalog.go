// Package catalog reads the tornado event catalog.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/era5-sounding/internal/domain"
	"github.com/jszwec/csvutil"
)

// ErrMalformedRow is wrapped by every row-level validation error.
var ErrMalformedRow = errors.New("malformed catalog row")

// record maps the catalog columns used by the pipeline. Other columns are ignored.
type record struct {
	TimeEvent string `csv:"TIME_EVENT"`
	Latitude  string `csv:"LATITUDE"`
	Longitude string `csv:"LONGITUDE"`
}

// Load reads and validates the catalog at path.
func Load(path string) ([]domain.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	events, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return events, nil
}

// Parse decodes catalog rows in file order. Row indexes are 1-based.
func Parse(r io.Reader) ([]domain.Event, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog is empty")
		}
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	dec.DisallowMissingColumns = true

	var events []domain.Event
	for i := 1; ; i++ {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode row %d: %w", i, err)
		}

		ev, err := toEvent(i, rec)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func toEvent(index int, rec record) (domain.Event, error) {
	raw := strings.TrimSpace(rec.TimeEvent)
	ts, err := domain.ParseEventTime(raw)
	if err != nil {
		return domain.Event{}, fmt.Errorf("row %d: %w: %w", index, ErrMalformedRow, err)
	}

	lat, err := parseCoordinate(rec.Latitude, 90)
	if err != nil {
		return domain.Event{}, fmt.Errorf("row %d latitude: %w: %w", index, ErrMalformedRow, err)
	}
	lon, err := parseCoordinate(rec.Longitude, 180)
	if err != nil {
		return domain.Event{}, fmt.Errorf("row %d longitude: %w: %w", index, ErrMalformedRow, err)
	}

	return domain.Event{
		Index:   index,
		RawTime: raw,
		Time:    ts,
		Lat:     lat,
		Lon:     lon,
	}, nil
}

func parseCoordinate(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < -limit || v > limit {
		return 0, fmt.Errorf("%g outside [-%g, %g]", v, limit, limit)
	}
	return v, nil
}
