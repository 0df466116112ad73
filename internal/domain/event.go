package domain

import (
	"fmt"
	"time"
)

// EventTimeLayout is the catalog timestamp format.
const EventTimeLayout = "2006-01-02 15:04:05"

// Event is one row of the tornado catalog.
type Event struct {
	Index   int       // 1-based row position in the catalog
	RawTime string    // TIME_EVENT exactly as it appears in the catalog
	Time    time.Time // RawTime parsed as UTC
	Lat     float64
	Lon     float64
}

// Hour returns the event time truncated to the analysis hour.
func (e Event) Hour() time.Time {
	return e.Time.Truncate(time.Hour)
}

// ParseEventTime parses a catalog timestamp as UTC.
func ParseEventTime(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(EventTimeLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse event time %q: %w", raw, err)
	}
	return t, nil
}

// BoundingBox is a latitude/longitude rectangle in degrees.
type BoundingBox struct {
	North float64
	West  float64
	South float64
	East  float64
}

// Germany is the rough national bounding box used for grid requests and
// random control points.
var Germany = BoundingBox{North: 55.09, West: 5.87, South: 47.27, East: 15.04}

// PointBox returns a box of ±half degrees around a point.
func PointBox(lat, lon, half float64) BoundingBox {
	return BoundingBox{
		North: lat + half,
		West:  lon - half,
		South: lat - half,
		East:  lon + half,
	}
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.North + b.South) / 2, (b.West + b.East) / 2
}

// Area returns the box in the archive's [north, west, south, east] order.
func (b BoundingBox) Area() []float64 {
	return []float64{b.North, b.West, b.South, b.East}
}

// Validate checks that the box is non-empty and within WGS-84 ranges.
func (b BoundingBox) Validate() error {
	if b.South > b.North {
		return fmt.Errorf("bounding box south %.4f is north of %.4f", b.South, b.North)
	}
	if b.West > b.East {
		return fmt.Errorf("bounding box west %.4f is east of %.4f", b.West, b.East)
	}
	if b.South < -90 || b.North > 90 || b.West < -180 || b.East > 180 {
		return fmt.Errorf("bounding box %v outside WGS-84 range", b.Area())
	}
	return nil
}
