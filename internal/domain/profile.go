package domain

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// Timestamp is a UTC time rendered in the catalog layout in tables.
type Timestamp time.Time

// MarshalText implements encoding.TextMarshaler.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(time.Time(t).UTC().Format(EventTimeLayout)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timestamp) UnmarshalText(b []byte) error {
	parsed, err := ParseEventTime(string(b))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns t as a time.Time.
func (t Timestamp) Time() time.Time { return time.Time(t) }

// Equal reports whether t and u are the same instant.
func (t Timestamp) Equal(u Timestamp) bool { return time.Time(t).Equal(time.Time(u)) }

// ProfileRow is one (point, time, pressure level) row of a sounding table.
type ProfileRow struct {
	ValidTime     Timestamp `csv:"valid_time" json:"valid_time"`
	PressureLevel float64   `csv:"pressure_level" json:"pressure_level"`
	Latitude      float64   `csv:"latitude" json:"latitude"`
	Longitude     float64   `csv:"longitude" json:"longitude"`
	Temperature   float64   `csv:"temperature" json:"temperature"`
	GptHeight     float64   `csv:"gpt_height" json:"gpt_height"`
	UWind         float64   `csv:"u_wind" json:"u_wind"`
	VWind         float64   `csv:"v_wind" json:"v_wind"`
	SpHumidity    float64   `csv:"sp_humidity" json:"sp_humidity"`
	Altitude      float64   `csv:"altitude" json:"altitude"`
	DewPoint      float64   `csv:"dew_point" json:"dew_point"`
	WindSpeed     float64   `csv:"wind_speed" json:"wind_speed"`
	WindDirection float64   `csv:"wind_direction" json:"wind_direction"`
}

// Flatten expands a derived sounding into one row per (slot, level), slots in
// file order and levels in axis order.
func Flatten(s Sounding) []ProfileRow {
	rows := make([]ProfileRow, 0, len(s.Slots)*len(s.Levels))
	for _, slot := range s.Slots {
		for k, p := range s.Levels {
			rows = append(rows, ProfileRow{
				ValidTime:     Timestamp(slot.Time),
				PressureLevel: p,
				Latitude:      slot.Lat,
				Longitude:     slot.Lon,
				Temperature:   at(slot.Temperature, k),
				GptHeight:     at(slot.Geopotential, k),
				UWind:         at(slot.U, k),
				VWind:         at(slot.V, k),
				SpHumidity:    at(slot.Humidity, k),
				Altitude:      at(slot.Altitude, k),
				DewPoint:      at(slot.DewPoint, k),
				WindSpeed:     at(slot.WindSpeed, k),
				WindDirection: at(slot.WindDirection, k),
			})
		}
	}
	return rows
}

// at returns vals[k], or NaN when the field was never filled in.
func at(vals []float64, k int) float64 {
	if k < len(vals) {
		return vals[k]
	}
	return math.NaN()
}

// SortOrder selects the row order of a sounding table.
type SortOrder int

const (
	// ByTimePressureLatitude sorts by time, pressure level, then latitude,
	// all descending.
	ByTimePressureLatitude SortOrder = iota
	// ByTimeLatitudePressure sorts by time, latitude, then pressure level,
	// all descending.
	ByTimeLatitudePressure
)

// Compare orders a before b under o, returning a negative number when a
// sorts first.
func (o SortOrder) Compare(a, b ProfileRow) int {
	if c := b.ValidTime.Time().Compare(a.ValidTime.Time()); c != 0 {
		return c
	}
	if o == ByTimeLatitudePressure {
		if c := cmp.Compare(b.Latitude, a.Latitude); c != 0 {
			return c
		}
		return cmp.Compare(b.PressureLevel, a.PressureLevel)
	}
	if c := cmp.Compare(b.PressureLevel, a.PressureLevel); c != 0 {
		return c
	}
	return cmp.Compare(b.Latitude, a.Latitude)
}

// SortRows orders rows in place. Ties keep their flatten order.
func SortRows(rows []ProfileRow, order SortOrder) {
	slices.SortStableFunc(rows, order.Compare)
}

// Collection is one family of point files reshaped into one table.
type Collection struct {
	Name    string // "tornado" or "random"
	Pattern string
	Order   SortOrder
}

// Collections are the two point-file families, in processing order.
var Collections = []Collection{
	{Name: "tornado", Pattern: TornadoFilePattern, Order: ByTimePressureLatitude},
	{Name: "random", Pattern: RandomFilePattern, Order: ByTimeLatitudePressure},
}
