package domain

import "time"

// Dataset is the archive identifier for ERA5 pressure-level reanalysis.
const Dataset = "reanalysis-era5-pressure-levels"

const (
	productReanalysis = "reanalysis"
	formatNetCDF      = "netcdf"

	// PointHalfWidth is the half-width in degrees of the box requested
	// around a single point.
	PointHalfWidth = 0.01
)

// Variables are the archive names of the fields requested for every profile.
var Variables = []string{
	"temperature",
	"geopotential",
	"u_component_of_wind",
	"v_component_of_wind",
	"specific_humidity",
}

// PressureLevels are the 37 standard ERA5 levels in hPa, surface first.
var PressureLevels = []int{
	1000, 975, 950, 925, 900, 875, 850, 825, 800,
	775, 750, 700, 650, 600, 550, 500, 450, 400,
	350, 300, 250, 225, 200, 175, 150, 125, 100,
	70, 50, 30, 20, 10, 7, 5, 3, 2, 1,
}

// Request describes one retrieval from the archive. It always covers exactly
// one analysis hour.
type Request struct {
	Dataset        string
	ProductType    string
	Variables      []string
	Year           int
	Month          int
	Day            int
	Hour           int
	PressureLevels []int
	Area           BoundingBox
	Format         string
}

// NewRequest builds the standard profile request for the hour containing t.
func NewRequest(t time.Time, area BoundingBox) Request {
	t = t.UTC()
	return Request{
		Dataset:        Dataset,
		ProductType:    productReanalysis,
		Variables:      append([]string(nil), Variables...),
		Year:           t.Year(),
		Month:          int(t.Month()),
		Day:            t.Day(),
		Hour:           t.Hour(),
		PressureLevels: append([]int(nil), PressureLevels...),
		Area:           area,
		Format:         formatNetCDF,
	}
}

// NewPointRequest builds a request for a ±PointHalfWidth box around a point.
func NewPointRequest(t time.Time, lat, lon float64) Request {
	return NewRequest(t, PointBox(lat, lon, PointHalfWidth))
}

// Time returns the analysis hour the request covers.
func (r Request) Time() time.Time {
	return time.Date(r.Year, time.Month(r.Month), r.Day, r.Hour, 0, 0, 0, time.UTC)
}
