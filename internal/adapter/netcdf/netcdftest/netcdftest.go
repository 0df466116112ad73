// Package netcdftest writes small ERA5-shaped point files for tests.
package netcdftest

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/couchcryptid/era5-sounding/internal/domain"
)

// Point describes the content of one retrieved file.
type Point struct {
	Time   time.Time
	Lats   []float64
	Lons   []float64
	Levels []float64 // hPa

	T, Z, U, V, Q []float64 // one value per level

	Number int32
	ExpVer int32

	// Legacy writes the older layout: "time" in hours since 1900, "level",
	// and fields packed as int16 with scale_factor and add_offset.
	Legacy bool
}

// Profile returns a plausible single-point profile on the standard levels.
func Profile(t time.Time, lat, lon float64) Point {
	levels := make([]float64, len(domain.PressureLevels))
	for i, p := range domain.PressureLevels {
		levels[i] = float64(p)
	}

	n := len(levels)
	p := Point{
		Time:   t,
		Lats:   []float64{lat},
		Lons:   []float64{lon},
		Levels: levels,
		T:      make([]float64, n),
		Z:      make([]float64, n),
		U:      make([]float64, n),
		V:      make([]float64, n),
		Q:      make([]float64, n),
		ExpVer: 1,
	}
	for i, hPa := range levels {
		// Standard lapse rate up to the tropopause.
		height := 7400 * math.Log(1013.25/hPa)
		p.T[i] = math.Max(288.15-0.0065*height, 216.65)
		p.Z[i] = height * domain.StandardGravity
		p.U[i] = 5 + float64(i)*0.5
		p.V[i] = -3 + float64(i)*0.25
		p.Q[i] = humidityForDewPoint(p.T[i]-domain.KelvinOffset-5-float64(i)*0.5, hPa)
	}
	return p
}

// humidityForDewPoint inverts the dew-point formula: the specific humidity in
// kg kg⁻¹ whose dew point at p hPa is td °C.
func humidityForDewPoint(td, p float64) float64 {
	e := 6.112 * math.Exp(17.67*td/(td+243.5))
	return 0.622 * e / (p - 0.378*e)
}

// Write stores p at path as a netCDF classic file.
func Write(path string, p Point) error {
	w, err := cdf.OpenWriter(path)
	if err != nil {
		return err
	}
	if err := write(w, p); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return w.Close()
}

// Archive is a domain.Retriever that writes a synthetic profile at the centre
// of each requested area instead of contacting the archive.
type Archive struct {
	Legacy bool
}

// Retrieve implements domain.Retriever.
func (a Archive) Retrieve(ctx context.Context, req domain.Request, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lat, lon := req.Area.Center()
	p := Profile(req.Time(), lat, lon)
	p.Legacy = a.Legacy

	part := target + ".part"
	if err := Write(part, p); err != nil {
		os.Remove(part) //nolint:errcheck // best-effort cleanup
		return err
	}
	return os.Rename(part, target)
}

func write(w *cdf.CDFWriter, p Point) error {
	timeName, levelName := "valid_time", "pressure_level"
	timeUnits := "seconds since 1970-01-01"
	timeValue := float64(p.Time.Unix())
	if p.Legacy {
		timeName, levelName = "time", "level"
		timeUnits = "hours since 1900-01-01 00:00:00.0"
		timeValue = p.Time.Sub(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)).Hours()
	}

	if err := addVar(w, timeName, []float64{timeValue}, []string{timeName}, "units", timeUnits); err != nil {
		return err
	}
	if err := addVar(w, levelName, p.Levels, []string{levelName}, "units", "millibars"); err != nil {
		return err
	}
	if err := addVar(w, "latitude", p.Lats, []string{"latitude"}, "units", "degrees_north"); err != nil {
		return err
	}
	if err := addVar(w, "longitude", p.Lons, []string{"longitude"}, "units", "degrees_east"); err != nil {
		return err
	}
	if err := addVar(w, "number", []int32{p.Number}, []string{timeName}); err != nil {
		return err
	}
	if err := addVar(w, "expver", []int32{p.ExpVer}, []string{timeName}); err != nil {
		return err
	}

	dims := []string{timeName, levelName, "latitude", "longitude"}
	fields := []struct {
		name string
		vals []float64
	}{{"t", p.T}, {"z", p.Z}, {"u", p.U}, {"v", p.V}, {"q", p.Q}}
	for _, f := range fields {
		if len(f.vals) != len(p.Levels) {
			return fmt.Errorf("field %s has %d values for %d levels", f.name, len(f.vals), len(p.Levels))
		}
		if p.Legacy {
			packed, scale, offset := pack(f.vals)
			err := addVar(w, f.name, grid(packed, len(p.Lats), len(p.Lons)), dims,
				"scale_factor", scale, "add_offset", offset, "_FillValue", int16(math.MinInt16))
			if err != nil {
				return err
			}
			continue
		}
		if err := addVar(w, f.name, grid(toFloat32(f.vals), len(p.Lats), len(p.Lons)), dims); err != nil {
			return err
		}
	}
	return nil
}

// addVar adds a variable with attributes given as alternating keys and values.
func addVar(w *cdf.CDFWriter, name string, values any, dims []string, kv ...any) error {
	keys := make([]string, 0, len(kv)/2)
	vals := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k := kv[i].(string)
		keys = append(keys, k)
		vals[k] = kv[i+1]
	}
	attrs, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return err
	}
	if err := w.AddVar(name, api.Variable{Values: values, Dimensions: dims, Attributes: attrs}); err != nil {
		return fmt.Errorf("add variable %s: %w", name, err)
	}
	return nil
}

// grid lays a profile out as [time][level][lat][lon], repeating it at every
// horizontal position.
func grid[T any](profile []T, nlat, nlon int) [][][][]T {
	levels := make([][][]T, len(profile))
	for k, x := range profile {
		rows := make([][]T, nlat)
		for i := range rows {
			row := make([]T, nlon)
			for j := range row {
				row[j] = x
			}
			rows[i] = row
		}
		levels[k] = rows
	}
	return [][][][]T{levels}
}

func toFloat32(vals []float64) []float32 {
	out := make([]float32, len(vals))
	for i, x := range vals {
		out[i] = float32(x)
	}
	return out
}

// pack encodes vals as int16 the way the archive packs legacy files.
func pack(vals []float64) ([]int16, float64, float64) {
	lo, hi := vals[0], vals[0]
	for _, x := range vals {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	offset := (hi + lo) / 2
	scale := (hi - lo) / 65000
	if scale == 0 {
		scale = 1
	}
	out := make([]int16, len(vals))
	for i, x := range vals {
		out[i] = int16(math.Round((x - offset) / scale))
	}
	return out, scale, offset
}

// PackingTolerance is the largest absolute error introduced by pack for a
// field spanning [lo, hi].
func PackingTolerance(lo, hi float64) float64 {
	return (hi-lo)/65000/2 + 1e-9
}
