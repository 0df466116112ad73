// Package netcdf reads ERA5 point files and reads and writes the processed
// sounding checkpoint.
package netcdf

import (
	"errors"
	"fmt"

	native "github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/couchcryptid/era5-sounding/internal/domain"
)

// ErrNotAPoint is returned for a file that does not hold exactly one
// latitude, one longitude, and one time.
var ErrNotAPoint = errors.New("file is not a single point at a single time")

// ERA5 has used both naming schemes for the time and level coordinates.
var (
	timeNames  = []string{"valid_time", "time"}
	levelNames = []string{"pressure_level", "level"}
)

// rawFields are the archive variable names of the retrieved fields, in the
// order they are assigned to a Slot.
var rawFields = []string{"t", "z", "u", "v", "q"}

// LoadPoints opens each file in order and appends its profile as one slot.
// All files must share one pressure-level axis.
func LoadPoints(paths []string) (domain.Sounding, error) {
	if len(paths) == 0 {
		return domain.Sounding{}, errors.New("no point files to load")
	}

	var out domain.Sounding
	for _, path := range paths {
		s, err := LoadPoint(path)
		if err != nil {
			return domain.Sounding{}, err
		}
		if out, err = out.Append(s); err != nil {
			return domain.Sounding{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	return out, nil
}

// LoadPoint reads a single retrieved point file.
func LoadPoint(path string) (domain.Sounding, error) {
	g, err := native.Open(path)
	if err != nil {
		return domain.Sounding{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer g.Close()

	s, err := readPoint(g, path)
	if err != nil {
		return domain.Sounding{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func readPoint(g api.Group, path string) (domain.Sounding, error) {
	timeVar, err := firstVariable(g, timeNames)
	if err != nil {
		return domain.Sounding{}, err
	}
	times, err := decodeTimes(timeVar)
	if err != nil {
		return domain.Sounding{}, fmt.Errorf("time coordinate: %w", err)
	}

	lats, err := coordinate(g, "latitude")
	if err != nil {
		return domain.Sounding{}, err
	}
	lons, err := coordinate(g, "longitude")
	if err != nil {
		return domain.Sounding{}, err
	}
	if len(lats) != 1 || len(lons) != 1 || len(times) != 1 {
		return domain.Sounding{}, fmt.Errorf("%w: %d latitudes, %d longitudes, %d times",
			ErrNotAPoint, len(lats), len(lons), len(times))
	}

	levelVar, err := firstVariable(g, levelNames)
	if err != nil {
		return domain.Sounding{}, err
	}
	levels, err := flatten(levelVar.Values)
	if err != nil {
		return domain.Sounding{}, fmt.Errorf("level coordinate: %w", err)
	}

	slot := domain.Slot{
		Source: path,
		Time:   times[0],
		Lat:    lats[0],
		Lon:    lons[0],
	}
	fields := []*[]float64{&slot.Temperature, &slot.Geopotential, &slot.U, &slot.V, &slot.Humidity}
	for i, name := range rawFields {
		v, err := g.GetVariable(name)
		if err != nil {
			return domain.Sounding{}, fmt.Errorf("variable %s: %w", name, err)
		}
		vals, err := unpack(v)
		if err != nil {
			return domain.Sounding{}, fmt.Errorf("variable %s: %w", name, err)
		}
		*fields[i] = vals
	}

	if slot.Member, err = optionalInt(g, "number"); err != nil {
		return domain.Sounding{}, err
	}
	if slot.ExpVer, err = optionalInt(g, "expver"); err != nil {
		return domain.Sounding{}, err
	}

	s := domain.Sounding{Levels: levels, Slots: []domain.Slot{slot}, CarryOver: true}
	if err := s.Validate(); err != nil {
		return domain.Sounding{}, err
	}
	return s, nil
}

func firstVariable(g api.Group, names []string) (*api.Variable, error) {
	for _, name := range names {
		if v, err := g.GetVariable(name); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("none of the coordinates %v present", names)
}

func coordinate(g api.Group, name string) ([]float64, error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("coordinate %s: %w", name, err)
	}
	vals, err := flatten(v.Values)
	if err != nil {
		return nil, fmt.Errorf("coordinate %s: %w", name, err)
	}
	return vals, nil
}

func optionalInt(g api.Group, name string) (int, error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return 0, nil
	}
	n, err := intValue(v.Values)
	if err != nil {
		return 0, fmt.Errorf("variable %s: %w", name, err)
	}
	return n, nil
}
