package netcdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	native "github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/couchcryptid/era5-sounding/internal/domain"
)

// Checkpoint dimensions and variable names.
const (
	dimPoint       = "point"
	dimLevel       = "pressure_level"
	varTime        = "valid_time"
	varLatitude    = "latitude"
	varLongitude   = "longitude"
	varMember      = "number"
	varExpVer      = "expver"
	timeUnits      = "seconds since 1970-01-01 00:00:00"
	checkpointConv = "CF-1.7"
)

// profileField names a per-level field of a slot in the checkpoint.
type profileField struct {
	name  string
	units string
	get   func(*domain.Slot) *[]float64
}

var profileFields = []profileField{
	{domain.RenamedFields["t"], "degC", func(s *domain.Slot) *[]float64 { return &s.Temperature }},
	{domain.RenamedFields["z"], "m**2 s**-2", func(s *domain.Slot) *[]float64 { return &s.Geopotential }},
	{domain.RenamedFields["u"], "m s**-1", func(s *domain.Slot) *[]float64 { return &s.U }},
	{domain.RenamedFields["v"], "m s**-1", func(s *domain.Slot) *[]float64 { return &s.V }},
	{domain.RenamedFields["q"], "kg kg**-1", func(s *domain.Slot) *[]float64 { return &s.Humidity }},
	{"altitude", "m", func(s *domain.Slot) *[]float64 { return &s.Altitude }},
	{"dew_point", "degC", func(s *domain.Slot) *[]float64 { return &s.DewPoint }},
	{"wind_speed", "knots", func(s *domain.Slot) *[]float64 { return &s.WindSpeed }},
	{"wind_direction", "degree", func(s *domain.Slot) *[]float64 { return &s.WindDirection }},
}

// WriteCheckpoint stores a derived sounding, including the ensemble member
// and experiment version, as a netCDF classic file at path. The file appears
// at path only once it is complete.
func WriteCheckpoint(path string, s domain.Sounding) error {
	if !s.Derived {
		return errors.New("checkpoint requires a derived sounding")
	}
	if len(s.Slots) == 0 {
		return errors.New("checkpoint requires at least one profile")
	}
	if err := s.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp := path + ".part"
	_ = os.Remove(tmp)
	if err := writeCheckpoint(tmp, s); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write checkpoint %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move checkpoint into place: %w", err)
	}
	return nil
}

type ncVar struct {
	name  string
	value any
	dims  []string
	units string
}

func writeCheckpoint(path string, s domain.Sounding) error {
	w, err := cdf.OpenWriter(path)
	if err != nil {
		return err
	}

	n := len(s.Slots)
	times := make([]float64, n)
	lats := make([]float64, n)
	lons := make([]float64, n)
	members := make([]int32, n)
	expvers := make([]int32, n)
	for i, slot := range s.Slots {
		times[i] = float64(slot.Time.Unix())
		lats[i] = slot.Lat
		lons[i] = slot.Lon
		members[i] = int32(slot.Member) //nolint:gosec // ensemble member numbers are small
		expvers[i] = int32(slot.ExpVer) //nolint:gosec // experiment versions are small
	}

	vars := []ncVar{
		{dimLevel, append([]float64(nil), s.Levels...), []string{dimLevel}, "hPa"},
		{varTime, times, []string{dimPoint}, timeUnits},
		{varLatitude, lats, []string{dimPoint}, "degrees_north"},
		{varLongitude, lons, []string{dimPoint}, "degrees_east"},
		{varMember, members, []string{dimPoint}, ""},
		{varExpVer, expvers, []string{dimPoint}, ""},
	}
	for _, f := range profileFields {
		grid := make([][]float64, n)
		for i := range s.Slots {
			grid[i] = *f.get(&s.Slots[i])
		}
		vars = append(vars, ncVar{f.name, grid, []string{dimPoint, dimLevel}, f.units})
	}

	for _, v := range vars {
		attrs, err := unitsAttr(v.units)
		if err != nil {
			_ = w.Close()
			return err
		}
		if err := w.AddVar(v.name, api.Variable{Values: v.value, Dimensions: v.dims, Attributes: attrs}); err != nil {
			_ = w.Close()
			return fmt.Errorf("add variable %s: %w", v.name, err)
		}
	}

	global, err := util.NewOrderedMap(
		[]string{"Conventions", "history"},
		map[string]any{
			"Conventions": checkpointConv,
			"history":     "derived sounding fields from ERA5 pressure-level point profiles",
		})
	if err != nil {
		_ = w.Close()
		return err
	}
	if err := w.AddGlobalAttrs(global); err != nil {
		_ = w.Close()
		return fmt.Errorf("add global attributes: %w", err)
	}
	return w.Close()
}

func unitsAttr(units string) (api.AttributeMap, error) {
	if units == "" {
		return util.NewOrderedMap(nil, map[string]any{})
	}
	return util.NewOrderedMap([]string{"units"}, map[string]any{"units": units})
}

// ReadCheckpoint reopens a checkpoint written by WriteCheckpoint.
func ReadCheckpoint(path string) (domain.Sounding, error) {
	g, err := native.Open(path)
	if err != nil {
		return domain.Sounding{}, fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	defer g.Close()

	s, err := readCheckpoint(g, path)
	if err != nil {
		return domain.Sounding{}, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	return s, nil
}

func readCheckpoint(g api.Group, path string) (domain.Sounding, error) {
	levels, err := coordinate(g, dimLevel)
	if err != nil {
		return domain.Sounding{}, err
	}
	timeVar, err := g.GetVariable(varTime)
	if err != nil {
		return domain.Sounding{}, fmt.Errorf("variable %s: %w", varTime, err)
	}
	times, err := decodeTimes(timeVar)
	if err != nil {
		return domain.Sounding{}, err
	}
	lats, err := coordinate(g, varLatitude)
	if err != nil {
		return domain.Sounding{}, err
	}
	lons, err := coordinate(g, varLongitude)
	if err != nil {
		return domain.Sounding{}, err
	}
	members, err := coordinate(g, varMember)
	if err != nil {
		return domain.Sounding{}, err
	}
	expvers, err := coordinate(g, varExpVer)
	if err != nil {
		return domain.Sounding{}, err
	}

	n := len(times)
	for _, c := range []struct {
		name string
		vals []float64
	}{{varLatitude, lats}, {varLongitude, lons}, {varMember, members}, {varExpVer, expvers}} {
		if len(c.vals) != n {
			return domain.Sounding{}, fmt.Errorf("variable %s has %d values, want %d", c.name, len(c.vals), n)
		}
	}

	slots := make([]domain.Slot, n)
	for i := range slots {
		slots[i] = domain.Slot{
			Source: path,
			Time:   times[i].In(time.UTC),
			Lat:    lats[i],
			Lon:    lons[i],
			Member: int(members[i]),
			ExpVer: int(expvers[i]),
		}
	}

	nl := len(levels)
	for _, f := range profileFields {
		vals, err := coordinate(g, f.name)
		if err != nil {
			return domain.Sounding{}, err
		}
		if len(vals) != n*nl {
			return domain.Sounding{}, fmt.Errorf("variable %s has %d values, want %d", f.name, len(vals), n*nl)
		}
		for i := range slots {
			*f.get(&slots[i]) = vals[i*nl : (i+1)*nl : (i+1)*nl]
		}
	}

	return domain.Sounding{Levels: levels, Slots: slots, Derived: true, CarryOver: true}, nil
}
