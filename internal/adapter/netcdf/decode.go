package netcdf

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// flatten converts the Values of a variable, scalar or nested slice of any
// numeric type, into a flat []float64 in storage order.
func flatten(values any) ([]float64, error) {
	var out []float64
	if err := appendValues(&out, reflect.ValueOf(values)); err != nil {
		return nil, err
	}
	return out, nil
}

func appendValues(out *[]float64, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			if err := appendValues(out, v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		*out = append(*out, float64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		*out = append(*out, float64(v.Uint()))
	case reflect.Float32, reflect.Float64:
		*out = append(*out, v.Float())
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return errors.New("nil value")
		}
		return appendValues(out, v.Elem())
	default:
		return fmt.Errorf("unsupported value type %s", v.Type())
	}
	return nil
}

// attrFloat returns a numeric attribute. Attributes may be stored as a scalar
// or a one-element array.
func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	vals, err := flatten(raw)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func attrString(attrs api.AttributeMap, key string) string {
	if attrs == nil {
		return ""
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return s
}

// unpack decodes a packed variable: fill and missing values become NaN, then
// scale_factor and add_offset are applied.
func unpack(v *api.Variable) ([]float64, error) {
	vals, err := flatten(v.Values)
	if err != nil {
		return nil, err
	}
	fill, hasFill := attrFloat(v.Attributes, "_FillValue")
	missing, hasMissing := attrFloat(v.Attributes, "missing_value")
	scale, hasScale := attrFloat(v.Attributes, "scale_factor")
	offset, _ := attrFloat(v.Attributes, "add_offset")
	if !hasScale {
		scale = 1
	}

	for i, x := range vals {
		switch {
		case math.IsNaN(x):
		case hasFill && x == fill, hasMissing && x == missing:
			vals[i] = math.NaN()
		default:
			vals[i] = x*scale + offset
		}
	}
	return vals, nil
}

// decodeTimes converts a CF time coordinate ("<unit> since <epoch>") to UTC
// times rounded to the second.
func decodeTimes(v *api.Variable) ([]time.Time, error) {
	unit, epoch, err := parseTimeUnits(attrString(v.Attributes, "units"))
	if err != nil {
		return nil, err
	}
	vals, err := flatten(v.Values)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(vals))
	for i, x := range vals {
		out[i] = epoch.Add(time.Duration(x * float64(unit))).Round(time.Second)
	}
	return out, nil
}

func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	name, since, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}

	var unit time.Duration
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "seconds", "second", "secs", "s":
		unit = time.Second
	case "minutes", "minute", "mins", "min":
		unit = time.Minute
	case "hours", "hour", "hrs", "h":
		unit = time.Hour
	case "days", "day", "d":
		unit = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", name)
	}

	since = strings.TrimSuffix(strings.TrimSpace(since), "UTC")
	since = strings.TrimSuffix(strings.TrimSpace(since), "Z")
	since = strings.TrimSpace(since)
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if epoch, err := time.ParseInLocation(layout, since, time.UTC); err == nil {
			return unit, epoch, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("unsupported time epoch %q", since)
}

// intValue reads the first element of a small integer variable such as the
// ensemble member or the experiment version. ERA5 stores expver as text
// ("0001") in current files and as a number in older ones.
func intValue(values any) (int, error) {
	switch v := values.(type) {
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	case []string:
		if len(v) == 0 {
			return 0, errors.New("empty value")
		}
		return strconv.Atoi(strings.TrimSpace(v[0]))
	}
	vals, err := flatten(values)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, errors.New("empty value")
	}
	return int(vals[0]), nil
}
