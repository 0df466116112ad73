package domain

import (
	"errors"
	"math"
)

const (
	// KelvinOffset converts between Kelvin and degrees Celsius.
	KelvinOffset = 273.15
	// StandardGravity in m s⁻², used to turn geopotential into height.
	StandardGravity = 9.80665
	// KnotsPerMeterPerSecond converts m s⁻¹ to knots.
	KnotsPerMeterPerSecond = 1.94384
)

// RenamedFields maps the archive's short variable names to the column names
// used by the sounding tables.
var RenamedFields = map[string]string{
	"t": "temperature",
	"z": "gpt_height",
	"u": "u_wind",
	"v": "v_wind",
	"q": "sp_humidity",
}

// ErrAlreadyDerived is returned when Derive is applied twice to a sounding.
var ErrAlreadyDerived = errors.New("sounding already derived")

// KelvinToCelsius converts a temperature in K to °C.
func KelvinToCelsius(k float64) float64 {
	return k - KelvinOffset
}

// GeopotentialHeight converts geopotential in m² s⁻² to height in m.
func GeopotentialHeight(z float64) float64 {
	return z / StandardGravity
}

// VaporPressure returns the partial pressure of water vapour in hPa for
// specific humidity q (kg kg⁻¹) at pressure p (hPa).
func VaporPressure(q, p float64) float64 {
	return (q * p) / (0.622 + 0.378*q)
}

// DewPoint returns the dew point in °C for specific humidity q (kg kg⁻¹)
// at pressure p (hPa).
func DewPoint(q, p float64) float64 {
	lnE := math.Log(VaporPressure(q, p) / 6.112)
	return (243.5 * lnE) / (17.67 - lnE)
}

// WindSpeedKnots returns the magnitude of (u, v) in knots.
func WindSpeedKnots(u, v float64) float64 {
	return math.Sqrt(u*u+v*v) * KnotsPerMeterPerSecond
}

// WindDirection returns atan2(v, u) in degrees rotated by 180° into [0, 360).
func WindDirection(u, v float64) float64 {
	return math.Mod(math.Atan2(v, u)*(180/math.Pi)+180, 360)
}

// Derive returns a copy of s with temperature in °C and the altitude, dew
// point, wind speed and wind direction fields filled in. Each value depends
// only on the same (slot, level) element of the inputs.
func Derive(s Sounding) (Sounding, error) {
	if s.Derived {
		return Sounding{}, ErrAlreadyDerived
	}
	if err := s.Validate(); err != nil {
		return Sounding{}, err
	}

	out := s
	out.Levels = append([]float64(nil), s.Levels...)
	out.Slots = make([]Slot, len(s.Slots))
	for i, slot := range s.Slots {
		out.Slots[i] = deriveSlot(slot, s.Levels)
	}
	out.Derived = true
	return out, nil
}

func deriveSlot(slot Slot, levels []float64) Slot {
	n := len(levels)
	d := slot
	d.Temperature = make([]float64, n)
	d.Geopotential = append([]float64(nil), slot.Geopotential...)
	d.U = append([]float64(nil), slot.U...)
	d.V = append([]float64(nil), slot.V...)
	d.Humidity = append([]float64(nil), slot.Humidity...)
	d.Altitude = make([]float64, n)
	d.DewPoint = make([]float64, n)
	d.WindSpeed = make([]float64, n)
	d.WindDirection = make([]float64, n)

	for k, p := range levels {
		d.Temperature[k] = KelvinToCelsius(slot.Temperature[k])
		d.Altitude[k] = GeopotentialHeight(slot.Geopotential[k])
		d.DewPoint[k] = DewPoint(slot.Humidity[k], p)
		d.WindSpeed[k] = WindSpeedKnots(slot.U[k], slot.V[k])
		d.WindDirection[k] = WindDirection(slot.U[k], slot.V[k])
	}
	return d
}
