package domain

import (
	"errors"
	"fmt"
	"time"
)

// Slot holds the profile retrieved in one file: a single point at a single
// analysis hour, one value per pressure level in each field.
type Slot struct {
	Source string // path of the file the slot was loaded from
	Time   time.Time
	Lat    float64
	Lon    float64

	// Carried over from the archive and dropped before flattening.
	Member int // ensemble member number
	ExpVer int // experiment version, 1 for final ERA5, 5 for ERA5T

	Temperature  []float64 // K before Derive, °C after
	Geopotential []float64 // m² s⁻²
	U            []float64 // m s⁻¹
	V            []float64 // m s⁻¹
	Humidity     []float64 // kg kg⁻¹

	Altitude      []float64 // m
	DewPoint      []float64 // °C
	WindSpeed     []float64 // kn
	WindDirection []float64 // degrees
}

// Sounding is a collection of point profiles sharing one pressure-level axis,
// indexed by file rather than by coordinate value.
type Sounding struct {
	Levels []float64 // hPa
	Slots  []Slot

	Derived   bool
	CarryOver bool // Member and ExpVer are meaningful
}

var errLevelMismatch = errors.New("field length does not match pressure levels")

// Validate checks that every raw field in every slot spans the level axis.
func (s Sounding) Validate() error {
	n := len(s.Levels)
	if n == 0 {
		return errors.New("sounding has no pressure levels")
	}
	for i, slot := range s.Slots {
		fields := []struct {
			name string
			vals []float64
		}{
			{"t", slot.Temperature},
			{"z", slot.Geopotential},
			{"u", slot.U},
			{"v", slot.V},
			{"q", slot.Humidity},
		}
		for _, f := range fields {
			if len(f.vals) != n {
				return fmt.Errorf("slot %d (%s) field %s: %w: got %d, want %d",
					i, slot.Source, f.name, errLevelMismatch, len(f.vals), n)
			}
		}
	}
	return nil
}

// DropCarryOver returns a copy without the ensemble member and experiment
// version.
func (s Sounding) DropCarryOver() Sounding {
	out := s
	out.Slots = make([]Slot, len(s.Slots))
	for i, slot := range s.Slots {
		slot.Member = 0
		slot.ExpVer = 0
		out.Slots[i] = slot
	}
	out.CarryOver = false
	return out
}

// Append adds the slots of other to s. Both must share the same level axis.
func (s Sounding) Append(other Sounding) (Sounding, error) {
	if len(s.Slots) == 0 && len(s.Levels) == 0 {
		return other, nil
	}
	if !equalLevels(s.Levels, other.Levels) {
		return Sounding{}, fmt.Errorf("pressure levels differ: %v vs %v", s.Levels, other.Levels)
	}
	out := s
	out.Slots = append(append([]Slot(nil), s.Slots...), other.Slots...)
	out.CarryOver = s.CarryOver && other.CarryOver
	return out, nil
}

func equalLevels(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
