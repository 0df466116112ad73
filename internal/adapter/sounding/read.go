package sounding

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"

	"github.com/couchcryptid/era5-sounding/internal/domain"
	"github.com/jszwec/csvutil"
)

// ErrUnexpectedHeader is returned when a table's columns differ from the
// ones WriteTable produces.
var ErrUnexpectedHeader = errors.New("unexpected table header")

// ReadTable reads a table written by WriteTable. Empty fields come back as NaN.
func ReadTable(path string) ([]domain.ProfileRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	rows, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func decode(r io.Reader) ([]domain.ProfileRow, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file is empty", ErrUnexpectedHeader)
		}
		return nil, err
	}
	want, err := csvutil.Header(domain.ProfileRow{}, "csv")
	if err != nil {
		return nil, err
	}
	if got := dec.Header(); !slices.Equal(got, want) {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedHeader, got)
	}
	dec.Register(parseFloat)

	var rows []domain.ProfileRow
	for {
		var row domain.ProfileRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return rows, nil
			}
			return nil, fmt.Errorf("line %d: %w", len(rows)+2, err)
		}
		rows = append(rows, row)
	}
}

func parseFloat(data []byte, f *float64) error {
	if len(data) == 0 {
		*f = math.NaN()
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = v
	return nil
}
