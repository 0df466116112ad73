// Package sounding reads and writes the flattened sounding tables.
package sounding

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/era5-sounding/internal/domain"
	"github.com/jszwec/csvutil"
)

// WriteTable writes rows as CSV with a header row and no index column. The
// file appears at path only once it is complete.
func WriteTable(path string, rows []domain.ProfileRow) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	bw := bufio.NewWriter(tmp)
	if err := encode(bw, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move table into place: %w", err)
	}
	return nil
}

func encode(w *bufio.Writer, rows []domain.ProfileRow) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	enc.Register(formatFloat)

	if err := enc.EncodeHeader(domain.ProfileRow{}); err != nil {
		return err
	}
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatFloat writes the shortest exact representation and leaves missing
// values empty.
func formatFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) {
		return nil, nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}
