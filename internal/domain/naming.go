package domain

import (
	"fmt"
	"strings"
)

// Glob patterns matching the point-stage outputs.
const (
	TornadoFilePattern = "era5_*.nc"
	RandomFilePattern  = "random_*.nc"
)

// SanitizeTimestamp makes a catalog timestamp safe for file names:
// "2021-07-04 14:00:00" -> "2021-07-04_140000".
func SanitizeTimestamp(raw string) string {
	return strings.ReplaceAll(strings.ReplaceAll(raw, ":", ""), " ", "_")
}

// PointFileName names the file retrieved at an event's own coordinates.
func PointFileName(index int, rawTime string) string {
	return fmt.Sprintf("era5_%d_%s.nc", index, SanitizeTimestamp(rawTime))
}

// RandomFileName names the file retrieved for the sample-th random point of
// an event. Both indexes are 1-based.
func RandomFileName(index, sample int, rawTime string) string {
	return fmt.Sprintf("random_%d_%d_%s.nc", index, sample, SanitizeTimestamp(rawTime))
}

// GridFileName names the Germany grid file for an event time.
func GridFileName(rawTime string) string {
	return fmt.Sprintf("era5_germany_%s.nc", SanitizeTimestamp(rawTime))
}
