// Package geo validates the duplicate-detection key. A submission's location
// always travels with a geohash computed by the caller; this package verifies
// the two agree before the pair is trusted anywhere downstream. Neighbor-cell
// expansion and distance filtering happen inside the record store's locality
// check, not here.
package geo

import (
	"fmt"
	"strings"

	"github.com/mmcloughlin/geohash"

	"urbanflow/internal/report"
)

// ValidateFingerprint checks that the geohash encodes the fingerprint's
// coordinates at the geohash's own precision.
func ValidateFingerprint(fp report.GeoFingerprint) error {
	hash := strings.ToLower(strings.TrimSpace(fp.Geohash))
	if hash == "" {
		return fmt.Errorf("geohash is empty")
	}
	if fp.Location.Lat < -90 || fp.Location.Lat > 90 {
		return fmt.Errorf("latitude out of range: %f", fp.Location.Lat)
	}
	if fp.Location.Lng < -180 || fp.Location.Lng > 180 {
		return fmt.Errorf("longitude out of range: %f", fp.Location.Lng)
	}

	expected := geohash.EncodeWithPrecision(fp.Location.Lat, fp.Location.Lng, uint(len(hash)))
	if expected != hash {
		return fmt.Errorf("geohash %q does not match location (expected %q)", hash, expected)
	}
	return nil
}
