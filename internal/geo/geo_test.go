package geo

import (
	"testing"

	"github.com/mmcloughlin/geohash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urbanflow/internal/report"
)

func TestValidateFingerprint(t *testing.T) {
	loc := report.Location{Lat: 12.9716, Lng: 77.5946} // Bengaluru
	hash := geohash.EncodeWithPrecision(loc.Lat, loc.Lng, 7)

	require.NoError(t, ValidateFingerprint(report.GeoFingerprint{Location: loc, Geohash: hash}))

	// Uppercase input is normalized before comparing.
	require.NoError(t, ValidateFingerprint(report.GeoFingerprint{Location: loc, Geohash: "  " + hash + " "}))

	err := ValidateFingerprint(report.GeoFingerprint{Location: loc, Geohash: "tdr1f00"})
	assert.Error(t, err)

	err = ValidateFingerprint(report.GeoFingerprint{Location: loc})
	assert.Error(t, err)

	err = ValidateFingerprint(report.GeoFingerprint{
		Location: report.Location{Lat: 91, Lng: 0}, Geohash: hash,
	})
	assert.Error(t, err)
}

func TestValidateFingerprintPrecision(t *testing.T) {
	loc := report.Location{Lat: 12.9716, Lng: 77.5946}

	// The hash is checked at its own precision, so both coarse and fine
	// hashes of the same point validate.
	for _, precision := range []uint{5, 6, 7, 9} {
		hash := geohash.EncodeWithPrecision(loc.Lat, loc.Lng, precision)
		assert.NoError(t, ValidateFingerprint(report.GeoFingerprint{Location: loc, Geohash: hash}))
	}
}
