// Package geodist computes great-circle distances between WGS84 coordinates.
package geodist

import (
	"math"

	"github.com/fieldsafe/hazard-engine/internal/model"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between two
// latitude/longitude pairs in degrees.
func Haversine(a, b model.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Between returns the distance between two optional coordinate pairs.
// When either side is missing the distance is undefined and the second
// return value is false; callers must skip distance-dependent factors
// rather than treat the distance as zero.
func Between(a, b *model.Coordinates) (float64, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	return Haversine(*a, *b), true
}
