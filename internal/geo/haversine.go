// Package geo provides great-circle distance calculations for
// proximity-based scoring.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for Haversine distances.
const EarthRadiusKm = 6371.0

// Infinite is the sentinel distance returned when coordinates are missing.
// Any distance comparison against configured radii treats it as
// "farther than everything".
const Infinite = math.MaxFloat64

// Haversine returns the great-circle distance in kilometers between two
// latitude/longitude points on a sphere of radius EarthRadiusKm.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// HaversinePtr computes the distance between two optional coordinate
// pairs. If any coordinate is absent it returns Infinite, so callers can
// fall through to their "no location" behavior without a nil check per
// coordinate.
func HaversinePtr(lat1, lon1, lat2, lon2 *float64) float64 {
	if lat1 == nil || lon1 == nil || lat2 == nil || lon2 == nil {
		return Infinite
	}
	return Haversine(*lat1, *lon1, *lat2, *lon2)
}

// Known reports whether both halves of a coordinate pair are present.
func Known(lat, lon *float64) bool {
	return lat != nil && lon != nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
