// internal/geo/geo.go
//
// Great-circle distance helpers.
//
// Context
// -------
// Search ranking needs true station-to-query distances.  The repository layer
// only performs a cheap rectangular prefilter; final ordering always goes
// through Distance() so nearest-first really means nearest-first.
//
// Notes
// -----
// • Haversine on a spherical Earth, radius 6371 km.
// • Oxford commas, two spaces after periods.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// Point is a latitude/longitude pair in plain degrees.  No datum or
// projection correction is applied anywhere in the service.
type Point struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// Distance returns the great-circle distance in kilometres between a and b.
//
// The full haversine formula is used rather than an equirectangular
// approximation; callers rely on its ordering being stable across platforms.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
