// internal/geo/geo_test.go
//
// Unit-tests for haversine distance.
//
// Run: go test ./internal/geo -v

package geo

import (
	"math"
	"testing"
)

func TestDistance_ZeroForSamePoint(t *testing.T) {
	p := Point{Latitude: 38.71387, Longitude: -9.122271}
	if d := Distance(p, p); d != 0 {
		t.Fatalf("expected 0 km, got %f", d)
	}
}

func TestDistance_KnownCityPair(t *testing.T) {
	// Berlin Hbf to Hamburg Hbf is roughly 255 km great-circle.
	berlin := Point{Latitude: 52.525592, Longitude: 13.369545}
	hamburg := Point{Latitude: 53.552736, Longitude: 10.006909}

	d := Distance(berlin, hamburg)
	if d < 250 || d > 260 {
		t.Fatalf("Berlin-Hamburg distance out of range: %f km", d)
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a := Point{Latitude: 48.8566, Longitude: 2.3522}
	b := Point{Latitude: 41.3851, Longitude: 2.1734}

	if d1, d2 := Distance(a, b), Distance(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", d1, d2)
	}
}

func TestDistance_AntimeridianNeighbours(t *testing.T) {
	// Points straddling the ±180 meridian are still close in reality.
	a := Point{Latitude: 0, Longitude: 179.9}
	b := Point{Latitude: 0, Longitude: -179.9}

	if d := Distance(a, b); d > 25 {
		t.Fatalf("antimeridian neighbours too far apart: %f km", d)
	}
}
