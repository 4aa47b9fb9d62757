package geospatial

import (
	"math"
	"testing"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// Central Park to Brooklyn Bridge Park, roughly 9.5 km
	d := Haversine(40.7831, -73.9712, 40.7003, -73.9967)
	if d < 9000 || d > 9600 {
		t.Errorf("expected ~9.5km, got %.0fm", d)
	}
}

func TestHaversine_SamePoint(t *testing.T) {
	if d := Haversine(40.0, -74.0, 40.0, -74.0); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestPathLength(t *testing.T) {
	path := []domain.Coordinate{{Lat: 40.0, Lng: -74.0}, {Lat: 40.05, Lng: -74.05}, {Lat: 40.1, Lng: -74.1}}
	want := Distance(path[0], path[1]) + Distance(path[1], path[2])
	if got := PathLength(path); math.Abs(got-want) > 1e-6 {
		t.Errorf("expected %f, got %f", want, got)
	}
	if got := PathLength(path[:1]); got != 0 {
		t.Errorf("single point path should be 0, got %f", got)
	}
}
