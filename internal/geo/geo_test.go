package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// Portland, OR -> Seattle, WA is roughly 233 km.
	portland := Point{Lat: 45.5152, Lng: -122.6734}
	seattle := Point{Lat: 47.6145, Lng: -122.3278}

	d := Haversine(portland, seattle)
	assert.InDelta(t, 233000, d, 15000, "expected ~233km between Portland and Seattle, got %fm", d)
}

func TestHaversine_ZeroDistance(t *testing.T) {
	p := Point{Lat: 10, Lng: 20}
	assert.InDelta(t, 0, Haversine(p, p), 0.001)
}

func TestBounds_Contains_NoWrap(t *testing.T) {
	b := Bounds{North: 10, South: -10, East: 20, West: -20}
	assert.True(t, b.Contains(Point{Lat: 0, Lng: 0}))
	assert.False(t, b.Contains(Point{Lat: 0, Lng: 30}))
	assert.False(t, b.Contains(Point{Lat: 20, Lng: 0}))
}

func TestBounds_Contains_Antimeridian(t *testing.T) {
	// S4 — Antimeridian bounds: west > east, wraps the seam.
	b := Bounds{North: 10, South: -10, West: 170, East: -170}
	require.True(t, b.CrossesAntimeridian())

	assert.True(t, b.Contains(Point{Lat: 0, Lng: 179}))
	assert.True(t, b.Contains(Point{Lat: 0, Lng: -179}))
	assert.False(t, b.Contains(Point{Lat: 0, Lng: 0}))
}

func TestBoundingBox_ContainsCenterWithinRadius(t *testing.T) {
	center := Point{Lat: 45.5152, Lng: -122.6734}
	radius := 5000.0 // 5km

	box := BoundingBox(center, radius)
	assert.True(t, box.Contains(center))

	// A point 0.05° (about 5.6km) north lies farther than the radius.
	far := Point{Lat: center.Lat + 0.05, Lng: center.Lng}
	require.Greater(t, Haversine(center, far), radius)
}

func TestBoundingBox_PoleCase(t *testing.T) {
	box := BoundingBox(Point{Lat: 89.9, Lng: 0}, 50000)
	assert.Equal(t, -180.0, box.West)
	assert.Equal(t, 180.0, box.East)
}

func TestBearing_Cardinal(t *testing.T) {
	north := Bearing(Point{Lat: 0, Lng: 0}, Point{Lat: 1, Lng: 0})
	assert.InDelta(t, 0, north, 1)
	assert.Equal(t, "N", CardinalDirection(north))

	east := Bearing(Point{Lat: 0, Lng: 0}, Point{Lat: 0, Lng: 1})
	assert.InDelta(t, 90, east, 1)
	assert.Equal(t, "E", CardinalDirection(east))
}

func TestUnitConversion(t *testing.T) {
	assert.InDelta(t, 1000, Kilometers.ToMeters(1), 0.0001)
	assert.InDelta(t, 1609.344, Miles.ToMeters(1), 0.0001)
	assert.InDelta(t, 1, Kilometers.FromMeters(1000), 0.0001)
}

func TestPlanarDistance_CloseToHaversineForShortRanges(t *testing.T) {
	a := Point{Lat: 45.5, Lng: -122.6}
	b := Point{Lat: 45.51, Lng: -122.61}

	h := Haversine(a, b)
	p := PlanarDistance(a, b)
	assert.Less(t, math.Abs(h-p), 5.0, "planar approximation should track Haversine closely over short distances")
}
