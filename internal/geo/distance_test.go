package geo_test

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/ecosensor/ecosensor/internal/geo"
)

func square(minX, minY, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {minX + size, minY}, {minX + size, minY + size}, {minX, minY + size}, {minX, minY},
	}}
}

func TestDistanceTo_Point(t *testing.T) {
	d := geo.DistanceTo(orb.Point{3, 4}, orb.Point{0, 0})
	assert.InDelta(t, 5.0, d, 1e-9)
}

func TestDistanceTo_LineString(t *testing.T) {
	line := orb.LineString{{0, 10}, {10, 10}}
	d := geo.DistanceTo(line, orb.Point{5, 0})
	assert.InDelta(t, 10.0, d, 1e-9)
}

func TestDistanceTo_PolygonUsesNearestEdgeNotCentroid(t *testing.T) {
	poly := square(10, 0, 100) // centroid far away at (60, 50)
	d := geo.DistanceTo(poly, orb.Point{0, 50})
	assert.InDelta(t, 10.0, d, 1e-9)
}

func TestDistanceTo_PointInsidePolygon(t *testing.T) {
	poly := square(0, 0, 10)
	assert.Equal(t, 0.0, geo.DistanceTo(poly, orb.Point{5, 5}))

	multi := orb.MultiPolygon{square(100, 100, 1), poly}
	assert.Equal(t, 0.0, geo.DistanceTo(multi, orb.Point{2, 2}))
}

func TestDistanceTo_Collection(t *testing.T) {
	c := orb.Collection{orb.Point{100, 0}, square(0, 0, 10)}
	assert.InDelta(t, 5.0, geo.DistanceTo(c, orb.Point{15, 5}), 1e-9)
}

func TestDistanceTo_NilGeometry(t *testing.T) {
	assert.True(t, math.IsInf(geo.DistanceTo(nil, orb.Point{0, 0}), 1))
}
