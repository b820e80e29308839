package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DistanceTo returns the minimum planar distance between p and g in the units
// of their common CRS. Points inside a polygon are at distance zero.
// A nil geometry is infinitely far away.
func DistanceTo(g orb.Geometry, p orb.Point) float64 {
	if g == nil {
		return math.Inf(1)
	}

	switch geom := g.(type) {
	case orb.Polygon:
		if planar.PolygonContains(geom, p) {
			return 0
		}
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(geom, p) {
			return 0
		}
	case orb.Bound:
		if geom.Contains(p) {
			return 0
		}
	case orb.Collection:
		best := math.Inf(1)
		for _, child := range geom {
			if d := DistanceTo(child, p); d < best {
				best = d
			}
		}
		return best
	}

	return planar.DistanceFrom(g, p)
}
