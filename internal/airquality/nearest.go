package airquality

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/ecosensor/ecosensor/internal/geo"
)

// NearestFeature returns the feature whose geometry is closest to ref, or nil
// when features is empty. When convertCRS is set, ref is a geographic point and
// is projected into featureCRS first. Ties keep the earliest feature.
func NearestFeature(ref orb.Point, features []Feature, convertCRS bool, featureCRS geo.CRS) (*Feature, error) {
	if len(features) == 0 {
		return nil, nil
	}

	if convertCRS {
		projected, err := geo.Project(ref, geo.Geographic, featureCRS)
		if err != nil {
			return nil, err
		}
		ref = projected
	}

	var nearest *Feature
	best := math.Inf(1)
	for i := range features {
		d := geo.DistanceTo(features[i].Geometry, ref)
		if d < best {
			best = d
			nearest = &features[i]
		}
	}

	return nearest, nil
}
