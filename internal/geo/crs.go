// Package geo provides coordinate reference system handling and planar
// distance helpers for GeoJSON geometries.
package geo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// ErrInvalidCRS is returned when a CRS identifier is not recognized.
var ErrInvalidCRS = errors.New("invalid coordinate reference system")

// CRS identifies a coordinate reference system.
type CRS string

const (
	// WGS84 is the geographic lon/lat system (degrees).
	WGS84 CRS = "EPSG:4326"

	// WebMercator is the spherical pseudo-Mercator system (meters) used by web maps.
	WebMercator CRS = "EPSG:3857"
)

// Geographic and Projected are the default source and target systems.
const (
	Geographic = WGS84
	Projected  = WebMercator
)

var aliases = map[string]CRS{
	"EPSG:4326":   WGS84,
	"WGS84":       WGS84,
	"CRS:84":      WGS84,
	"EPSG:3857":   WebMercator,
	"EPSG:900913": WebMercator,
	"EPSG:3785":   WebMercator,
	"WEBMERCATOR": WebMercator,
}

// ParseCRS normalizes a CRS identifier such as "epsg:3857" or "WGS84".
func ParseCRS(s string) (CRS, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if crs, ok := aliases[key]; ok {
		return crs, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCRS, s)
}

// Valid reports whether c is a supported system.
func (c CRS) Valid() bool {
	_, err := ParseCRS(string(c))
	return err == nil
}

// Project converts p from one system to another. Points are x/y ordered,
// so geographic points are {lng, lat}.
func Project(p orb.Point, from, to CRS) (orb.Point, error) {
	src, err := ParseCRS(string(from))
	if err != nil {
		return orb.Point{}, err
	}
	dst, err := ParseCRS(string(to))
	if err != nil {
		return orb.Point{}, err
	}

	switch {
	case src == dst:
		return p, nil
	case src == WGS84 && dst == WebMercator:
		return project.Point(p, project.WGS84.ToMercator), nil
	default:
		return project.Point(p, project.Mercator.ToWGS84), nil
	}
}

// ToGeographic converts p from the given system to {lng, lat}.
func ToGeographic(p orb.Point, from CRS) (orb.Point, error) {
	return Project(p, from, Geographic)
}
