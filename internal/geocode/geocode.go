// Package geocode defines the place model returned by geocoding providers.
package geocode

import "errors"

// ErrNoMatch is returned when a lookup yields no place.
var ErrNoMatch = errors.New("no matching place")

// Place is the best match of a forward or reverse geocoding lookup.
type Place struct {
	Label        string  `json:"Label"`
	Municipality string  `json:"Municipality"`
	Region       string  `json:"Region,omitempty"`
	Country      string  `json:"Country,omitempty"`
	Lat          float64 `json:"Lat"`
	Lng          float64 `json:"Lng"`
}
