// Package airquality resolves a point or city to its monitoring layer and
// aggregates the current and forecast pollutant readings nearest to it.
package airquality

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/ecosensor/ecosensor/internal/geocode"
)

// DateLayout is the fixed UTC timestamp format of reading dates.
const DateLayout = "2006-01-02T15:04:05Z"

// Pollutant identifies the pollutant a reading refers to.
type Pollutant string

const (
	PollutantNO2  Pollutant = "NO2"
	PollutantPM25 Pollutant = "PM25"
	PollutantPM10 Pollutant = "PM10"
	PollutantO3   Pollutant = "O3"
)

// Layer is a monitoring configuration scoped to a city or region.
type Layer struct {
	CityName           string `json:"cityName"`
	EntityKey          string `json:"entityKey"`
	TypeMonitoringData any    `json:"typeMonitoringData,omitempty"`

	// Attributes holds every field of the catalog entry, including the ones above.
	Attributes map[string]any `json:"-"`
}

// UnmarshalJSON keeps the raw catalog fields so layers can be filtered on any of them.
func (l *Layer) UnmarshalJSON(data []byte) error {
	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		return err
	}

	*l = Layer{
		CityName:           stringAttr(attrs["cityName"]),
		EntityKey:          stringAttr(attrs["entityKey"]),
		TypeMonitoringData: attrs["typeMonitoringData"],
		Attributes:         attrs,
	}
	return nil
}

// Attribute returns a catalog field by its JSON name.
func (l *Layer) Attribute(name string) (any, bool) {
	if v, ok := l.Attributes[name]; ok {
		return v, true
	}
	switch name {
	case "cityName":
		return l.CityName, true
	case "entityKey":
		return l.EntityKey, true
	case "typeMonitoringData":
		return l.TypeMonitoringData, l.TypeMonitoringData != nil
	}
	return nil, false
}

// LayerFilter is an equality predicate on a catalog field. Values compare by
// their string form, so a numeric code 0 matches "0". Layers lacking the field
// pass, and an empty Field matches all.
type LayerFilter struct {
	Field string
	Value string
}

// DefaultLayerFilter selects layers carrying air-quality monitoring data.
func DefaultLayerFilter() LayerFilter {
	return LayerFilter{Field: "typeMonitoringData", Value: "0"}
}

// Matches reports whether the layer satisfies the filter.
func (f LayerFilter) Matches(l *Layer) bool {
	if f.Field == "" {
		return true
	}
	v, ok := l.Attribute(f.Field)
	if !ok || v == nil {
		return true
	}
	return stringAttr(v) == f.Value
}

// FeatureSetDescriptor points to a GeoJSON document tied to a layer.
type FeatureSetDescriptor struct {
	EntityKey string `json:"entityKey"`
	DataRef   string `json:"data"`

	// Center is an optional fallback reference point, already in the feature CRS.
	Center *orb.Point `json:"center,omitempty"`
}

// Feature is a monitored geometry with its time series of readings.
type Feature struct {
	Geometry orb.Geometry
	Records  []Record
}

// Record is a single time-stamped pollutant reading.
type Record struct {
	Date      string    `json:"Date"`
	Pollution Pollutant `json:"Pollution"`
	Value     float64   `json:"Value"`
	Lat       *float64  `json:"Lat"`
	Lng       *float64  `json:"Lng"`

	// Location is attached by reverse geocoding; it is never part of the feed.
	Location *geocode.Place `json:"location,omitempty"`
}

// Time parses the reading date. Only the exact DateLayout form is accepted.
func (r *Record) Time() (time.Time, error) {
	t, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, err
	}
	if t.Format(DateLayout) != r.Date {
		return time.Time{}, fmt.Errorf("date %q does not match layout %s", r.Date, DateLayout)
	}
	return t, nil
}

// HasValidCoordinates reports whether both coordinates are present and strictly positive.
// Negative coordinates are rejected too, which excludes the southern and western
// hemispheres; readings are stored in a projected CRS covering Italy.
func (r *Record) HasValidCoordinates() bool {
	return r.Lat != nil && r.Lng != nil && *r.Lat > 0 && *r.Lng > 0
}

// Coordinates is a geographic position.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Point returns the position as an x/y point.
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// Query selects what to resolve. Exactly one selector is expected; when several
// are set, coordinates win over city and city over free text.
type Query struct {
	Point *Coordinates
	City  string
	Text  string
}

// Result is the merged reading set for a query.
type Result struct {
	Now        []Record   `json:"now"`
	Prediction []Record   `json:"prediction"`
	Omitted    []Omission `json:"omitted,omitempty"`
}

// Omission notes a descriptor whose contribution was left out of a Result.
type Omission struct {
	DataRef string `json:"dataRef"`
	Reason  string `json:"reason"`
}

func stringAttr(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
