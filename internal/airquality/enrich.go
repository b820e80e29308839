package airquality

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/ecosensor/ecosensor/internal/geo"
	"github.com/ecosensor/ecosensor/internal/geocode"
)

// ReverseGeocoder resolves a geographic position to a place.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (*geocode.Place, error)
}

// Enricher attaches reverse-geocoded locations to records.
type Enricher struct {
	geocoder  ReverseGeocoder
	recordCRS geo.CRS
}

// NewEnricher creates an enricher for records whose coordinates are expressed in recordCRS.
func NewEnricher(geocoder ReverseGeocoder, recordCRS geo.CRS) (*Enricher, error) {
	if recordCRS == "" {
		recordCRS = geo.Projected
	}
	if !recordCRS.Valid() {
		return nil, fmt.Errorf("%w: record crs %q", geo.ErrInvalidCRS, recordCRS)
	}
	return &Enricher{geocoder: geocoder, recordCRS: recordCRS}, nil
}

// Locate returns a copy of r with its location attached. Records without
// coordinates, or whose coordinates match no place, are returned unchanged.
func (e *Enricher) Locate(ctx context.Context, r Record) (Record, error) {
	if r.Lat == nil || r.Lng == nil {
		return r, nil
	}

	p, err := geo.ToGeographic(orb.Point{*r.Lng, *r.Lat}, e.recordCRS)
	if err != nil {
		return r, err
	}

	place, err := e.geocoder.Reverse(ctx, p.Lat(), p.Lon())
	if errors.Is(err, geocode.ErrNoMatch) {
		return r, nil
	}
	if err != nil {
		return r, fmt.Errorf("reverse geocode record %s: %w", r.Date, err)
	}

	r.Location = place
	return r, nil
}

// LocateAll locates every record, preserving order.
func (e *Enricher) LocateAll(ctx context.Context, records []Record) ([]Record, error) {
	located := make([]Record, len(records))
	for i := range records {
		r, err := e.Locate(ctx, records[i])
		if err != nil {
			return nil, err
		}
		located[i] = r
	}
	return located, nil
}

// FilterByWindow filters records like the package-level function and locates
// the survivors.
func (e *Enricher) FilterByWindow(ctx context.Context, records []Record, now time.Time, w Window) ([]Record, error) {
	kept, err := FilterByWindow(records, now, w)
	if err != nil {
		return nil, err
	}
	return e.LocateAll(ctx, kept)
}
