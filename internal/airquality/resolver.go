package airquality

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ecosensor/ecosensor/internal/geocode"
)

// Geocoder resolves free text and positions to places.
type Geocoder interface {
	Forward(ctx context.Context, text string) (*geocode.Place, error)
	ReverseGeocoder
}

// Catalog lists the monitoring layers.
type Catalog interface {
	FetchLayers(ctx context.Context) ([]Layer, error)
}

// LayerResolver maps a position, city or query to its monitoring layer.
type LayerResolver struct {
	catalog  Catalog
	geocoder Geocoder
	filter   LayerFilter
	logger   zerolog.Logger
}

// NewLayerResolver creates a resolver selecting layers that pass filter.
func NewLayerResolver(catalog Catalog, geocoder Geocoder, filter LayerFilter, logger zerolog.Logger) *LayerResolver {
	return &LayerResolver{
		catalog:  catalog,
		geocoder: geocoder,
		filter:   filter,
		logger:   logger,
	}
}

// ByCoordinates reverse geocodes the position and returns the layer of its municipality.
func (r *LayerResolver) ByCoordinates(ctx context.Context, lat, lng float64) (*Layer, *geocode.Place, error) {
	notFound := func() error {
		return notFoundError("No data available for this coordinates [%s, %s]", formatCoordinate(lat), formatCoordinate(lng))
	}

	place, err := r.geocoder.Reverse(ctx, lat, lng)
	if errors.Is(err, geocode.ErrNoMatch) {
		return nil, nil, notFound()
	}
	if err != nil {
		return nil, nil, upstreamError("reverse geocoding", err)
	}

	layer, err := r.match(ctx, place.Municipality)
	if err != nil {
		return nil, nil, err
	}
	if layer == nil {
		return nil, place, notFound()
	}
	return layer, place, nil
}

// ByCity returns the layer whose city name equals name.
func (r *LayerResolver) ByCity(ctx context.Context, name string) (*Layer, error) {
	layer, err := r.match(ctx, name)
	if err != nil {
		return nil, err
	}
	if layer == nil {
		return nil, notFoundError("No data available for this city [%s]", name)
	}
	return layer, nil
}

// ByQuery forward geocodes text and returns the layer of the matched municipality.
func (r *LayerResolver) ByQuery(ctx context.Context, text string) (*Layer, *geocode.Place, error) {
	place, err := r.geocoder.Forward(ctx, text)
	if errors.Is(err, geocode.ErrNoMatch) {
		return nil, nil, notFoundError("No data available for this query [%s]", text)
	}
	if err != nil {
		return nil, nil, upstreamError("geocoding", err)
	}

	layer, err := r.match(ctx, place.Municipality)
	if err != nil {
		return nil, nil, err
	}
	if layer == nil {
		return nil, place, notFoundError("No data available for this query [%s]", text)
	}
	return layer, place, nil
}

// Layers lists the layers passing the filter, optionally restricted to a city.
func (r *LayerResolver) Layers(ctx context.Context, city string) ([]Layer, error) {
	layers, err := r.catalog.FetchLayers(ctx)
	if err != nil {
		return nil, upstreamError("fetching layers", err)
	}

	matched := make([]Layer, 0, len(layers))
	for i := range layers {
		if !r.filter.Matches(&layers[i]) {
			continue
		}
		if city != "" && layers[i].CityName != city {
			continue
		}
		matched = append(matched, layers[i])
	}
	return matched, nil
}

func (r *LayerResolver) match(ctx context.Context, city string) (*Layer, error) {
	if city == "" {
		return nil, nil
	}

	layers, err := r.catalog.FetchLayers(ctx)
	if err != nil {
		return nil, upstreamError("fetching layers", err)
	}

	for i := range layers {
		if layers[i].CityName == city && r.filter.Matches(&layers[i]) {
			r.logger.Debug().
				Str("city", city).
				Str("entity_key", layers[i].EntityKey).
				Msg("layer resolved")
			return &layers[i], nil
		}
	}
	return nil, nil
}
