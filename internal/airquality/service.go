package airquality

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ecosensor/ecosensor/internal/geo"
)

const tracerName = "github.com/ecosensor/ecosensor/internal/airquality"

const defaultConcurrency = 4

// Feed serves the layer catalog, the descriptor list and the feature collections.
type Feed interface {
	Catalog

	// FetchDescriptors returns every feature set descriptor of the feed.
	FetchDescriptors(ctx context.Context) ([]FeatureSetDescriptor, error)

	// FetchFeatureCollection downloads the document a descriptor points to.
	FetchFeatureCollection(ctx context.Context, ref string) ([]Feature, error)
}

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Feed is the source of layers, descriptors and feature collections.
	Feed Feed

	// Geocoder resolves query positions and enriches peak readings.
	Geocoder Geocoder

	// Logger for service operations.
	Logger zerolog.Logger

	// LayerFilter selects catalog layers (default: typeMonitoringData == "0").
	LayerFilter *LayerFilter

	// FeatureCRS is the system of feature geometries (default: EPSG:3857).
	FeatureCRS geo.CRS

	// RecordCRS is the system of record coordinates (default: EPSG:3857).
	RecordCRS geo.CRS

	// NowWindow and ForecastWindow default to the package windows.
	NowWindow      Window
	ForecastWindow Window

	// DisableLocation turns off reverse geocoding of forecast peaks.
	DisableLocation bool

	// Concurrency bounds the descriptors processed at once (default: 4).
	Concurrency int

	// Now returns the reference instant of a query (default: time.Now).
	Now func() time.Time
}

// Service answers air quality queries.
type Service struct {
	feed        Feed
	resolver    *LayerResolver
	aggregator  *Aggregator
	logger      zerolog.Logger
	tracer      trace.Tracer
	featureCRS  geo.CRS
	nowWindow   Window
	concurrency int
	now         func() time.Time
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) (*Service, error) {
	featureCRS := cfg.FeatureCRS
	if featureCRS == "" {
		featureCRS = geo.Projected
	}
	featureCRS, err := geo.ParseCRS(string(featureCRS))
	if err != nil {
		return nil, fmt.Errorf("feature crs: %w", err)
	}

	enricher, err := NewEnricher(cfg.Geocoder, cfg.RecordCRS)
	if err != nil {
		return nil, err
	}

	filter := DefaultLayerFilter()
	if cfg.LayerFilter != nil {
		filter = *cfg.LayerFilter
	}

	nowWindow := cfg.NowWindow
	if nowWindow.IsZero() {
		nowWindow = NowWindow
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		feed:     cfg.Feed,
		resolver: NewLayerResolver(cfg.Feed, cfg.Geocoder, filter, cfg.Logger),
		aggregator: NewAggregator(AggregatorConfig{
			Window:       cfg.ForecastWindow,
			WithLocation: !cfg.DisableLocation,
			Enricher:     enricher,
		}),
		logger:      cfg.Logger,
		tracer:      otel.Tracer(tracerName),
		featureCRS:  featureCRS,
		nowWindow:   nowWindow,
		concurrency: concurrency,
		now:         now,
	}, nil
}

// ResolveByCoordinates answers a query for a geographic position.
func (s *Service) ResolveByCoordinates(ctx context.Context, lat, lng float64) (*Result, *QueryError) {
	return s.Resolve(ctx, Query{Point: &Coordinates{Lat: lat, Lng: lng}})
}

// ResolveByCity answers a query for a city name.
func (s *Service) ResolveByCity(ctx context.Context, name string) (*Result, *QueryError) {
	return s.Resolve(ctx, Query{City: name})
}

// ResolveByQuery answers a free-text location query.
func (s *Service) ResolveByQuery(ctx context.Context, text string) (*Result, *QueryError) {
	return s.Resolve(ctx, Query{Text: text})
}

// Resolve runs q and flattens any failure into a QueryError.
func (s *Service) Resolve(ctx context.Context, q Query) (*Result, *QueryError) {
	result, err := s.Query(ctx, q)
	if err != nil {
		return nil, AsQueryError(err)
	}
	return result, nil
}

// Layers lists the monitoring layers, optionally restricted to a city.
func (s *Service) Layers(ctx context.Context, city string) ([]Layer, error) {
	return s.resolver.Layers(ctx, city)
}

// Query resolves the layer for q and merges the readings of its feature sets.
func (s *Service) Query(ctx context.Context, q Query) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "airquality.Query")
	defer span.End()

	result, err := s.query(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("airquality.now.count", len(result.Now)),
		attribute.Int("airquality.prediction.count", len(result.Prediction)),
		attribute.Int("airquality.omitted.count", len(result.Omitted)),
	)
	return result, nil
}

func (s *Service) query(ctx context.Context, q Query) (*Result, error) {
	now := s.now().UTC()

	var (
		layer *Layer
		ref   *orb.Point
		err   error
	)
	switch {
	case q.Point != nil:
		layer, _, err = s.resolver.ByCoordinates(ctx, q.Point.Lat, q.Point.Lng)
		p := q.Point.Point()
		ref = &p
	case q.City != "":
		layer, err = s.resolver.ByCity(ctx, q.City)
	case q.Text != "":
		var place *Coordinates
		layer, place, err = s.byQuery(ctx, q.Text)
		if place != nil {
			p := place.Point()
			ref = &p
		}
	default:
		return nil, &QueryError{
			Kind:    ErrInvalidQuery,
			Message: "Please provide either latitude and longitude, city name or query",
		}
	}
	if err != nil {
		return nil, err
	}

	descriptors, err := s.descriptors(ctx, layer.EntityKey)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("entity_key", layer.EntityKey).
		Int("descriptors", len(descriptors)).
		Msg("aggregating feature sets")

	return s.aggregate(ctx, descriptors, ref, now)
}

func (s *Service) byQuery(ctx context.Context, text string) (*Layer, *Coordinates, error) {
	layer, place, err := s.resolver.ByQuery(ctx, text)
	if err != nil {
		return nil, nil, err
	}
	return layer, &Coordinates{Lat: place.Lat, Lng: place.Lng}, nil
}

func (s *Service) descriptors(ctx context.Context, entityKey string) ([]FeatureSetDescriptor, error) {
	all, err := s.feed.FetchDescriptors(ctx)
	if err != nil {
		return nil, upstreamError("fetching feature set descriptors", err)
	}

	matched := make([]FeatureSetDescriptor, 0, len(all))
	for _, d := range all {
		if d.EntityKey == entityKey {
			matched = append(matched, d)
		}
	}
	return matched, nil
}

type contribution struct {
	now      []Record
	peak     *Record
	omission *Omission
}

func (s *Service) aggregate(ctx context.Context, descriptors []FeatureSetDescriptor, ref *orb.Point, now time.Time) (*Result, error) {
	contributions := make([]contribution, len(descriptors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, d := range descriptors {
		g.Go(func() error {
			current, peak, err := s.contribute(gctx, d, ref, now)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.Warn().
					Err(err).
					Str("data_ref", d.DataRef).
					Msg("omitting feature set")
				contributions[i].omission = &Omission{DataRef: d.DataRef, Reason: err.Error()}
				return nil
			}
			contributions[i] = contribution{now: current, peak: peak}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, upstreamError("aggregating feature sets", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, upstreamError("aggregating feature sets", err)
	}

	result := &Result{
		Now:        make([]Record, 0),
		Prediction: make([]Record, 0),
	}
	for _, c := range contributions {
		if c.omission != nil {
			result.Omitted = append(result.Omitted, *c.omission)
			continue
		}
		result.Now = append(result.Now, c.now...)
		if c.peak != nil {
			result.Prediction = append(result.Prediction, *c.peak)
		}
	}

	return result, nil
}

func (s *Service) contribute(ctx context.Context, d FeatureSetDescriptor, ref *orb.Point, now time.Time) ([]Record, *Record, error) {
	features, err := s.feed.FetchFeatureCollection(ctx, d.DataRef)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", d.DataRef, err)
	}

	var nearest *Feature
	switch {
	case ref != nil:
		nearest, err = NearestFeature(*ref, features, true, s.featureCRS)
	case d.Center != nil:
		nearest, err = NearestFeature(*d.Center, features, false, s.featureCRS)
	default:
		nearest = firstFeature(features)
	}
	if err != nil {
		return nil, nil, err
	}
	if nearest == nil {
		return nil, nil, ErrNoFeatures
	}

	current, err := FilterByWindow(nearest.Records, now, s.nowWindow)
	if err != nil {
		return nil, nil, err
	}

	peak, err := s.aggregator.Peak(ctx, []Feature{*nearest}, now)
	if err != nil {
		return nil, nil, err
	}

	return current, peak, nil
}

// firstFeature stands in for the nearest feature when there is no reference point.
func firstFeature(features []Feature) *Feature {
	for i := range features {
		if features[i].Geometry != nil {
			return &features[i]
		}
	}
	return nil
}
