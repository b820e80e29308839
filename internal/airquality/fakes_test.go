package airquality_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/ecosensor/ecosensor/internal/airquality"
	"github.com/ecosensor/ecosensor/internal/geocode"
)

var refNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func at(d time.Duration) string {
	return refNow.Add(d).Format(airquality.DateLayout)
}

func f64(v float64) *float64 {
	return &v
}

func monitoringLayer(city, key string) airquality.Layer {
	return airquality.Layer{CityName: city, EntityKey: key, TypeMonitoringData: float64(0)}
}

func pointFeature(x, y float64, records ...airquality.Record) airquality.Feature {
	return airquality.Feature{Geometry: orb.Point{x, y}, Records: records}
}

type fakeFeed struct {
	layers         []airquality.Layer
	layersErr      error
	descriptors    []airquality.FeatureSetDescriptor
	descriptorsErr error
	collections    map[string][]airquality.Feature
	collectionErrs map[string]error
	delays         map[string]time.Duration

	mu      sync.Mutex
	fetched []string
}

func (f *fakeFeed) FetchLayers(_ context.Context) ([]airquality.Layer, error) {
	return f.layers, f.layersErr
}

func (f *fakeFeed) FetchDescriptors(_ context.Context) ([]airquality.FeatureSetDescriptor, error) {
	return f.descriptors, f.descriptorsErr
}

func (f *fakeFeed) FetchFeatureCollection(ctx context.Context, ref string) ([]airquality.Feature, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, ref)
	f.mu.Unlock()

	if d, ok := f.delays[ref]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.collectionErrs[ref]; ok {
		return nil, err
	}
	features, ok := f.collections[ref]
	if !ok {
		return nil, errors.New("unexpected status 404")
	}
	return features, nil
}

type fakeGeocoder struct {
	forward    map[string]*geocode.Place
	forwardErr error
	reverse    func(lat, lng float64) (*geocode.Place, error)

	mu           sync.Mutex
	reverseCalls []orb.Point
}

func (g *fakeGeocoder) Forward(_ context.Context, text string) (*geocode.Place, error) {
	if g.forwardErr != nil {
		return nil, g.forwardErr
	}
	if place, ok := g.forward[text]; ok {
		return place, nil
	}
	return nil, geocode.ErrNoMatch
}

func (g *fakeGeocoder) Reverse(_ context.Context, lat, lng float64) (*geocode.Place, error) {
	g.mu.Lock()
	g.reverseCalls = append(g.reverseCalls, orb.Point{lng, lat})
	g.mu.Unlock()

	if g.reverse == nil {
		return nil, geocode.ErrNoMatch
	}
	return g.reverse(lat, lng)
}

func (g *fakeGeocoder) calls() []orb.Point {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]orb.Point(nil), g.reverseCalls...)
}

func placeIn(municipality string) func(lat, lng float64) (*geocode.Place, error) {
	return func(lat, lng float64) (*geocode.Place, error) {
		return &geocode.Place{
			Label:        municipality + ", Italia",
			Municipality: municipality,
			Country:      "Italia",
			Lat:          lat,
			Lng:          lng,
		}, nil
	}
}
