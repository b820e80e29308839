package handler_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ecosensor/ecosensor/internal/airquality"
	"github.com/ecosensor/ecosensor/internal/provider/resilience"
)

// fakeService records the selector it was called with and returns canned answers.
type fakeService struct {
	result *airquality.Result
	qe     *airquality.QueryError
	layers []airquality.Layer
	err    error

	called string
	lat    float64
	lng    float64
	arg    string
	city   string
}

func (f *fakeService) ResolveByCoordinates(_ context.Context, lat, lng float64) (*airquality.Result, *airquality.QueryError) {
	f.called, f.lat, f.lng = "coordinates", lat, lng
	return f.result, f.qe
}

func (f *fakeService) ResolveByCity(_ context.Context, name string) (*airquality.Result, *airquality.QueryError) {
	f.called, f.arg = "city", name
	return f.result, f.qe
}

func (f *fakeService) ResolveByQuery(_ context.Context, text string) (*airquality.Result, *airquality.QueryError) {
	f.called, f.arg = "query", text
	return f.result, f.qe
}

func (f *fakeService) Resolve(_ context.Context, q airquality.Query) (*airquality.Result, *airquality.QueryError) {
	f.called = "empty"
	if q.Point == nil && q.City == "" && q.Text == "" {
		return nil, &airquality.QueryError{
			Kind:    airquality.ErrInvalidQuery,
			Message: "Please provide either latitude and longitude, city name or query",
		}
	}
	return f.result, f.qe
}

func (f *fakeService) Layers(_ context.Context, city string) ([]airquality.Layer, error) {
	f.city = city
	return f.layers, f.err
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// trippedClient registers a provider whose circuit opened after one failure.
func trippedClient(registry *resilience.Registry, name string) *resilience.Client {
	cb := resilience.DefaultCircuitBreakerConfig(name)
	cb.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 }
	cb.Timeout = time.Hour

	client := resilience.NewClient(resilience.ClientConfig{
		Name:           name,
		CircuitBreaker: &cb,
		Registry:       registry,
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}),
	})

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://upstream.invalid/", http.NoBody)
	if resp, err := client.Do(req); err == nil {
		resp.Body.Close()
	}
	return client
}
