package resilience

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ecosensor/ecosensor/internal/provider/resilience"

// Metrics holds the instruments recorded for upstream provider calls.
type Metrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	retryTotal      metric.Int64Counter
}

// NewMetrics creates provider metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	retryTotal, err := meter.Int64Counter(
		"provider.request.retries",
		metric.WithDescription("Number of retried provider attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		retryTotal:      retryTotal,
	}, nil
}

// RecordRequest records one logical provider request.
func (m *Metrics) RecordRequest(provider string, status int, attempts int, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("http.status_code", strconv.Itoa(status)),
	}
	if err != nil || status >= 500 {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Metrics outlive the request, so its context is not used.
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if attempts > 1 {
		m.retryTotal.Add(ctx, int64(attempts-1), metric.WithAttributes(attribute.String("provider.name", provider)))
	}
}
