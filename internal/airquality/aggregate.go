package airquality

import (
	"context"
	"time"
)

// AggregatorConfig configures the forecast peak computation.
type AggregatorConfig struct {
	Window       Window
	WithLocation bool
	Enricher     *Enricher
}

// DefaultAggregatorConfig returns the forecast window with location enrichment on.
func DefaultAggregatorConfig(enricher *Enricher) AggregatorConfig {
	return AggregatorConfig{
		Window:       ForecastWindow,
		WithLocation: true,
		Enricher:     enricher,
	}
}

// Aggregator picks the peak reading of a forecast window.
type Aggregator struct {
	window       Window
	withLocation bool
	enricher     *Enricher
}

// NewAggregator creates an aggregator. A zero window falls back to ForecastWindow.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Window.IsZero() {
		cfg.Window = ForecastWindow
	}
	return &Aggregator{
		window:       cfg.Window,
		withLocation: cfg.WithLocation && cfg.Enricher != nil,
		enricher:     cfg.Enricher,
	}
}

// Peak returns the highest qualifying reading across features, or nil when no
// record falls in the window.
//
// The first qualifying record fixes the pollutant: later records replace it only
// when they report the same pollutant with a strictly greater value.
func (a *Aggregator) Peak(ctx context.Context, features []Feature, now time.Time) (*Record, error) {
	var best *Record
	for i := range features {
		qualifying, err := FilterByWindow(features[i].Records, now, a.window)
		if err != nil {
			return nil, err
		}

		for j := range qualifying {
			r := qualifying[j]
			if best == nil || (r.Pollution == best.Pollution && r.Value > best.Value) {
				best = &r
			}
		}
	}

	if best == nil {
		return nil, nil
	}

	if a.withLocation && best.HasValidCoordinates() {
		located, err := a.enricher.Locate(ctx, *best)
		if err != nil {
			return nil, err
		}
		best = &located
	}

	return best, nil
}
