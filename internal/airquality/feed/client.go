// Package feed fetches the layer catalog, the feature set descriptors and the
// GeoJSON feature collections of the air quality feed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/ecosensor/ecosensor/internal/airquality"
	"github.com/ecosensor/ecosensor/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL of the air quality feed.
	DefaultBaseURL = "https://d17kn6fj50jzfv.cloudfront.net/air_quality"

	// ProviderName identifies this provider.
	ProviderName = "feed"

	layersPath      = "layers.json"
	descriptorsPath = "map.json"
)

// ClientConfig holds configuration for the feed client.
type ClientConfig struct {
	// BaseURL is the feed base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual requests (default: 10s).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client reads the air quality feed.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new feed client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

type featureCollectionDoc struct {
	Features []featureDoc `json:"features"`
}

type featureDoc struct {
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties struct {
		Data []airquality.Record `json:"Data"`
	} `json:"properties"`
}

// FetchLayers retrieves the layer catalog.
func (c *Client) FetchLayers(ctx context.Context) ([]airquality.Layer, error) {
	var layers []airquality.Layer
	if err := c.get(ctx, layersPath, &layers); err != nil {
		return nil, fmt.Errorf("fetch layers: %w", err)
	}
	return layers, nil
}

// FetchDescriptors retrieves every feature set descriptor.
func (c *Client) FetchDescriptors(ctx context.Context) ([]airquality.FeatureSetDescriptor, error) {
	var descriptors []airquality.FeatureSetDescriptor
	if err := c.get(ctx, descriptorsPath, &descriptors); err != nil {
		return nil, fmt.Errorf("fetch descriptors: %w", err)
	}
	return descriptors, nil
}

// FetchFeatureCollection retrieves the feature collection at ref, which is
// either relative to the base URL or absolute.
func (c *Client) FetchFeatureCollection(ctx context.Context, ref string) ([]airquality.Feature, error) {
	var doc featureCollectionDoc
	if err := c.get(ctx, ref, &doc); err != nil {
		return nil, fmt.Errorf("fetch feature collection %s: %w", ref, err)
	}

	features := make([]airquality.Feature, 0, len(doc.Features))
	for i := range doc.Features {
		f := airquality.Feature{Records: doc.Features[i].Properties.Data}
		if g := doc.Features[i].Geometry; g != nil {
			f.Geometry = g.Geometry()
		}
		features = append(features, f)
	}
	return features, nil
}

// URL resolves a document reference against the base URL.
func (c *Client) URL(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return c.baseURL + "/" + strings.TrimPrefix(ref, "/")
}

func (c *Client) get(ctx context.Context, ref string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(ref), http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
