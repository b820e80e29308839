// Package nominatim provides a geocoding client for the OpenStreetMap Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ecosensor/ecosensor/internal/geocode"
	"github.com/ecosensor/ecosensor/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the public Nominatim endpoint.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultLanguage matches the language the layer catalog uses for city names.
	DefaultLanguage = "it"

	// ProviderName identifies this provider.
	ProviderName = "nominatim"

	defaultUserAgent = "ecosensor/1.0"
)

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// Language is sent as accept-language (defaults to DefaultLanguage).
	Language string

	// UserAgent identifies the application, as required by the usage policy.
	UserAgent string

	// HTTPClient is the HTTP client to use.
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a Nominatim API client. It returns at most one place per lookup.
type Client struct {
	baseURL    string
	language   string
	userAgent  string
	httpClient HTTPDoer
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	language := cfg.Language
	if language == "" {
		language = DefaultLanguage
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
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
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		language:   language,
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

type placeData struct {
	DisplayName string      `json:"display_name"`
	Lat         string      `json:"lat"`
	Lon         string      `json:"lon"`
	Address     addressData `json:"address"`
}

type addressData struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	State        string `json:"state"`
	Country      string `json:"country"`
}

// Forward looks up the best place for a free-text query.
func (c *Client) Forward(ctx context.Context, text string) (*geocode.Place, error) {
	params := c.params()
	params.Set("q", text)
	params.Set("limit", "1")

	var results []placeData
	if err := c.get(ctx, "/search", params, &results); err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}
	if len(results) == 0 {
		return nil, geocode.ErrNoMatch
	}
	return toPlace(&results[0]), nil
}

// Reverse looks up the place at a geographic position.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*geocode.Place, error) {
	params := c.params()
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("zoom", "18")

	var result struct {
		placeData
		Error string `json:"error"`
	}
	if err := c.get(ctx, "/reverse", params, &result); err != nil {
		return nil, fmt.Errorf("reverse %f,%f: %w", lat, lng, err)
	}
	// Nominatim answers 200 with an error field when nothing is found.
	if result.Error != "" || result.DisplayName == "" {
		return nil, geocode.ErrNoMatch
	}
	return toPlace(&result.placeData), nil
}

func (c *Client) params() url.Values {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("accept-language", c.language)
	return params
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// toPlace converts a Nominatim result to a Place.
func toPlace(p *placeData) *geocode.Place {
	lat, _ := strconv.ParseFloat(p.Lat, 64)
	lng, _ := strconv.ParseFloat(p.Lon, 64)

	return &geocode.Place{
		Label:        p.DisplayName,
		Municipality: municipality(&p.Address),
		Region:       p.Address.State,
		Country:      p.Address.Country,
		Lat:          lat,
		Lng:          lng,
	}
}

// municipality picks the most specific settlement name Nominatim reports.
func municipality(a *addressData) string {
	for _, name := range []string{a.City, a.Town, a.Village, a.Municipality} {
		if name != "" {
			return name
		}
	}
	return ""
}
