package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecosensor/ecosensor/internal/airquality"
	"github.com/ecosensor/ecosensor/internal/airquality/feed"
	"github.com/ecosensor/ecosensor/internal/provider/resilience"
)

const layersJSON = `[
	{"cityName": "Roma", "entityKey": "RM1", "typeMonitoringData": 0, "label": "Qualità dell'aria"},
	{"cityName": "Roma", "entityKey": "RM-TRAFFIC", "typeMonitoringData": 1}
]`

const mapJSON = `[
	{"entityKey": "RM1", "data": "roma/no2.json", "center": [1389523.28, 5145338.68]},
	{"entityKey": "RM1", "data": "roma/pm10.json"},
	{"entityKey": "MI1", "data": "milano/no2.json"}
]`

const featureCollectionJSON = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [1389000.5, 5145000.25]},
			"properties": {
				"Data": [
					{"Date": "2024-05-01T10:00:00Z", "Pollution": "NO2", "Value": 31.5, "Lat": 5145000.25, "Lng": 1389000.5},
					{"Date": "2024-05-01T13:00:00Z", "Pollution": "NO2", "Value": 40}
				]
			}
		},
		{
			"type": "Feature",
			"geometry": {"type": "Polygon", "coordinates": [[[0, 0], [10, 0], [10, 10], [0, 10], [0, 0]]]},
			"properties": {"Data": []}
		},
		{
			"type": "Feature",
			"geometry": null,
			"properties": {"Data": [{"Date": "2024-05-01T10:00:00Z", "Pollution": "O3", "Value": 80}]}
		}
	]
}`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/air_quality/layers.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(layersJSON))
	})
	mux.HandleFunc("/air_quality/map.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(mapJSON))
	})
	mux.HandleFunc("/air_quality/roma/no2.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(featureCollectionJSON))
	})
	mux.HandleFunc("/elsewhere/pm10.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type": "FeatureCollection", "features": []}`))
	})
	mux.HandleFunc("/air_quality/broken.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type": "FeatureCollection", "features": [`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newClient(server *httptest.Server) *feed.Client {
	return feed.NewClient(feed.ClientConfig{
		BaseURL:    server.URL + "/air_quality/",
		HTTPClient: server.Client(),
	})
}

func TestClient_FetchLayers(t *testing.T) {
	client := newClient(newFeedServer(t))

	layers, err := client.FetchLayers(context.Background())
	require.NoError(t, err)
	require.Len(t, layers, 2)

	assert.Equal(t, "Roma", layers[0].CityName)
	assert.Equal(t, "RM1", layers[0].EntityKey)
	assert.Equal(t, "Qualità dell'aria", layers[0].Attributes["label"])
	assert.True(t, airquality.DefaultLayerFilter().Matches(&layers[0]))
	assert.False(t, airquality.DefaultLayerFilter().Matches(&layers[1]))
}

func TestClient_FetchDescriptors(t *testing.T) {
	client := newClient(newFeedServer(t))

	descriptors, err := client.FetchDescriptors(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, 3)

	assert.Equal(t, "roma/no2.json", descriptors[0].DataRef)
	require.NotNil(t, descriptors[0].Center)
	assert.Equal(t, orb.Point{1389523.28, 5145338.68}, *descriptors[0].Center)
	assert.Nil(t, descriptors[1].Center)
	assert.Equal(t, "MI1", descriptors[2].EntityKey)
}

func TestClient_FetchFeatureCollection(t *testing.T) {
	client := newClient(newFeedServer(t))

	features, err := client.FetchFeatureCollection(context.Background(), "roma/no2.json")
	require.NoError(t, err)
	require.Len(t, features, 3)

	assert.Equal(t, orb.Point{1389000.5, 5145000.25}, features[0].Geometry)
	require.Len(t, features[0].Records, 2)
	assert.Equal(t, airquality.PollutantNO2, features[0].Records[0].Pollution)
	assert.Equal(t, 31.5, features[0].Records[0].Value)
	require.NotNil(t, features[0].Records[0].Lat)
	assert.Equal(t, 5145000.25, *features[0].Records[0].Lat)
	assert.Nil(t, features[0].Records[1].Lat)

	_, isPolygon := features[1].Geometry.(orb.Polygon)
	assert.True(t, isPolygon)
	assert.Empty(t, features[1].Records)

	assert.Nil(t, features[2].Geometry)
	assert.Len(t, features[2].Records, 1)
}

func TestClient_FetchFeatureCollection_FeedsNearestFeature(t *testing.T) {
	client := newClient(newFeedServer(t))

	features, err := client.FetchFeatureCollection(context.Background(), "roma/no2.json")
	require.NoError(t, err)

	nearest, err := airquality.NearestFeature(orb.Point{12.4823, 41.8955}, features, true, "EPSG:3857")
	require.NoError(t, err)
	assert.Same(t, &features[0], nearest)

	current, err := airquality.FilterByWindow(nearest.Records, time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), airquality.NowWindow)
	require.NoError(t, err)
	assert.Len(t, current, 1)
}

func TestClient_AbsoluteReference(t *testing.T) {
	server := newFeedServer(t)
	client := newClient(server)

	features, err := client.FetchFeatureCollection(context.Background(), server.URL+"/elsewhere/pm10.json")
	require.NoError(t, err)
	assert.Empty(t, features)
	assert.Equal(t, server.URL+"/elsewhere/pm10.json", client.URL(server.URL+"/elsewhere/pm10.json"))
	assert.Equal(t, server.URL+"/air_quality/map.json", client.URL("/map.json"))
}

func TestClient_Errors(t *testing.T) {
	client := newClient(newFeedServer(t))

	_, err := client.FetchFeatureCollection(context.Background(), "missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")

	_, err = client.FetchFeatureCollection(context.Background(), "broken.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_ResilientDefault(t *testing.T) {
	server := newFeedServer(t)
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig(feed.ProviderName)
	cfg.Registry = registry

	client := feed.NewClient(feed.ClientConfig{
		BaseURL:    server.URL + "/air_quality",
		HTTPClient: resilience.NewClient(cfg),
	})

	_, err := client.FetchLayers(context.Background())
	require.NoError(t, err)

	health := registry.GetHealth(feed.ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
}
