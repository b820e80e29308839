package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecosensor/ecosensor/internal/api/handler"
	"github.com/ecosensor/ecosensor/internal/api/models"
	"github.com/ecosensor/ecosensor/internal/provider/resilience"
)

func TestHealthCheck(t *testing.T) {
	h := handler.NewOpsHandler("1.2.3", "2024-05-01", nil)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.2.3", details["version"])
	assert.Equal(t, "2024-05-01", details["buildTime"])
}

func TestReadinessCheck(t *testing.T) {
	registry := resilience.NewRegistry()
	h := handler.NewOpsHandler("dev", "unknown", registry)

	ready := func() int {
		rec := httptest.NewRecorder()
		h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, ready(), "no providers")

	resilience.NewClient(resilience.ClientConfig{Name: "geocoder", Registry: registry})
	trippedClient(registry, "feed")
	assert.Equal(t, http.StatusOK, ready(), "one provider still closed")

	trippedClient(registry, "geocoder")
	assert.Equal(t, http.StatusServiceUnavailable, ready(), "every circuit open")
}

func TestSystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "nominatim", Registry: registry})
	trippedClient(registry, "feed")
	h := handler.NewOpsHandler("dev", "unknown", registry)

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Status    models.HealthStatus `json:"status"`
		Providers []struct {
			Provider      string              `json:"provider"`
			Status        models.HealthStatus `json:"status"`
			CircuitState  string              `json:"circuitState"`
			Requests      uint32              `json:"requests"`
			Failures      uint32              `json:"failures"`
			LastFailureAt *string             `json:"lastFailureAt"`
			Message       *string             `json:"message"`
		} `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusFail, status.Status)
	require.Len(t, status.Providers, 2)

	feed := status.Providers[0]
	assert.Equal(t, "feed", feed.Provider)
	assert.Equal(t, models.HealthStatusFail, feed.Status)
	assert.Equal(t, "open", feed.CircuitState)
	assert.NotNil(t, feed.LastFailureAt)
	require.NotNil(t, feed.Message)
	assert.Contains(t, *feed.Message, "connection refused")

	nominatim := status.Providers[1]
	assert.Equal(t, "nominatim", nominatim.Provider)
	assert.Equal(t, models.HealthStatusOK, nominatim.Status)
	assert.Equal(t, "closed", nominatim.CircuitState)
	assert.Nil(t, nominatim.Message)
}
