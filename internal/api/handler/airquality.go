// Package handler provides HTTP handlers for the ecosensor API.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ecosensor/ecosensor/internal/airquality"
	"github.com/ecosensor/ecosensor/internal/api/middleware"
	"github.com/ecosensor/ecosensor/internal/api/response"
)

// AirQualityService answers air quality queries.
type AirQualityService interface {
	ResolveByCoordinates(ctx context.Context, lat, lng float64) (*airquality.Result, *airquality.QueryError)
	ResolveByCity(ctx context.Context, name string) (*airquality.Result, *airquality.QueryError)
	ResolveByQuery(ctx context.Context, text string) (*airquality.Result, *airquality.QueryError)
	Resolve(ctx context.Context, q airquality.Query) (*airquality.Result, *airquality.QueryError)
}

// AirQualityHandler handles air quality queries.
type AirQualityHandler struct {
	service AirQualityService
	logger  zerolog.Logger
}

// NewAirQualityHandler creates a new AirQualityHandler.
func NewAirQualityHandler(service AirQualityService, logger zerolog.Logger) *AirQualityHandler {
	return &AirQualityHandler{service: service, logger: logger}
}

// GetAirQuality handles GET /v1/air-quality and GET /air-quality/.
// Exactly one selector is used, in order: lat and lng, city, q.
func (h *AirQualityHandler) GetAirQuality(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	var (
		result *airquality.Result
		qe     *airquality.QueryError
	)
	lat, lng := strings.TrimSpace(params.Get("lat")), strings.TrimSpace(params.Get("lng"))
	city, text := strings.TrimSpace(params.Get("city")), strings.TrimSpace(params.Get("q"))

	switch {
	case lat != "" && lng != "":
		latV, lngV, err := parseCoordinates(lat, lng)
		if err != nil {
			response.QueryFailed(w, r, err)
			return
		}
		result, qe = h.service.ResolveByCoordinates(ctx, latV, lngV)
	case city != "":
		result, qe = h.service.ResolveByCity(ctx, city)
	case text != "":
		result, qe = h.service.ResolveByQuery(ctx, text)
	default:
		result, qe = h.service.Resolve(ctx, airquality.Query{})
	}

	if qe != nil {
		status := response.StatusFor(qe)
		event := h.logger.Warn()
		if status >= http.StatusInternalServerError {
			event = h.logger.Error().Err(qe.Err)
		}
		event.
			Str("request_id", middleware.GetRequestID(ctx)).
			Int("status", status).
			Str("reason", qe.Message).
			Msg("air quality query failed")
		response.QueryFailed(w, r, qe)
		return
	}

	response.JSON(w, r, http.StatusOK, result)
}

func parseCoordinates(lat, lng string) (float64, float64, *airquality.QueryError) {
	latV, err := strconv.ParseFloat(lat, 64)
	if err != nil || latV < -90 || latV > 90 {
		return 0, 0, invalidParam("lat", lat)
	}
	lngV, err := strconv.ParseFloat(lng, 64)
	if err != nil || lngV < -180 || lngV > 180 {
		return 0, 0, invalidParam("lng", lng)
	}
	return latV, lngV, nil
}

func invalidParam(name, value string) *airquality.QueryError {
	return &airquality.QueryError{
		Kind:    airquality.ErrInvalidQuery,
		Message: "Invalid value for " + name + ": " + strconv.Quote(value),
	}
}
