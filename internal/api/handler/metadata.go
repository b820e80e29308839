package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/ecosensor/ecosensor/internal/airquality"
	"github.com/ecosensor/ecosensor/internal/api/models"
	"github.com/ecosensor/ecosensor/internal/api/response"
)

// LayerCatalog lists monitoring layers.
type LayerCatalog interface {
	Layers(ctx context.Context, city string) ([]airquality.Layer, error)
}

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct {
	catalog LayerCatalog
}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler(catalog LayerCatalog) *MetadataHandler {
	return &MetadataHandler{catalog: catalog}
}

// ListLayers handles GET /v1/metadata/layers - the monitoring layer catalog,
// optionally restricted with ?city=.
func (h *MetadataHandler) ListLayers(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))

	layers, err := h.catalog.Layers(r.Context(), city)
	if err != nil {
		response.QueryFailed(w, r, airquality.AsQueryError(err))
		return
	}

	items := make([]models.Layer, 0, len(layers))
	for i := range layers {
		items = append(items, models.Layer{
			CityName:           layers[i].CityName,
			EntityKey:          layers[i].EntityKey,
			TypeMonitoringData: layers[i].TypeMonitoringData,
		})
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, models.LayerList{
		Items: items,
		Meta:  models.ListMeta{Count: len(items), City: city},
	})
}
