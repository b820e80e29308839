package models

// Layer is a monitoring layer of the catalog.
type Layer struct {
	CityName           string `json:"cityName"`
	EntityKey          string `json:"entityKey"`
	TypeMonitoringData any    `json:"typeMonitoringData,omitempty"`
}

// LayerList is the response of the layer catalog endpoint.
type LayerList struct {
	Items []Layer  `json:"items"`
	Meta  ListMeta `json:"meta"`
}

// ListMeta describes a list response.
type ListMeta struct {
	Count int    `json:"count"`
	City  string `json:"city,omitempty"`
}
