package models

// ErrorResponse is the body of a failed air quality query.
type ErrorResponse struct {
	Error string `json:"error"`
}
