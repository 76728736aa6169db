package api

import (
	"encoding/json"
	"net/http"
)

// Response status values. Frontends branch on these rather than on prose.
const (
	statusSuccess       = "success"
	statusFound         = "found"
	statusNotFound      = "not_found"
	statusExpired       = "expired"
	statusUnauthorized  = "unauthorized"
	statusForbidden     = "forbidden"
	statusUpstreamError = "upstream_error"
	statusError         = "error"
)

// apiResponse is the envelope for every authenticated API response.
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeEnvelope(w http.ResponseWriter, httpStatus int, status, message string, data any) {
	writeJSON(w, httpStatus, apiResponse{Status: status, Message: message, Data: data})
}
