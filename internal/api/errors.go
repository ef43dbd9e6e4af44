package api

import (
	"encoding/json"
	"net/http"

	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError maps a service error onto its HTTP status and renders the
// structured error body.
func respondError(w http.ResponseWriter, err error) {
	categorized := errors.Categorize(err)
	respondJSON(w, categorized.StatusCode, ErrorResponse{Error: *categorized.ToServiceError()})
}

// respondErrorCode sends an error response with an explicit status and code.
func respondErrorCode(w http.ResponseWriter, statusCode int, code, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: types.ServiceError{
		Code:    code,
		Message: message,
	}})
}

// parseJSONBody parses a JSON request body, rejecting unknown fields.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
