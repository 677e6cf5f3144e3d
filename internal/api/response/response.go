// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/api/middleware"
	"github.com/stuartshay/pwsh-azure-health-sub000/internal/api/models"
)

// JSON writes a JSON response with the given status code. Includes
// X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// BadRequest writes a 400 response with an {error} body.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	JSON(w, r, http.StatusBadRequest, models.ErrorResponse{Error: message})
}

// InternalError writes a 500 response with an {error, details} body. The
// details must already be sanitized by the caller.
func InternalError(w http.ResponseWriter, r *http.Request, message, details string) {
	JSON(w, r, http.StatusInternalServerError, models.ErrorResponse{Error: message, Details: details})
}

// ServiceUnavailable writes a 503 response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, message string) {
	JSON(w, r, http.StatusServiceUnavailable, models.ErrorResponse{Error: message})
}

// TooManyRequests writes a 429 response with a Retry-After hint.
func TooManyRequests(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Retry-After", "60")
	JSON(w, r, http.StatusTooManyRequests, models.ErrorResponse{Error: message})
}
