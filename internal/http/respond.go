package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"smartspend/internal/ai"
	"smartspend/internal/core"
)

// apiResponse is the uniform envelope for every /api endpoint.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed",
			"url", r.URL.Path,
			"error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := apiResponse{Success: false, Error: err.Error()}
	if status >= 500 {
		// Internal details stay in the logs.
		body.Error = "internal server error"
	}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		slog.Error("Failed to encode error response", "error", encErr)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ai.ErrNotReceipt):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrExternalService):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidInterval),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
