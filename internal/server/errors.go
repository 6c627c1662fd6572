// Provides helpers for writing JSON responses and mapping domain errors.

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nutrilog/nutrilog/internal/diary"
	"github.com/nutrilog/nutrilog/internal/verdb"
)

type errorResponse struct {
	Error errorDetails `json:"error"`
}

type errorDetails struct {
	Message string `json:"message"`
}

// writeError maps domain errors onto status codes: invalid input is a client
// error, an unknown instance is 404, everything else (storage, codec) is a
// server error and gets logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case errors.Is(err, diary.ErrInvalid):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, verdb.ErrInstanceNotFound):
		status = http.StatusNotFound
		message = err.Error()
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: errorDetails{Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
