// Package server exposes the food diary over a small JSON HTTP API.
//
// The handlers are thin glue: they decode the payload, call the matching
// diary service, and map domain errors onto status codes. No versioning
// logic lives here.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nutrilog/nutrilog/internal/diary"
	"github.com/nutrilog/nutrilog/internal/server/ratelimit"
)

// Services bundles the domain services the handlers depend on.
type Services struct {
	Entries *diary.EntryService
	Foods   *diary.FoodService
}

// NewRouter builds the HTTP handler tree. A nil limits config disables rate
// limiting (used by tests).
func NewRouter(svc *Services, limits *ratelimit.Config) http.Handler {
	h := &handler{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.health)
	mux.HandleFunc("GET /api/debug", h.debug)

	mux.HandleFunc("POST /api/v1/entries", h.createEntry)
	mux.HandleFunc("GET /api/v1/entries", h.listEntries)
	mux.HandleFunc("GET /api/v1/entries/schema", h.entrySchema)
	mux.HandleFunc("PUT /api/v1/entries/{id}", h.updateEntry)
	mux.HandleFunc("GET /api/v1/entries/{id}/history", h.entryHistory)

	mux.HandleFunc("POST /api/v1/foods", h.createFood)
	mux.HandleFunc("GET /api/v1/foods", h.listFoods)
	mux.HandleFunc("GET /api/v1/foods/schema", h.foodSchema)
	mux.HandleFunc("PUT /api/v1/foods/{id}", h.updateFood)
	mux.HandleFunc("GET /api/v1/foods/{id}/history", h.foodHistory)

	return ratelimit.Middleware(limits, logRequests(mux))
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.InfoContext(r.Context(), "http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"dur", time.Since(start).Round(time.Millisecond))
	})
}
