// Package api exposes a small read-only HTTP surface for watching a
// migration run: the live progress tally and the per-entity reports.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/journalize/internal/migration"
)

type Handler struct {
	runner *migration.Runner
}

func NewHTTPHandler(runner *migration.Runner) http.Handler {
	return &Handler{runner: runner}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/progress"):
		h.handleProgress(w, r)
		return
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/report"):
		h.handleReport(w, r)
		return
	default:
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
}

func (h *Handler) handleProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.runner.Progress())
}

func (h *Handler) handleReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.runner.Report())
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// NewServer assembles the HTTP server with CORS and request logging.
func NewServer(addr string, allowedOrigins []string, runner *migration.Runner, logger *logrus.Logger) *http.Server {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	mux := http.NewServeMux()
	mux.Handle("/", LoggingMiddleware(logger)(corsHandler.Handler(NewHTTPHandler(runner))))

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
