package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/soyeahso/voicehook/internal/registry"
	"github.com/soyeahso/voicehook/internal/store"
	"github.com/soyeahso/voicehook/internal/version"
	"github.com/soyeahso/voicehook/internal/webhook"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// CachesResponse is returned by GET /caches.
type CachesResponse struct {
	Uptime     string               `json:"uptime"`
	Tools      []registry.EntryInfo `json:"tools"`
	Functions  []registry.EntryInfo `json:"functions"`
	Dispatcher *DispatcherStats     `json:"dispatcher,omitempty"`
	Listeners  int                  `json:"listeners"`
}

// DispatcherStats reports the callback queue counters.
type DispatcherStats struct {
	Pending   int   `json:"pending"`
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
}

// ClearResponse is returned by /clear-caches.
type ClearResponse struct {
	Tools     int `json:"tools"`
	Functions int `json:"functions"`
}

// ReportsResponse is returned by GET /reports.
type ReportsResponse struct {
	Total   int            `json:"total"`
	Reports []store.Report `json:"reports"`
}

const defaultReportLimit = 50

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "pong")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorShape{Error: "not found", Path: r.URL.Path})
}

// handleWebhook serves one application's callback endpoint.
func (s *Server) handleWebhook(app *webhook.Application) http.Handler {
	log := s.log.With("app", app.Name)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !checkSecret(app.Secret, s.cfg.SecretHeader, r) {
			log.Warn().Str("remote", r.RemoteAddr).Msg("webhook secret mismatch")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, ErrorShape{Error: "request body too large"})
				return
			}
			writeJSON(w, http.StatusBadRequest, ErrorShape{Error: "reading body: " + err.Error()})
			return
		}

		resp, err := s.router.Handle(r.Context(), app, body)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, ErrorShape{Error: err.Error()})
			return
		}

		if raw, ok := resp.(json.RawMessage); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(raw)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func (s *Server) handleCaches(w http.ResponseWriter, r *http.Request) {
	resp := CachesResponse{
		Uptime:    s.uptime().Round(time.Second).String(),
		Tools:     s.router.Tools().Snapshot(),
		Functions: s.router.Functions().Snapshot(),
	}
	if s.dispatcher != nil {
		resp.Dispatcher = &DispatcherStats{
			Pending:   s.dispatcher.Pending(),
			Delivered: s.dispatcher.Delivered(),
			Dropped:   s.dispatcher.Dropped(),
		}
	}
	if s.events != nil {
		resp.Listeners = s.events.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearCaches(w http.ResponseWriter, r *http.Request) {
	resp := ClearResponse{
		Tools:     s.router.Tools().Clear(),
		Functions: s.router.Functions().Clear(),
	}
	s.log.Info().Int("tools", resp.Tools).Int("functions", resp.Functions).Msg("caches cleared")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeJSON(w, http.StatusNotFound, ErrorShape{Error: "reports are disabled", Path: r.URL.Path})
		return
	}

	limit := defaultReportLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorShape{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	reports, err := s.reports.List(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorShape{Error: err.Error()})
		return
	}
	total, err := s.reports.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorShape{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ReportsResponse{Total: total, Reports: reports})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusNotFound, ErrorShape{Error: "event stream is disabled", Path: r.URL.Path})
		return
	}
	s.events.ServeHTTP(w, r)
}
