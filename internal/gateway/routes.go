package gateway

import (
	"net/http"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ping", handlePing)
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /version", handleVersion)

	mux.Handle("GET /caches", s.requireAdmin(http.HandlerFunc(s.handleCaches)))
	mux.Handle("GET /clear-caches", s.requireAdmin(http.HandlerFunc(s.handleClearCaches)))
	mux.Handle("POST /clear-caches", s.requireAdmin(http.HandlerFunc(s.handleClearCaches)))
	mux.Handle("GET /reports", s.requireAdmin(http.HandlerFunc(s.handleReports)))
	mux.Handle("GET /events", s.requireAdmin(http.HandlerFunc(s.handleEvents)))

	for _, app := range s.apps {
		mux.Handle("POST "+app.Path, s.handleWebhook(app))
		s.log.Debug().Str("app", app.Name).Str("path", app.Path).Msg("webhook mounted")
	}

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// requireAdmin rejects requests without the admin token and rate-limits
// repeated failures per remote host.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !s.authLimiter.allow(r.RemoteAddr) {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited: too many failed admin auth attempts")
			writeJSON(w, http.StatusTooManyRequests, ErrorShape{Error: "too many requests"})
			return
		}
		res := AuthorizeAdmin(s.adminToken, r)
		if !res.OK {
			s.authLimiter.recordFailure(r.RemoteAddr)
			s.log.Warn().Str("remote", r.RemoteAddr).Str("reason", res.Reason).Msg("admin auth failed")
			writeJSON(w, http.StatusUnauthorized, ErrorShape{Error: res.Reason})
			return
		}
		next.ServeHTTP(w, r)
	})
}
