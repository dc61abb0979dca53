package server

import (
	"net/http"
	"slices"
	"time"
)

// ChainMiddleware wraps a handler with middleware, applied in reverse order
// so the first listed middleware runs outermost.
func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs every request with its status and duration.
func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

// RecoverMiddleware turns a handler panic into a 500 JSON response. Panics in
// the core service are already converted to InternalError results; this
// covers the transport layer itself.
func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("recovered from panic")
				writeJSON(w, http.StatusInternalServerError, errorBody{Type: "InternalError", Message: "internal error"})
			}
		}()
		next(w, r)
	}
}

// CorsMiddleware reflects the Origin header for origins known to the app
// registry. With origin checking disabled every origin is reflected, which
// matches the relaxed policy of the core service in that mode.
func (s *Server) CorsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (s.skipOriginCheck || s.originKnown(origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Set("Vary", "Origin")
		}
		next(w, r)
	}
}

func (s *Server) originKnown(origin string) bool {
	for _, app := range s.registry.Apps() {
		if app.Origin == origin || slices.Contains(app.AllowedOrigins, origin) {
			return true
		}
	}
	return false
}
