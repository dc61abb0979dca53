// Package server exposes the issuance protocol over HTTP with JSON bodies.
// It is a thin transport: handlers deserialize requests, hand them to the
// core service and serialize the typed result, mapping result kinds to HTTP
// status codes.
package server

import (
	"net/http"

	"github.com/etienne-dldc/lomasi/apps"
	"github.com/etienne-dldc/lomasi/core"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Server routes the protocol endpoints and owns the transport middleware.
type Server struct {
	mux      *http.ServeMux
	routes   []string
	registry *apps.Registry
	service  *core.Service
	metrics  *metrics
	logger   zerolog.Logger

	skipOriginCheck bool
}

// Option modifies the Server during construction.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSkipOriginCheck relaxes the CORS layer to mirror a core service built
// with the same flag.
func WithSkipOriginCheck(skip bool) Option {
	return func(s *Server) {
		s.skipOriginCheck = skip
	}
}

// New creates a Server for the given registry and core service.
func New(registry *apps.Registry, service *core.Service, options ...Option) (*Server, error) {
	if registry == nil {
		return nil, errors.New("[server.New] registry is required")
	}
	if service == nil {
		return nil, errors.New("[server.New] service is required")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		registry: registry,
		service:  service,
		metrics:  newMetrics(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// RegisterRouteFunc registers an extra handler on the server mux.
func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	api := s.apiMiddleware()
	s.RegisterRouteFunc("POST /login", ChainMiddleware(s.LoginHandler(), api...))
	s.RegisterRouteFunc("POST /authenticate", ChainMiddleware(s.AuthenticateHandler(), api...))
	s.RegisterRouteFunc("POST /validate", ChainMiddleware(s.ValidateHandler(), api...))
	s.RegisterRouteFunc("POST /renew", ChainMiddleware(s.RenewHandler(), api...))
	s.RegisterRouteFunc("OPTIONS /", ChainMiddleware(s.PreflightHandler(), s.CorsMiddleware))
	s.RegisterRouteFunc("GET /healthz", s.HealthHandler())
	s.RegisterRouteFunc("GET /metrics", s.metrics.handler().ServeHTTP)
}

func (s *Server) apiMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return []func(http.HandlerFunc) http.HandlerFunc{
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.CorsMiddleware,
	}
}

// HealthHandler reports process liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// PreflightHandler answers CORS preflight requests; the CORS middleware has
// already written the relevant headers by the time it runs.
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

// requestOrigin reads the transport-level origin. nil means the request
// carried no Origin header, which the policy layer treats as its own case.
func requestOrigin(r *http.Request) *string {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	return &origin
}
