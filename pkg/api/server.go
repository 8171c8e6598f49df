package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/barbell/pkg/auth"
	"github.com/platinummonkey/barbell/pkg/catalog"
	"github.com/platinummonkey/barbell/pkg/hooks"
	"github.com/platinummonkey/barbell/pkg/httputil"
	"github.com/platinummonkey/barbell/pkg/middleware"
	"github.com/platinummonkey/barbell/pkg/observability"
	"github.com/platinummonkey/barbell/pkg/orgs"
	"github.com/platinummonkey/barbell/pkg/rbac"
	"github.com/platinummonkey/barbell/pkg/status"
)

// maxBodyBytes caps JSON request bodies on the application routes
const maxBodyBytes = 1 << 20

// Options carries the collaborators of the API server. Everything is built
// by the composition root and injected here.
type Options struct {
	Catalog   *catalog.Service
	Statuses  *status.Manager
	Directory orgs.Directory
	Guard     *rbac.Guard
	Audit     *auth.AuditLogger

	// RequiredAuth rejects anonymous requests, OptionalAuth lets them through
	// with an empty auth context. The provider routes use the latter.
	RequiredAuth *middleware.AuthMiddleware
	OptionalAuth *middleware.AuthMiddleware

	// Provider serves /api/auth/*. Hooks run around it.
	Provider    http.Handler
	Hooks       *hooks.Registry
	RateLimiter *middleware.RateLimiter

	Metrics *observability.Metrics
	Logger  *observability.Logger
}

// Server is the HTTP API
type Server struct {
	router    *mux.Router
	catalog   *catalog.Service
	statuses  *status.Manager
	directory orgs.Directory
	guard     *rbac.Guard
	audit     *auth.AuditLogger
	logger    *observability.Logger
}

// NewServer creates the API server and registers every route
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &Server{
		router:    mux.NewRouter(),
		catalog:   opts.Catalog,
		statuses:  opts.Statuses,
		directory: opts.Directory,
		guard:     opts.Guard,
		audit:     opts.Audit,
		logger:    logger,
	}

	s.router.Use(httputil.RequestIDMiddleware(logger))
	s.router.Use(httputil.RecoveryMiddleware)
	s.router.Use(httputil.LoggingMiddleware)
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}

	s.setupRoutes(opts)
	return s
}

func (s *Server) setupRoutes(opts Options) {
	if opts.Provider != nil {
		s.registerProvider(opts)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(opts.RequiredAuth.Handler)
	api.Use(httputil.ContentTypeMiddleware)
	api.Use(httputil.MaxBytesMiddleware(maxBodyBytes))

	api.HandleFunc("/me", s.getMe).Methods(http.MethodGet)

	s.registerCatalog(api)
	s.registerStatuses(api)
	s.registerMembers(api)
}

// registerProvider mounts the authentication provider. Anonymous callers
// reach it so sign-in works; hooks see whatever session the request carries.
func (s *Server) registerProvider(opts Options) {
	handler := opts.Provider
	if opts.Hooks != nil {
		// hooks are fixed once requests can arrive
		if !opts.Hooks.Sealed() {
			s.logger.Warn("hook registry was not sealed before serving, sealing it now")
			opts.Hooks.Seal()
		}
		handler = opts.Hooks.Wrap(handler)
	}

	chain := []func(http.Handler) http.Handler{opts.OptionalAuth.Handler}
	if opts.RateLimiter != nil {
		chain = append(chain, middleware.RateLimitMiddleware(opts.RateLimiter))
	}

	s.router.PathPrefix("/api/auth/").Handler(httputil.Chain(chain...)(handler))
}

// guarded wraps a handler with the permission check for a route group
func (s *Server) guarded(group string, h http.HandlerFunc, actions ...rbac.Action) http.Handler {
	return s.guard.Require(group, actions...)(h)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}
