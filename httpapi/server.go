package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	authgate "github.com/rlvait/authgate"
	"github.com/rlvait/authgate/middleware"
	"github.com/rlvait/authgate/provider"
)

// Options configures optional server collaborators. The zero value is valid:
// federated login routes answer 404, /metrics is not mounted, and logging
// goes to a default logrus logger.
type Options struct {
	// Providers is the OAuth provider registry for federated login. Nil
	// disables the /api/auth/{provider} routes.
	Providers *provider.Registry
	// FrontendURL is the redirect target for the OAuth callback. The token
	// pair (or an error) is appended as query parameters.
	FrontendURL string
	// Metrics, when non-nil, is served at /metrics.
	Metrics http.Handler
	Logger  *logrus.Logger
}

// Server is the HTTP front of an authgate engine.
type Server struct {
	engine      *authgate.Engine
	providers   *provider.Registry
	frontendURL string
	metrics     http.Handler
	logger      *logrus.Logger
	router      *mux.Router
}

// NewServer builds a server around a built engine and registers all routes.
func NewServer(engine *authgate.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{
		engine:      engine,
		providers:   opts.Providers,
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		metrics:     opts.Metrics,
		logger:      logger,
		router:      mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Router returns the underlying mux router so callers can add middleware or
// extra routes before serving.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/api", s.health).Methods("GET")

	// Public authentication surface. The literal routes are POST-only, so
	// they never collide with the GET {provider} patterns below.
	auth := s.router.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/signup", s.signup).Methods("POST")
	auth.HandleFunc("/login", s.login).Methods("POST")
	auth.HandleFunc("/refresh-token", s.refreshToken).Methods("POST")
	auth.HandleFunc("/logout", s.logout).Methods("POST")
	if s.providers != nil {
		auth.HandleFunc("/{provider}", s.oauthRedirect).Methods("GET")
		auth.HandleFunc("/{provider}/callback", s.oauthCallback).Methods("GET")
	}

	// Authenticated identity surface.
	users := s.router.PathPrefix("/api/users").Subrouter()
	users.Use(mux.MiddlewareFunc(middleware.Guard(s.engine)))
	users.HandleFunc("/me", s.currentUser).Methods("GET")
	users.HandleFunc("/me", s.updateProfile).Methods("PATCH")
	users.HandleFunc("/me/password", s.changePassword).Methods("POST")

	admin := users.NewRoute().Subrouter()
	admin.Use(mux.MiddlewareFunc(middleware.RequireRole(authgate.RoleAdmin)))
	admin.HandleFunc("", s.listUsers).Methods("GET")
	admin.HandleFunc("/{userId}/role", s.updateRole).Methods("PATCH")
	admin.HandleFunc("/{userId}", s.deleteUser).Methods("DELETE")

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods("GET")
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Auth Service API is running"})
}

// requestContext tags the request context with the caller address so engine
// audit events carry it.
func requestContext(r *http.Request) context.Context {
	return authgate.WithClientIP(r.Context(), clientIP(r))
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
