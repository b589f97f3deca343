package adapthttp

import (
	"context"
	"log/slog"
	"net/http"

	"todolist/internal/app"
	"todolist/internal/metrics"
)

// HealthChecker reports whether the backing stores are reachable.
type HealthChecker func(ctx context.Context) error

// Options configures a Server. Zero values select working defaults.
type Options struct {
	CookieName   string
	SecureCookie bool
	SSO          *SSOConfig
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Health       HealthChecker
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth    *app.AuthService
	tasks   *app.TaskService
	cookie  cookieConfig
	sso     *SSOConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	health  HealthChecker
}

// New creates a Server wired to the given application services.
func New(auth *app.AuthService, tasks *app.TaskService, opts Options) *Server {
	s := &Server{
		auth:    auth,
		tasks:   tasks,
		cookie:  cookieConfig{name: opts.CookieName, secure: opts.SecureCookie},
		sso:     opts.SSO,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		health:  opts.Health,
	}
	if s.cookie.name == "" {
		s.cookie.name = DefaultCookieName
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.observe(pattern, h))
	}
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.observe(pattern, s.requireUser(h)))
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	handle("GET /users/login", s.handleLoginPage)
	handle("POST /users/login", s.handleLogin)
	handle("GET /users/register", s.handleRegisterPage)
	handle("POST /users/register", s.handleRegister)
	handle("GET /users/logout", s.handleLogout)
	handle("GET /users/sso/login", s.handleSSOLogin)
	handle("GET /users/sso/callback", s.handleSSOCallback)

	protected("GET /{$}", s.handleIndex)
	protected("GET /todos/new", s.handleNewTask)
	protected("POST /todos", s.handleCreateTask)
	protected("GET /todos/{id}", s.handleShowTask)
	protected("GET /todos/{id}/edit", s.handleEditTask)
	protected("PUT /todos/{id}", s.handleUpdateTask)
	protected("DELETE /todos/{id}", s.handleDeleteTask)

	mux.Handle("/", s.observe("unmatched", http.HandlerFunc(s.handleNotFound)))

	return s.loggingMiddleware(withNoCache(methodOverride(s.loadSession(mux))))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
