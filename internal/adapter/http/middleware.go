package adapthttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"todolist/internal/domain"
	"todolist/internal/logging"

	"github.com/google/uuid"
)

type contextKey string

const stateContextKey contextKey = "request-state"

// requestState is the session context of one request. Handlers update token
// when they issue a new cookie so later steps of the same request see it.
type requestState struct {
	token   string
	session *domain.Session
	user    *domain.User
	notices domain.Flashes
}

const (
	noticeLoginRequired  = "login-required"
	loginRequiredMessage = "Please log in to view this page."
)

func stateFrom(ctx context.Context) *requestState {
	if st, ok := ctx.Value(stateContextKey).(*requestState); ok {
		return st
	}
	return &requestState{}
}

// loadSession resolves the session cookie into the request state.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := &requestState{}
		if c, err := r.Cookie(s.cookie.name); err == nil && c.Value != "" {
			session, user, err := s.auth.Resolve(r.Context(), c.Value)
			if err != nil {
				s.serverError(w, r, err)
				return
			}
			if session == nil {
				s.clearSessionCookie(w)
			} else {
				st.token, st.session, st.user = c.Value, session, user
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), stateContextKey, st)))
	})
}

// requireUser lets the request through only for an authenticated session.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if stateFrom(r.Context()).user != nil {
			next(w, r)
			return
		}
		s.metrics.GateDenials.Inc()
		// Clients without a session get the notice in the URL so that
		// cookieless traffic cannot grow the session store.
		if stateFrom(r.Context()).token == "" {
			http.Redirect(w, r, "/users/login?notice="+noticeLoginRequired, http.StatusFound)
			return
		}
		if err := s.flash(w, r, domain.FlashWarning, loginRequiredMessage); err != nil {
			s.serverError(w, r, err)
			return
		}
		http.Redirect(w, r, "/users/login", http.StatusFound)
	}
}

// methodOverride lets HTML forms issue PUT and DELETE by posting a _method
// field.
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			switch m := strings.ToUpper(r.PostFormValue("_method")); m {
			case http.MethodPut, http.MethodDelete, http.MethodPatch:
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-Id")
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := logging.WithRequestID(r.Context(), id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.InfoContext(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// observe records request metrics under the route pattern.
func (s *Server) observe(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

const maxRequestIDLen = 64

// validRequestID accepts short upstream IDs made of URL-safe characters.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
