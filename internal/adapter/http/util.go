package adapthttp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"todolist/internal/domain"
)

// DefaultCookieName names the session cookie when none is configured.
const DefaultCookieName = "todolist_session"

type cookieConfig struct {
	name   string
	secure bool
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// setSessionCookie issues token and records it as the request's session.
// The cookie has no Max-Age; the server decides when the session ends.
func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	stateFrom(r.Context()).token = token
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookie.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookie.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// flash queues a message for the next rendered page, starting an anonymous
// session if the request has none.
func (s *Server) flash(w http.ResponseWriter, r *http.Request, kind domain.FlashKind, msg string) error {
	st := stateFrom(r.Context())
	token, err := s.auth.AddFlash(r.Context(), st.token, kind, msg)
	if err != nil {
		return err
	}
	if token != st.token {
		s.setSessionCookie(w, r, token)
	}
	return nil
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}
