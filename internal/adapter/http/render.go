package adapthttp

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"todolist/internal/app"
	"todolist/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = parsePages("index", "new", "detail", "edit", "login", "register", "error")

func parsePages(names ...string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		out[name] = template.Must(template.New("layout.html").
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return out
}

// viewData is the ambient render context every page receives.
type viewData struct {
	IsAuthenticated bool
	User            *domain.User
	Flashes         domain.Flashes
	Data            any
}

// formView re-displays a rejected form.
type formView struct {
	Fields map[string]string
	Errors []string
	Task   *domain.Task
}

// render executes the named page and consumes the session's pending flashes.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	st := stateFrom(r.Context())
	flashes, err := s.auth.ConsumeFlashes(r.Context(), st.session)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "consume flashes failed", "error", err)
	}
	flashes.Success = append(flashes.Success, st.notices.Success...)
	flashes.Warning = append(flashes.Warning, st.notices.Warning...)
	flashes.Error = append(flashes.Error, st.notices.Error...)

	var buf bytes.Buffer
	view := viewData{IsAuthenticated: st.user != nil, User: st.user, Flashes: flashes, Data: data}
	if err := pages[name].Execute(&buf, view); err != nil {
		s.logger.ErrorContext(r.Context(), "render failed", "page", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorView struct {
	Status  int
	Message string
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "error", errorView{Status: http.StatusNotFound, Message: "Page not found."})
}

// serverError logs err in full and shows the client a generic page.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"store_failure", errors.Is(err, app.ErrStore),
		"error", err,
	)
	var buf bytes.Buffer
	view := viewData{Data: errorView{Status: http.StatusInternalServerError, Message: "Something went wrong. Please try again later."}}
	if pages["error"].Execute(&buf, view) != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = buf.WriteTo(w)
}
