// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"errors"
	"net/http"

	"todolist/internal/app"
	"todolist/internal/domain"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if stateFrom(r.Context()).user != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	// Only known notice codes map to text; the parameter is never echoed.
	if r.URL.Query().Get("notice") == noticeLoginRequired {
		stateFrom(r.Context()).notices.Add(domain.FlashWarning, loginRequiredMessage)
	}
	s.render(w, r, http.StatusOK, "login", s.sso != nil)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Authenticate(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
	var authErr *app.AuthError
	if errors.As(err, &authErr) {
		s.metrics.LoginsTotal.WithLabelValues("password", "failure").Inc()
		s.logger.InfoContext(r.Context(), "login rejected", "reason", authErr.Reason)
		if err := s.flash(w, r, domain.FlashError, authErr.Error()); err != nil {
			s.serverError(w, r, err)
			return
		}
		http.Redirect(w, r, "/users/login", http.StatusSeeOther)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	if err := s.startUserSession(w, r, user); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.metrics.LoginsTotal.WithLabelValues("password", "success").Inc()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// startUserSession replaces the request's session with a fresh one for user.
func (s *Server) startUserSession(w http.ResponseWriter, r *http.Request, user *domain.User) error {
	st := stateFrom(r.Context())
	token, err := s.auth.Login(r.Context(), user, st.token)
	if err != nil {
		return err
	}
	s.setSessionCookie(w, r, token)
	st.session, st.user = nil, user
	return nil
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r.Context())
	if err := s.auth.Logout(r.Context(), st.token); err != nil {
		s.serverError(w, r, err)
		return
	}
	st.token, st.session, st.user = "", nil, nil

	if err := s.flash(w, r, domain.FlashSuccess, "Logout successful!"); err != nil {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/users/login", http.StatusFound)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register", nil)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	form := app.RegistrationForm{
		Name:            r.PostFormValue("name"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}

	_, err := s.auth.Register(r.Context(), form)
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		s.metrics.Registrations.WithLabelValues("rejected").Inc()
		s.render(w, r, http.StatusUnprocessableEntity, "register", formView{Fields: verr.Fields, Errors: verr.Messages()})
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.metrics.Registrations.WithLabelValues("created").Inc()
	if err := s.flash(w, r, domain.FlashSuccess, "Registration successful! Please log in."); err != nil {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/users/login", http.StatusSeeOther)
}
