package adapthttp

import (
	"errors"
	"net/http"

	"todolist/internal/app"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	user := stateFrom(r.Context()).user
	tasks, err := s.tasks.List(r.Context(), user.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "index", tasks)
}

func (s *Server) handleNewTask(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "new", nil)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	user := stateFrom(r.Context()).user
	_, err := s.tasks.Create(r.Context(), user.ID, r.PostFormValue("name"))
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		s.render(w, r, http.StatusUnprocessableEntity, "new", formView{Fields: verr.Fields, Errors: verr.Messages()})
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleShowTask(w http.ResponseWriter, r *http.Request) {
	s.showTask(w, r, "detail")
}

func (s *Server) handleEditTask(w http.ResponseWriter, r *http.Request) {
	s.showTask(w, r, "edit")
}

func (s *Server) showTask(w http.ResponseWriter, r *http.Request, page string) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	task, err := s.tasks.Get(r.Context(), stateFrom(r.Context()).user.ID, id)
	if errors.Is(err, app.ErrTaskNotFound) {
		s.handleNotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if page == "edit" {
		s.render(w, r, http.StatusOK, page, formView{Task: task})
		return
	}
	s.render(w, r, http.StatusOK, page, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	userID := stateFrom(r.Context()).user.ID
	_, err := s.tasks.Update(r.Context(), userID, id, r.PostFormValue("name"), r.PostFormValue("isDone") == "on")

	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		task, getErr := s.tasks.Get(r.Context(), userID, id)
		if errors.Is(getErr, app.ErrTaskNotFound) {
			s.handleNotFound(w, r)
			return
		}
		if getErr != nil {
			s.serverError(w, r, getErr)
			return
		}
		s.render(w, r, http.StatusUnprocessableEntity, "edit", formView{Task: task, Fields: verr.Fields, Errors: verr.Messages()})
	case errors.Is(err, app.ErrTaskNotFound):
		s.handleNotFound(w, r)
	case err != nil:
		s.serverError(w, r, err)
	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	err := s.tasks.Delete(r.Context(), stateFrom(r.Context()).user.ID, id)
	switch {
	case errors.Is(err, app.ErrTaskNotFound):
		s.handleNotFound(w, r)
	case err != nil:
		s.serverError(w, r, err)
	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
