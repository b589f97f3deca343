package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"todolist/internal/domain"
)

// MaxTaskNameLen is the longest accepted task name, in characters.
const MaxTaskNameLen = 200

// TaskService encapsulates the to-do list use cases. Every operation acts
// on behalf of one user and never sees other users' tasks.
type TaskService struct {
	repo domain.TaskRepository
	now  func() time.Time
}

// NewTaskService creates a TaskService backed by the given repository.
func NewTaskService(repo domain.TaskRepository) *TaskService {
	return &TaskService{repo: repo, now: time.Now}
}

// List returns the user's tasks, newest first.
func (s *TaskService) List(ctx context.Context, userID int64) ([]domain.Task, error) {
	tasks, err := s.repo.ListTasks(ctx, userID)
	if err != nil {
		return nil, storeFailure("list tasks", err)
	}
	return tasks, nil
}

// Create validates and stores a new task.
func (s *TaskService) Create(ctx context.Context, userID int64, name string) (*domain.Task, error) {
	name, err := validateTaskName(name)
	if err != nil {
		return nil, err
	}
	task, err := s.repo.AddTask(ctx, userID, name, s.now())
	if err != nil {
		return nil, storeFailure("add task", err)
	}
	return task, nil
}

// Get returns one task or ErrTaskNotFound.
func (s *TaskService) Get(ctx context.Context, userID, id int64) (*domain.Task, error) {
	task, err := s.repo.GetTask(ctx, userID, id)
	if err != nil {
		return nil, storeFailure("get task", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// Update renames a task and sets its done flag.
func (s *TaskService) Update(ctx context.Context, userID, id int64, name string, isDone bool) (*domain.Task, error) {
	name, err := validateTaskName(name)
	if err != nil {
		return nil, err
	}
	task, err := s.repo.UpdateTask(ctx, userID, id, name, isDone, s.now())
	if err != nil {
		return nil, storeFailure("update task", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, userID, id int64) error {
	deleted, err := s.repo.DeleteTask(ctx, userID, id)
	if err != nil {
		return storeFailure("delete task", err)
	}
	if !deleted {
		return ErrTaskNotFound
	}
	return nil
}

func validateTaskName(name string) (string, error) {
	name = strings.TrimSpace(name)
	fields := map[string]string{"name": name}
	switch {
	case name == "":
		return "", &ValidationError{Problems: []Problem{NameRequired}, Fields: fields}
	case utf8.RuneCountInString(name) > MaxTaskNameLen:
		return "", &ValidationError{Problems: []Problem{NameTooLong}, Fields: fields}
	}
	return name, nil
}
