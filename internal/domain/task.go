package domain

import (
	"context"
	"time"
)

// Task is a single to-do item owned by one user.
type Task struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Name      string    `json:"name"`
	IsDone    bool      `json:"isDone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskRepository is the port for task persistence. Every call is scoped to
// userID; a task owned by someone else is indistinguishable from a missing one.
type TaskRepository interface {
	ListTasks(ctx context.Context, userID int64) ([]Task, error)
	AddTask(ctx context.Context, userID int64, name string, createdAt time.Time) (*Task, error)
	GetTask(ctx context.Context, userID, id int64) (*Task, error)
	UpdateTask(ctx context.Context, userID, id int64, name string, isDone bool, updatedAt time.Time) (*Task, error)
	DeleteTask(ctx context.Context, userID, id int64) (bool, error)
}
