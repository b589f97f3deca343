package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"todolist/internal/domain"
)

var _ domain.TaskRepository = (*DB)(nil)

const taskColumns = "id, user_id, name, is_done, created_at, updated_at"

func scanTask(row interface{ Scan(...any) error }) (*domain.Task, error) {
	var t domain.Task
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.IsDone, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks returns a user's tasks, newest first.
func (d *DB) ListTasks(ctx context.Context, userID int64) ([]domain.Task, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id=$1 ORDER BY created_at DESC, id DESC;", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// AddTask inserts a new task.
func (d *DB) AddTask(ctx context.Context, userID int64, name string, createdAt time.Time) (*domain.Task, error) {
	return scanTask(d.sql.QueryRowContext(ctx,
		"INSERT INTO tasks(user_id, name, is_done, created_at, updated_at) VALUES($1, $2, FALSE, $3, $3) RETURNING "+taskColumns+";",
		userID, name, createdAt.UTC(),
	))
}

// GetTask returns a task owned by userID.
func (d *DB) GetTask(ctx context.Context, userID, id int64) (*domain.Task, error) {
	t, err := scanTask(d.sql.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id=$1 AND user_id=$2;", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// UpdateTask renames a task and sets its done flag.
func (d *DB) UpdateTask(ctx context.Context, userID, id int64, name string, isDone bool, updatedAt time.Time) (*domain.Task, error) {
	t, err := scanTask(d.sql.QueryRowContext(ctx,
		"UPDATE tasks SET name=$1, is_done=$2, updated_at=$3 WHERE id=$4 AND user_id=$5 RETURNING "+taskColumns+";",
		name, isDone, updatedAt.UTC(), id, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// DeleteTask removes a task, scoped to a user.
func (d *DB) DeleteTask(ctx context.Context, userID, id int64) (bool, error) {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM tasks WHERE id=$1 AND user_id=$2;", id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
