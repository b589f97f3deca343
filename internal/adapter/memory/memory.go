// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"todolist/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	users    []*domain.User
	tasks    []domain.Task
	sessions map[string]*domain.Session

	userIDCounter int64
	taskIDCounter int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		sessions: make(map[string]*domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.TaskRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// Ping always succeeds.
func (db *DB) Ping(ctx context.Context) error {
	return nil
}

// --- UserRepository ---

// GetByEmail retrieves a user by email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Email == user.Email {
			return nil, domain.ErrDuplicateEmail
		}
	}

	db.userIDCounter++
	u := *user
	u.ID = db.userIDCounter
	u.CreatedAt = time.Now().UTC()
	db.users = append(db.users, &u)

	c := u
	return &c, nil
}

// DeleteUser removes a user. Only tests need this; accounts are never
// deleted through the application.
func (db *DB) DeleteUser(ctx context.Context, id int64) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.users = slices.DeleteFunc(db.users, func(u *domain.User) bool { return u.ID == id })
	db.tasks = slices.DeleteFunc(db.tasks, func(t domain.Task) bool { return t.UserID == id })
}

// --- TaskRepository ---

// ListTasks returns a user's tasks, newest first.
func (db *DB) ListTasks(ctx context.Context, userID int64) ([]domain.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := make([]domain.Task, 0)
	for _, t := range db.tasks {
		if t.UserID == userID {
			result = append(result, t)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// AddTask stores a new task.
func (db *DB) AddTask(ctx context.Context, userID int64, name string, createdAt time.Time) (*domain.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.taskIDCounter++
	task := domain.Task{
		ID:        db.taskIDCounter,
		UserID:    userID,
		Name:      name,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: createdAt.UTC(),
	}
	db.tasks = append(db.tasks, task)
	return &task, nil
}

// GetTask returns a task owned by userID.
func (db *DB) GetTask(ctx context.Context, userID, id int64) (*domain.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if i := db.taskIndex(userID, id); i >= 0 {
		t := db.tasks[i]
		return &t, nil
	}
	return nil, nil
}

// UpdateTask renames a task and sets its done flag.
func (db *DB) UpdateTask(ctx context.Context, userID, id int64, name string, isDone bool, updatedAt time.Time) (*domain.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.taskIndex(userID, id)
	if i < 0 {
		return nil, nil
	}
	db.tasks[i].Name = name
	db.tasks[i].IsDone = isDone
	db.tasks[i].UpdatedAt = updatedAt.UTC()
	t := db.tasks[i]
	return &t, nil
}

// DeleteTask removes a task owned by userID.
func (db *DB) DeleteTask(ctx context.Context, userID, id int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.taskIndex(userID, id)
	if i < 0 {
		return false, nil
	}
	db.tasks = append(db.tasks[:i], db.tasks[i+1:]...)
	return true, nil
}

func (db *DB) taskIndex(userID, id int64) int {
	for i, t := range db.tasks {
		if t.ID == id && t.UserID == userID {
			return i
		}
	}
	return -1
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create stores a new session.
func (r *SessionRepo) Create(ctx context.Context, session *domain.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[session.ID] = cloneSession(session)
	return nil
}

// Update writes the flashes and last-seen time of an existing session.
func (r *SessionRepo) Update(ctx context.Context, session *domain.Session) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.sessions[session.ID]
	if !ok {
		return false, nil
	}
	next := cloneSession(session)
	stored.Flashes = next.Flashes
	stored.LastSeenAt = next.LastSeenAt
	return true, nil
}

// SessionCount reports how many sessions are stored.
func (db *DB) SessionCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.sessions)
}

// GetByID retrieves a session by ID.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[id]; ok {
		return cloneSession(s), nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, id)
	return nil
}

// DeleteExpired deletes all sessions past their absolute expiry or idle
// timeout.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time, idle time.Duration) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int64
	for k, v := range r.db.sessions {
		if v.ExpiredAt(now, idle) {
			delete(r.db.sessions, k)
			n++
		}
	}
	return n, nil
}

func cloneSession(s *domain.Session) *domain.Session {
	c := *s
	c.Flashes = domain.Flashes{
		Success: slices.Clone(s.Flashes.Success),
		Warning: slices.Clone(s.Flashes.Warning),
		Error:   slices.Clone(s.Flashes.Error),
	}
	return &c
}
