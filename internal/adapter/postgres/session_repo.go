package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"todolist/internal/domain"
)

// SessionRepo implements session repository operations on DB.
type SessionRepo struct {
	db *DB
}

var _ domain.SessionRepository = (*SessionRepo)(nil)

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create inserts a new session.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	flashes, err := json.Marshal(s.Flashes)
	if err != nil {
		return err
	}
	userID := sql.NullInt64{Int64: s.UserID, Valid: s.UserID != 0}

	_, err = r.db.sql.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, flashes, created_at, last_seen_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, userID, string(flashes), s.CreatedAt.UTC(), s.LastSeenAt.UTC(), s.ExpiresAt.UTC(),
	)
	return err
}

// Update writes the flashes and last-seen time of an existing session.
func (r *SessionRepo) Update(ctx context.Context, s *domain.Session) (bool, error) {
	flashes, err := json.Marshal(s.Flashes)
	if err != nil {
		return false, err
	}
	res, err := r.db.sql.ExecContext(ctx,
		"UPDATE sessions SET flashes = $2, last_seen_at = $3 WHERE id = $1",
		s.ID, string(flashes), s.LastSeenAt.UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetByID retrieves a session by ID.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var (
		s       domain.Session
		userID  sql.NullInt64
		flashes []byte
	)
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT id, user_id, flashes, created_at, last_seen_at, expires_at FROM sessions WHERE id = $1",
		id,
	).Scan(&s.ID, &userID, &flashes, &s.CreatedAt, &s.LastSeenAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.UserID = userID.Int64
	if len(flashes) > 0 {
		if err := json.Unmarshal(flashes, &s.Flashes); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// Delete deletes a session by ID.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE id = $1", id)
	return err
}

// DeleteExpired deletes sessions past their absolute expiry or, when idle
// is positive, not seen since now-idle.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time, idle time.Duration) (int64, error) {
	var idleCutoff time.Time
	if idle > 0 {
		idleCutoff = now.Add(-idle)
	}
	res, err := r.db.sql.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at <= $1 OR last_seen_at < $2",
		now.UTC(), idleCutoff.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
