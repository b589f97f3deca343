// Package redisstore keeps sessions in Redis, letting key TTLs enforce the
// absolute session lifetime.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"todolist/internal/domain"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "todolist:session:"

type record struct {
	UserID     int64          `json:"uid,omitempty"`
	Flashes    domain.Flashes `json:"flashes"`
	CreatedAt  time.Time      `json:"created_at"`
	LastSeenAt time.Time      `json:"last_seen_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

// SessionRepo implements domain.SessionRepository on Redis.
type SessionRepo struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ domain.SessionRepository = (*SessionRepo)(nil)

// Open parses a redis:// URL and checks the server is reachable.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewSessionRepo wraps client. An empty prefix uses DefaultPrefix.
func NewSessionRepo(client *redis.Client, prefix string) *SessionRepo {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionRepo{client: client, prefix: prefix, now: time.Now}
}

func (r *SessionRepo) key(id string) string {
	return r.prefix + id
}

// Create stores a new session, expiring the key with the session.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	b, err := encode(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(s.ID), b, ttl).Err()
}

// Update rewrites an existing session, keeping its TTL. It never creates a
// key, so a session deleted in the meantime stays deleted.
func (r *SessionRepo) Update(ctx context.Context, s *domain.Session) (bool, error) {
	b, err := encode(s)
	if err != nil {
		return false, err
	}
	err = r.client.SetArgs(ctx, r.key(s.ID), b, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func encode(s *domain.Session) ([]byte, error) {
	return json.Marshal(record{
		UserID:     s.UserID,
		Flashes:    s.Flashes,
		CreatedAt:  s.CreatedAt,
		LastSeenAt: s.LastSeenAt,
		ExpiresAt:  s.ExpiresAt,
	})
}

// GetByID retrieves a session by ID.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &domain.Session{
		ID:         id,
		UserID:     rec.UserID,
		Flashes:    rec.Flashes,
		CreatedAt:  rec.CreatedAt,
		LastSeenAt: rec.LastSeenAt,
		ExpiresAt:  rec.ExpiresAt,
	}, nil
}

// Delete deletes a session. Deleting an unknown session is not an error.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

// DeleteExpired is a no-op: Redis drops keys when their TTL elapses. Idle
// sessions are rejected on lookup and dropped at absolute expiry.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time, idle time.Duration) (int64, error) {
	return 0, nil
}
