// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrDuplicateEmail is returned by a UserRepository when the email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

// User represents a registered account.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewUser builds a User that has not been persisted yet.
func NewUser(name, email, passwordHash string) (*User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	switch {
	case name == "":
		return nil, errors.New("user name is required")
	case email == "":
		return nil, errors.New("user email is required")
	case passwordHash == "":
		return nil, errors.New("user password hash is required")
	}
	return &User{Name: name, Email: email, PasswordHash: passwordHash}, nil
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FlashKind names a category of one-shot message.
type FlashKind string

// Flash kinds understood by the page layout.
const (
	FlashSuccess FlashKind = "success"
	FlashWarning FlashKind = "warning"
	FlashError   FlashKind = "error"
)

// Flashes holds the pending one-shot messages of a session.
type Flashes struct {
	Success []string `json:"success,omitempty"`
	Warning []string `json:"warning,omitempty"`
	Error   []string `json:"error,omitempty"`
}

// Add appends msg under kind. Unknown kinds are treated as errors.
func (f *Flashes) Add(kind FlashKind, msg string) {
	switch kind {
	case FlashSuccess:
		f.Success = append(f.Success, msg)
	case FlashWarning:
		f.Warning = append(f.Warning, msg)
	default:
		f.Error = append(f.Error, msg)
	}
}

// Empty reports whether there is nothing to show.
func (f Flashes) Empty() bool {
	return len(f.Success) == 0 && len(f.Warning) == 0 && len(f.Error) == 0
}

// Session represents server-side session state. ID is the SHA-256 of the
// cookie token; the token itself is never stored.
type Session struct {
	ID         string
	UserID     int64 // zero means anonymous
	Flashes    Flashes
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

// IsAnonymous reports whether the session carries no user.
func (s *Session) IsAnonymous() bool {
	return s.UserID == 0
}

// ExpiredAt reports whether the session is past its absolute expiry or has
// been idle for longer than idle. A zero idle disables the idle check.
func (s *Session) ExpiredAt(now time.Time, idle time.Duration) bool {
	if !now.Before(s.ExpiresAt) {
		return true
	}
	return idle > 0 && now.Sub(s.LastSeenAt) > idle
}

// UserRepository defines the port for user persistence operations.
// Lookups return (nil, nil) when no user matches.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
}

// SessionRepository defines the port for session persistence operations.
// GetByID returns (nil, nil) when the session is unknown.
//
// Update writes only Flashes and LastSeenAt, and only when the session still
// exists; it reports false otherwise. A deleted session is never recreated
// by Update.
//
// DeleteExpired removes sessions past their absolute expiry and, when idle
// is positive, those not seen within idle of now.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	Update(ctx context.Context, session *Session) (bool, error)
	GetByID(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time, idle time.Duration) (int64, error)
}
