// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"todolist/internal/domain"

	"github.com/samber/oops"
)

// SessionPolicy controls how long sessions live.
type SessionPolicy struct {
	// Lifetime is the absolute lifetime of a session from creation.
	Lifetime time.Duration
	// IdleTimeout expires a session that has not been seen for this long.
	IdleTimeout time.Duration
	// TouchInterval limits how often LastSeenAt is written back.
	TouchInterval time.Duration
}

// DefaultSessionPolicy returns a 24h absolute / 2h idle policy.
func DefaultSessionPolicy() SessionPolicy {
	return SessionPolicy{
		Lifetime:      24 * time.Hour,
		IdleTimeout:   2 * time.Hour,
		TouchInterval: time.Minute,
	}
}

// AuthService handles authentication, session lifecycle and flash messages.
type AuthService struct {
	users     domain.UserRepository
	sessions  domain.SessionRepository
	hasher    PasswordHasher
	policy    SessionPolicy
	now       func() time.Time
	dummyHash string
	dummyErr  error
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, hasher PasswordHasher, policy SessionPolicy) *AuthService {
	s := &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		policy:   policy,
		now:      time.Now,
	}
	// Verified against when the email is unknown so both failure paths cost
	// one hash comparison.
	s.dummyHash, s.dummyErr = hasher.Hash("unused-timing-equalizer")
	return s
}

// Authenticate checks an email/password pair against the credential store.
// A rejected attempt returns *AuthError, which matches ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, storeFailure("get user by email", err)
	}
	if user == nil {
		if s.dummyErr != nil {
			return nil, oops.Code("AUTH_TIMING_DIGEST_FAILED").Wrap(s.dummyErr)
		}
		s.hasher.Verify(password, s.dummyHash)
		return nil, &AuthError{Reason: NoSuchUser}
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, &AuthError{Reason: BadPassword}
	}
	return user, nil
}

// Login establishes a new session for user and returns its token. Any
// session identified by previousToken is destroyed first so no earlier
// state is carried into the authenticated session.
func (s *AuthService) Login(ctx context.Context, user *domain.User, previousToken string) (string, error) {
	if user == nil || user.ID == 0 {
		return "", oops.Code("AUTH_LOGIN_FAILED").Errorf("login requires a persisted user")
	}
	if previousToken != "" {
		if err := s.sessions.Delete(ctx, HashToken(previousToken)); err != nil {
			return "", storeFailure("delete previous session", err)
		}
	}
	token, _, err := s.startSession(ctx, user.ID, domain.Flashes{})
	return token, err
}

// Logout destroys the session identified by token on the server.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, HashToken(token)); err != nil {
		return storeFailure("delete session", err)
	}
	return nil
}

// Resolve looks up the session behind token and the user it belongs to.
// It returns a nil session when the token is unknown or expired and a nil
// user when the session is anonymous. Only store failures are errors.
func (s *AuthService) Resolve(ctx context.Context, token string) (*domain.Session, *domain.User, error) {
	session, err := s.liveSession(ctx, token)
	if err != nil || session == nil {
		return nil, nil, err
	}

	if s.now().Sub(session.LastSeenAt) >= s.policy.TouchInterval {
		session.LastSeenAt = s.now()
		ok, err := s.sessions.Update(ctx, session)
		if err != nil {
			return nil, nil, storeFailure("touch session", err)
		}
		if !ok {
			// Logged out while this request was in flight.
			return nil, nil, nil
		}
	}

	if session.IsAnonymous() {
		return session, nil, nil
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, storeFailure("get user by id", err)
	}
	if user == nil {
		// The account is gone; the session can no longer vouch for anyone.
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			return nil, nil, storeFailure("delete orphaned session", err)
		}
		return nil, nil, nil
	}
	return session, user, nil
}

// AddFlash queues a one-shot message on the session behind token, starting
// an anonymous session when there is none. It returns the token to use
// from now on, which differs from token only when a session was started.
func (s *AuthService) AddFlash(ctx context.Context, token string, kind domain.FlashKind, msg string) (string, error) {
	session, err := s.liveSession(ctx, token)
	if err != nil {
		return "", err
	}
	if session != nil {
		session.Flashes.Add(kind, msg)
		ok, err := s.sessions.Update(ctx, session)
		if err != nil {
			return "", storeFailure("save flash", err)
		}
		if ok {
			return token, nil
		}
		// Deleted since it was read; the message goes on a fresh session.
	}

	var flashes domain.Flashes
	flashes.Add(kind, msg)
	newToken, _, err := s.startSession(ctx, 0, flashes)
	return newToken, err
}

// ConsumeFlashes removes and returns the pending messages of session. A
// session deleted since it was loaded stays deleted.
func (s *AuthService) ConsumeFlashes(ctx context.Context, session *domain.Session) (domain.Flashes, error) {
	if session == nil || session.Flashes.Empty() {
		return domain.Flashes{}, nil
	}
	flashes := session.Flashes
	session.Flashes = domain.Flashes{}
	if _, err := s.sessions.Update(ctx, session); err != nil {
		return domain.Flashes{}, storeFailure("consume flashes", err)
	}
	return flashes, nil
}

// ProvisionExternalUser returns the user registered under email, creating
// one with an unusable password when none exists. Used for SSO logins.
func (s *AuthService) ProvisionExternalUser(ctx context.Context, email, name string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, storeFailure("get user by email", err)
	}
	if user != nil {
		return user, nil
	}

	secret, err := generateToken()
	if err != nil {
		return nil, oops.Code("AUTH_PROVISION_FAILED").Wrap(err)
	}
	hash, err := s.hasher.Hash(secret[:32])
	if err != nil {
		return nil, oops.Code("AUTH_PROVISION_FAILED").Wrap(err)
	}
	if name == "" {
		name = email
	}
	candidate, err := domain.NewUser(name, email, hash)
	if err != nil {
		return nil, oops.Code("AUTH_PROVISION_FAILED").Wrap(err)
	}

	user, err = s.users.Create(ctx, candidate)
	if errors.Is(err, domain.ErrDuplicateEmail) {
		// Lost a race with a concurrent first login.
		user, err = s.users.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, storeFailure("create external user", err)
	}
	if user == nil {
		return nil, oops.Code("AUTH_PROVISION_FAILED").Errorf("user %s vanished after creation", email)
	}
	return user, nil
}

// PruneSessions deletes sessions past their absolute or idle expiry and
// reports how many were removed.
func (s *AuthService) PruneSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now(), s.policy.IdleTimeout)
	if err != nil {
		return 0, storeFailure("delete expired sessions", err)
	}
	return n, nil
}

func (s *AuthService) liveSession(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}
	session, err := s.sessions.GetByID(ctx, HashToken(token))
	if err != nil {
		return nil, storeFailure("get session", err)
	}
	if session == nil {
		return nil, nil
	}
	if session.ExpiredAt(s.now(), s.policy.IdleTimeout) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			return nil, storeFailure("delete expired session", err)
		}
		return nil, nil
	}
	return session, nil
}

func (s *AuthService) startSession(ctx context.Context, userID int64, flashes domain.Flashes) (string, *domain.Session, error) {
	token, err := generateToken()
	if err != nil {
		return "", nil, oops.Code("SESSION_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	now := s.now()
	session := &domain.Session{
		ID:         HashToken(token),
		UserID:     userID,
		Flashes:    flashes,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(s.policy.Lifetime),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", nil, storeFailure("create session", err)
	}
	return token, session, nil
}

// HashToken derives the storage key of a session token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
