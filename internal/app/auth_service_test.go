package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"todolist/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	getByEmailFn func(ctx context.Context, email string) (*domain.User, error)
	getByIDFn    func(ctx context.Context, id int64) (*domain.User, error)
	createFn     func(ctx context.Context, user *domain.User) (*domain.User, error)
	createCalls  int
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	created := *user
	created.ID = 1
	return &created, nil
}

type mockSessionRepo struct {
	createFn        func(ctx context.Context, s *domain.Session) error
	updateFn        func(ctx context.Context, s *domain.Session) (bool, error)
	getByIDFn       func(ctx context.Context, id string) (*domain.Session, error)
	deleteFn        func(ctx context.Context, id string) error
	deleteExpiredFn func(ctx context.Context, now time.Time, idle time.Duration) (int64, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	return nil
}

func (m *mockSessionRepo) Update(ctx context.Context, s *domain.Session) (bool, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, s)
	}
	return true, nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context, now time.Time, idle time.Duration) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx, now, idle)
	}
	return 0, nil
}

func testHasher() *BcryptHasher {
	return NewBcryptHasher(bcrypt.MinCost)
}

func storedUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := testHasher().Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &domain.User{ID: 7, Name: "Ann", Email: "a@b.com", PasswordHash: hash}
}

func TestAuthService_Authenticate_Success(t *testing.T) {
	user := storedUser(t, "secret")
	users := &mockUserRepo{
		getByEmailFn: func(_ context.Context, email string) (*domain.User, error) {
			if email != "a@b.com" {
				t.Errorf("expected normalized email, got %q", email)
			}
			return user, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{}, testHasher(), DefaultSessionPolicy())
	got, err := svc.Authenticate(context.Background(), " A@B.com", "secret")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.ID != 7 {
		t.Errorf("expected user 7, got %d", got.ID)
	}
}

func TestAuthService_Authenticate_BadPassword(t *testing.T) {
	user := storedUser(t, "secret")
	before := *user
	users := &mockUserRepo{
		getByEmailFn: func(context.Context, string) (*domain.User, error) { return user, nil },
	}

	svc := NewAuthService(users, &mockSessionRepo{}, testHasher(), DefaultSessionPolicy())
	_, err := svc.Authenticate(context.Background(), "a@b.com", "wrong")

	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Reason != BadPassword {
		t.Fatalf("expected BadPassword, got %v", err)
	}
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Error("expected error to match ErrInvalidCredentials")
	}
	if *user != before {
		t.Error("user record must not change on failed login")
	}
}

func TestAuthService_Authenticate_NoSuchUser(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, testHasher(), DefaultSessionPolicy())
	_, err := svc.Authenticate(context.Background(), "nobody@b.com", "secret")

	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Reason != NoSuchUser {
		t.Fatalf("expected NoSuchUser, got %v", err)
	}
	if err.Error() != ErrInvalidCredentials.Error() {
		t.Errorf("failure reasons must share one message, got %q", err.Error())
	}
}

func TestAuthService_Authenticate_StoreError(t *testing.T) {
	users := &mockUserRepo{
		getByEmailFn: func(context.Context, string) (*domain.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{}, testHasher(), DefaultSessionPolicy())
	_, err := svc.Authenticate(context.Background(), "a@b.com", "secret")
	if !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("store failure must not look like bad credentials")
	}
}

func TestAuthService_Login_RegeneratesSession(t *testing.T) {
	var deleted string
	var saved *domain.Session
	sessions := &mockSessionRepo{
		deleteFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
		createFn: func(_ context.Context, s *domain.Session) error {
			saved = s
			return nil
		},
	}

	svc := NewAuthService(&mockUserRepo{}, sessions, testHasher(), DefaultSessionPolicy())
	token, err := svc.Login(context.Background(), &domain.User{ID: 7}, "anonymous-token")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token == "" || token == "anonymous-token" {
		t.Fatalf("expected a fresh token, got %q", token)
	}
	if deleted != HashToken("anonymous-token") {
		t.Error("expected previous session to be deleted")
	}
	if saved == nil || saved.UserID != 7 || saved.ID != HashToken(token) {
		t.Fatalf("unexpected saved session: %+v", saved)
	}
	if !saved.Flashes.Empty() {
		t.Error("new session must not inherit state")
	}
}

func TestAuthService_Login_StoreError(t *testing.T) {
	sessions := &mockSessionRepo{
		createFn: func(context.Context, *domain.Session) error { return errors.New("timeout") },
	}
	svc := NewAuthService(&mockUserRepo{}, sessions, testHasher(), DefaultSessionPolicy())
	_, err := svc.Login(context.Background(), &domain.User{ID: 7}, "")
	if !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}

func TestAuthService_Resolve_Valid(t *testing.T) {
	now := time.Now()
	sessions := &mockSessionRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Session, error) {
			if id != HashToken("validtoken") {
				t.Errorf("expected hashed token lookup, got %q", id)
			}
			return &domain.Session{ID: id, UserID: 1, LastSeenAt: now, ExpiresAt: now.Add(time.Hour)}, nil
		},
	}
	users := &mockUserRepo{
		getByIDFn: func(context.Context, int64) (*domain.User, error) {
			return &domain.User{ID: 1, Name: "testuser"}, nil
		},
	}

	svc := NewAuthService(users, sessions, testHasher(), DefaultSessionPolicy())
	session, user, err := svc.Resolve(context.Background(), "validtoken")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if session == nil || user == nil || user.Name != "testuser" {
		t.Fatalf("expected resolved principal, got %+v %+v", session, user)
	}
}

func TestAuthService_Resolve_Expired(t *testing.T) {
	deleted := false
	sessions := &mockSessionRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Session, error) {
			return &domain.Session{ID: id, UserID: 1, LastSeenAt: time.Now(), ExpiresAt: time.Now().Add(-time.Hour)}, nil
		},
		deleteFn: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}

	svc := NewAuthService(&mockUserRepo{}, sessions, testHasher(), DefaultSessionPolicy())
	session, user, err := svc.Resolve(context.Background(), "expiredtoken")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if session != nil || user != nil {
		t.Error("expired session must resolve as anonymous")
	}
	if !deleted {
		t.Error("expected session to be deleted")
	}
}

func TestAuthService_Resolve_IdleTimeout(t *testing.T) {
	now := time.Now()
	sessions := &mockSessionRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Session, error) {
			return &domain.Session{ID: id, UserID: 1, LastSeenAt: now.Add(-3 * time.Hour), ExpiresAt: now.Add(time.Hour)}, nil
		},
	}
	svc := NewAuthService(&mockUserRepo{}, sessions, testHasher(), DefaultSessionPolicy())
	session, _, err := svc.Resolve(context.Background(), "idle")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session != nil {
		t.Error("idle session must be treated as expired")
	}
}

func TestAuthService_Resolve_MissingUserFallsBackToAnonymous(t *testing.T) {
	now := time.Now()
	deleted := false
	sessions := &mockSessionRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Session, error) {
			return &domain.Session{ID: id, UserID: 42, LastSeenAt: now, ExpiresAt: now.Add(time.Hour)}, nil
		},
		deleteFn: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}

	svc := NewAuthService(&mockUserRepo{}, sessions, testHasher(), DefaultSessionPolicy())
	session, user, err := svc.Resolve(context.Background(), "orphan")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if session != nil || user != nil {
		t.Error("expected anonymous result")
	}
	if !deleted {
		t.Error("expected orphaned session to be deleted")
	}
}

func TestAuthService_Resolve_StoreError(t *testing.T) {
	sessions := &mockSessionRepo{
		getByIDFn: func(context.Context, string) (*domain.Session, error) {
			return nil, errors.New("redis down")
		},
	}
	svc := NewAuthService(&mockUserRepo{}, sessions, testHasher(), DefaultSessionPolicy())
	if _, _, err := svc.Resolve(context.Background(), "tok"); !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}

func TestAuthService_AddFlash_StartsAnonymousSession(t *testing.T) {
	var saved *domain.Session
	sessions := &mockSessionRepo{
		createFn: func(_ context.Context, s *domain.Session) error {
			saved = s
			return nil
		},
	}
	svc := NewAuthService(&mockUserRepo{}, sessions, testHasher(), DefaultSessionPolicy())

	token, err := svc.AddFlash(context.Background(), "", domain.FlashWarning, "Please log in first.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a new token")
	}
	if saved == nil || !saved.IsAnonymous() || len(saved.Flashes.Warning) != 1 {
		t.Fatalf("unexpected session: %+v", saved)
	}
}

func TestAuthService_ProvisionExternalUser_CreatesMissing(t *testing.T) {
	users := &mockUserRepo{}
	svc := NewAuthService(users, &mockSessionRepo{}, testHasher(), DefaultSessionPolicy())

	user, err := svc.ProvisionExternalUser(context.Background(), "SSO@Example.com", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "sso@example.com" || user.Name != "sso@example.com" {
		t.Errorf("unexpected user: %+v", user)
	}
	if users.createCalls != 1 {
		t.Errorf("expected one create, got %d", users.createCalls)
	}
}

func TestAuthService_ProvisionExternalUser_Existing(t *testing.T) {
	users := &mockUserRepo{
		getByEmailFn: func(_ context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: 3, Email: email}, nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{}, testHasher(), DefaultSessionPolicy())

	user, err := svc.ProvisionExternalUser(context.Background(), "sso@example.com", "SSO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != 3 || users.createCalls != 0 {
		t.Errorf("expected existing user without create, got %+v (creates=%d)", user, users.createCalls)
	}
}

func TestAuthService_PruneSessions(t *testing.T) {
	var gotIdle time.Duration
	sessions := &mockSessionRepo{
		deleteExpiredFn: func(_ context.Context, _ time.Time, idle time.Duration) (int64, error) {
			gotIdle = idle
			return 3, nil
		},
	}
	policy := DefaultSessionPolicy()
	policy.IdleTimeout = 45 * time.Minute
	svc := NewAuthService(&mockUserRepo{}, sessions, testHasher(), policy)
	n, err := svc.PruneSessions(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("expected 3 pruned, got %d (%v)", n, err)
	}
	if gotIdle != 45*time.Minute {
		t.Errorf("expected idle timeout to reach the store, got %v", gotIdle)
	}
}

func TestAuthService_Resolve_TouchAfterDeleteIsAnonymous(t *testing.T) {
	now := time.Now()
	created := 0
	sessions := &mockSessionRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Session, error) {
			return &domain.Session{ID: id, UserID: 1, LastSeenAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)}, nil
		},
		updateFn: func(context.Context, *domain.Session) (bool, error) { return false, nil },
		createFn: func(context.Context, *domain.Session) error {
			created++
			return nil
		},
	}
	svc := NewAuthService(&mockUserRepo{}, sessions, testHasher(), DefaultSessionPolicy())

	session, user, err := svc.Resolve(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session != nil || user != nil {
		t.Fatalf("expected no principal, got %+v %+v", session, user)
	}
	if created != 0 {
		t.Error("a deleted session must not be recreated")
	}
}

func TestAuthService_AddFlash_DeletedSessionStartsFresh(t *testing.T) {
	now := time.Now()
	var created *domain.Session
	sessions := &mockSessionRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Session, error) {
			return &domain.Session{ID: id, UserID: 4, LastSeenAt: now, ExpiresAt: now.Add(time.Hour)}, nil
		},
		updateFn: func(context.Context, *domain.Session) (bool, error) { return false, nil },
		createFn: func(_ context.Context, s *domain.Session) error {
			created = s
			return nil
		},
	}
	svc := NewAuthService(&mockUserRepo{}, sessions, testHasher(), DefaultSessionPolicy())

	token, err := svc.AddFlash(context.Background(), "old", domain.FlashSuccess, "Saved.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" || token == "old" {
		t.Fatalf("expected a fresh token, got %q", token)
	}
	if created == nil || !created.IsAnonymous() || len(created.Flashes.Success) != 1 {
		t.Fatalf("expected anonymous session carrying the flash, got %+v", created)
	}
}

type failingHasher struct {
	hashFn   func(password string) (string, error)
	verifyFn func(password, hash string) bool
}

func (h *failingHasher) Hash(password string) (string, error) { return h.hashFn(password) }

func (h *failingHasher) Verify(password, hash string) bool {
	if h.verifyFn != nil {
		return h.verifyFn(password, hash)
	}
	return false
}

func TestAuthService_Authenticate_TimingDigestFailure(t *testing.T) {
	verified := false
	hasher := &failingHasher{
		hashFn: func(string) (string, error) { return "", errors.New("entropy exhausted") },
		verifyFn: func(string, string) bool {
			verified = true
			return false
		},
	}
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, hasher, DefaultSessionPolicy())

	_, err := svc.Authenticate(context.Background(), "nobody@b.com", "secret")
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("a broken hasher must not pass for an unknown user")
	}
	if verified {
		t.Error("must not verify against an empty digest")
	}
}
