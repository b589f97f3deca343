package app

import (
	"context"
	"errors"
	"testing"

	"todolist/internal/domain"
)

func TestRegistrationForm_Validate(t *testing.T) {
	tests := []struct {
		name string
		form RegistrationForm
		want []Problem
	}{
		{"valid", RegistrationForm{"Ann", "a@b.com", "pw", "pw"}, nil},
		{"missing name", RegistrationForm{"", "a@b.com", "pw", "pw"}, []Problem{MissingFields}},
		{"mismatch", RegistrationForm{"Ann", "a@b.com", "pw", "px"}, []Problem{PasswordMismatch}},
		{"missing and mismatch", RegistrationForm{"Ann", "a@b.com", "pw", ""}, []Problem{MissingFields, PasswordMismatch}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.form.Validate()
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestAuthService_Register_Success(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(_ context.Context, u *domain.User) (*domain.User, error) {
			if u.PasswordHash == "" || u.PasswordHash == "pw" {
				t.Errorf("expected hashed password, got %q", u.PasswordHash)
			}
			if u.Email != "a@b.com" {
				t.Errorf("expected normalized email, got %q", u.Email)
			}
			created := *u
			created.ID = 5
			return &created, nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{}, testHasher(), DefaultSessionPolicy())

	user, err := svc.Register(context.Background(), RegistrationForm{"Ann", "A@b.com", "pw", "pw"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != 5 {
		t.Errorf("expected id 5, got %d", user.ID)
	}
}

func TestAuthService_Register_MismatchNeverCreates(t *testing.T) {
	users := &mockUserRepo{
		getByEmailFn: func(context.Context, string) (*domain.User, error) {
			t.Error("store must not be consulted when local checks fail")
			return nil, nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{}, testHasher(), DefaultSessionPolicy())

	_, err := svc.Register(context.Background(), RegistrationForm{"Ann", "a@b.com", "pw", "other"})
	var verr *ValidationError
	if !errors.As(err, &verr) || !verr.Has(PasswordMismatch) {
		t.Fatalf("expected PasswordMismatch, got %v", err)
	}
	if users.createCalls != 0 {
		t.Error("create must not be called")
	}
}

func TestAuthService_Register_DuplicateEmailNeverCreates(t *testing.T) {
	users := &mockUserRepo{
		getByEmailFn: func(context.Context, string) (*domain.User, error) {
			return &domain.User{ID: 1, Email: "a@b.com"}, nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{}, testHasher(), DefaultSessionPolicy())

	_, err := svc.Register(context.Background(), RegistrationForm{"Ann", "a@b.com", "pw", "pw"})
	var verr *ValidationError
	if !errors.As(err, &verr) || !verr.Has(DuplicateEmail) {
		t.Fatalf("expected DuplicateEmail, got %v", err)
	}
	if users.createCalls != 0 {
		t.Error("create must not be called")
	}
}

func TestAuthService_Register_DuplicateRace(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(context.Context, *domain.User) (*domain.User, error) {
			return nil, domain.ErrDuplicateEmail
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{}, testHasher(), DefaultSessionPolicy())

	_, err := svc.Register(context.Background(), RegistrationForm{"Ann", "a@b.com", "pw", "pw"})
	var verr *ValidationError
	if !errors.As(err, &verr) || !verr.Has(DuplicateEmail) {
		t.Fatalf("expected DuplicateEmail, got %v", err)
	}
}

func TestAuthService_Register_MissingNameKeepsValues(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, testHasher(), DefaultSessionPolicy())

	_, err := svc.Register(context.Background(), RegistrationForm{"", "a@b.com", "pw", "pw"})
	var verr *ValidationError
	if !errors.As(err, &verr) || !verr.Has(MissingFields) {
		t.Fatalf("expected MissingFields, got %v", err)
	}
	if verr.Fields["email"] != "a@b.com" {
		t.Errorf("expected email to be kept, got %q", verr.Fields["email"])
	}
	if _, ok := verr.Fields["password"]; ok {
		t.Error("password must not be echoed back")
	}
}
