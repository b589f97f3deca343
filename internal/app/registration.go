package app

import (
	"context"
	"errors"
	"strings"

	"todolist/internal/domain"
)

// RegistrationForm is a submitted sign-up form.
type RegistrationForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Validate runs the checks that need no store access. All problems are
// reported, not just the first.
func (f RegistrationForm) Validate() []Problem {
	var problems []Problem
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Email) == "" || f.Password == "" || f.ConfirmPassword == "" {
		problems = append(problems, MissingFields)
	}
	if f.Password != f.ConfirmPassword {
		problems = append(problems, PasswordMismatch)
	}
	if len(f.Password) > 72 {
		problems = append(problems, PasswordTooLong)
	}
	return problems
}

func (f RegistrationForm) invalid(problems ...Problem) *ValidationError {
	return &ValidationError{
		Problems: problems,
		Fields:   map[string]string{"name": f.Name, "email": f.Email},
	}
}

// Register validates form and creates the account. A rejected form returns
// *ValidationError and nothing is persisted.
func (s *AuthService) Register(ctx context.Context, form RegistrationForm) (*domain.User, error) {
	if problems := form.Validate(); len(problems) > 0 {
		return nil, form.invalid(problems...)
	}

	email := domain.NormalizeEmail(form.Email)
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, storeFailure("get user by email", err)
	}
	if existing != nil {
		return nil, form.invalid(DuplicateEmail)
	}

	hash, err := s.hasher.Hash(form.Password)
	if errors.Is(err, ErrPasswordTooLong) {
		return nil, form.invalid(PasswordTooLong)
	}
	if err != nil {
		return nil, err
	}

	candidate, err := domain.NewUser(form.Name, email, hash)
	if err != nil {
		return nil, form.invalid(MissingFields)
	}

	user, err := s.users.Create(ctx, candidate)
	if errors.Is(err, domain.ErrDuplicateEmail) {
		return nil, form.invalid(DuplicateEmail)
	}
	if err != nil {
		return nil, storeFailure("create user", err)
	}
	return user, nil
}
