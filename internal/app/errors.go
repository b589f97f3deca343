package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

var (
	// ErrInvalidCredentials is the single user-facing outcome of a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrStore marks a failure of the underlying user, session or task store.
	ErrStore = errors.New("store failure")
	// ErrTaskNotFound indicates the task does not exist for the requesting user.
	ErrTaskNotFound = errors.New("task not found")
)

// AuthFailure is the internal reason a login attempt was rejected.
type AuthFailure string

// Login failure reasons. Both map to ErrInvalidCredentials for callers.
const (
	NoSuchUser  AuthFailure = "no_such_user"
	BadPassword AuthFailure = "bad_password"
)

// AuthError reports a rejected login. It matches ErrInvalidCredentials under
// errors.Is so the reason never has to reach the user.
type AuthError struct {
	Reason AuthFailure
}

func (e *AuthError) Error() string {
	return ErrInvalidCredentials.Error()
}

// Is makes AuthError match ErrInvalidCredentials.
func (e *AuthError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// Problem is a single validation failure code.
type Problem string

// Validation problems.
const (
	MissingFields    Problem = "missing_fields"
	PasswordMismatch Problem = "password_mismatch"
	DuplicateEmail   Problem = "duplicate_email"
	PasswordTooLong  Problem = "password_too_long"
	NameRequired     Problem = "name_required"
	NameTooLong      Problem = "name_too_long"
)

var problemMessages = map[Problem]string{
	MissingFields:    "All fields are required!",
	PasswordMismatch: "Password and Confirm Password do not match!",
	DuplicateEmail:   "User already exists.",
	PasswordTooLong:  "Password must be at most 72 bytes.",
	NameRequired:     "Task name is required.",
	NameTooLong:      fmt.Sprintf("Task name must be at most %d characters.", MaxTaskNameLen),
}

// Message returns the user-facing text for p.
func (p Problem) Message() string {
	if m, ok := problemMessages[p]; ok {
		return m
	}
	return string(p)
}

// ValidationError carries every problem found in a submission together with
// the non-secret field values to re-display.
type ValidationError struct {
	Problems []Problem
	Fields   map[string]string
}

func (e *ValidationError) Error() string {
	codes := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		codes[i] = string(p)
	}
	return "validation failed: " + strings.Join(codes, ", ")
}

// Has reports whether p is among the problems.
func (e *ValidationError) Has(p Problem) bool {
	for _, got := range e.Problems {
		if got == p {
			return true
		}
	}
	return false
}

// Messages returns the user-facing text of every problem, in order.
func (e *ValidationError) Messages() []string {
	out := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p.Message()
	}
	return out
}

func storeFailure(op string, err error) error {
	return oops.Code("STORE_FAILURE").
		With("operation", op).
		Wrap(fmt.Errorf("%w: %w", ErrStore, err))
}
