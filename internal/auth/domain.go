package auth

import (
	"errors"
	"time"
)

var (
	// ErrEmailTaken is returned when registering an email that already has an account.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrIncorrectPassword is returned when the current password does not match.
	ErrIncorrectPassword = errors.New("auth: old password is incorrect")
	// ErrPasswordMismatch is returned when a confirmation field differs.
	ErrPasswordMismatch = errors.New("auth: passwords do not match")
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	IsActive     bool
	IsBlocked    bool
	IsStaff      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Blocked reports whether the account may no longer hold a session.
func (u *User) Blocked() bool {
	return !u.IsActive || u.IsBlocked
}

// CreateUserParams carries the fields persisted for a new account.
type CreateUserParams struct {
	Email        string
	Username     string
	PasswordHash string
	IsStaff      bool
	CreatedAt    time.Time
}
