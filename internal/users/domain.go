// Package users serves the signed-in user's profile.
package users

import (
	"errors"
	"time"
)

// ErrInvalidProfile wraps validation failures.
var ErrInvalidProfile = errors.New("users: invalid profile")

// Profile is the self-service view of an account.
type Profile struct {
	ID            int64
	Email         string
	Username      string
	IsStaff       bool
	Phone         string
	Hobbies       string
	Bio           string
	ProfilePicKey string
	UpdatedAt     time.Time
}

// ProfileInput carries a partial update. Nil fields are left untouched.
type ProfileInput struct {
	Phone   *string `validate:"omitempty,max=20"`
	Hobbies *string `validate:"omitempty,max=255"`
	Bio     *string `validate:"omitempty,max=5000"`
}
