// Package presence keeps each authenticated user's last-seen timestamp current
// and derives online status from it at read time.
package presence

import (
	"errors"
	"time"
)

// DefaultThreshold is how recent a user's last request must be for the user to
// count as online.
const DefaultThreshold = 5 * time.Second

// ErrNotFound is returned by stores when a user has no presence record yet.
var ErrNotFound = errors.New("presence: record not found")

// Record is the single presence row owned by a user.
type Record struct {
	UserID   int64
	LastSeen time.Time
}

// IsOnline reports whether now is strictly within threshold of rec.LastSeen.
func IsOnline(rec Record, now time.Time, threshold time.Duration) bool {
	return now.Sub(rec.LastSeen) < threshold
}

// Activity is a user joined with its presence record. LastSeen is nil when the
// user has no record.
type Activity struct {
	UserID   int64
	Username string
	Email    string
	LastSeen *time.Time
}

// Status is the derived presence of a user at a given instant.
type Status struct {
	UserID   int64      `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"-"`
}
