package presence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/marquee-ott/marquee/internal/clock"
)

// writeTimeout bounds how long a request may wait on its presence write.
const writeTimeout = 2 * time.Second

// Observer is notified of every presence write attempt. err is nil on success.
type Observer interface {
	ObservePresenceWrite(err error)
}

// Tracker refreshes last_seen on authenticated activity and answers online queries.
type Tracker struct {
	repo      Repository
	clock     clock.Clock
	threshold time.Duration
	logger    *slog.Logger
	observer  Observer
}

// NewTracker constructs a Tracker. A non-positive threshold falls back to DefaultThreshold.
func NewTracker(repo Repository, clk clock.Clock, threshold time.Duration, logger *slog.Logger) *Tracker {
	if clk == nil {
		clk = clock.System{}
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{repo: repo, clock: clk, threshold: threshold, logger: logger}
}

// WithObserver attaches an Observer and returns the tracker.
func (t *Tracker) WithObserver(o Observer) *Tracker {
	t.observer = o
	return t
}

// Threshold returns the online window.
func (t *Tracker) Threshold() time.Duration {
	return t.threshold
}

// RecordActivity stamps the user's last_seen with the current time, creating the
// record when it is missing. Storage failures are logged and dropped: presence
// is advisory and must never fail the request that triggered it.
func (t *Tracker) RecordActivity(ctx context.Context, userID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	now := t.clock.Now()
	err := t.repo.Touch(ctx, userID, now)
	if errors.Is(err, ErrNotFound) {
		err = t.repo.Create(ctx, userID, now)
	}
	if err != nil {
		t.logger.Warn("presence write failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	if t.observer != nil {
		t.observer.ObservePresenceWrite(err)
	}
}

// ListPresence returns the derived status of every user.
func (t *Tracker) ListPresence(ctx context.Context) ([]Status, error) {
	activity, err := t.repo.ListActivity(ctx)
	if err != nil {
		return nil, err
	}
	now := t.clock.Now()
	out := make([]Status, 0, len(activity))
	for _, a := range activity {
		st := Status{UserID: a.UserID, Username: a.Username, Email: a.Email, LastSeen: a.LastSeen}
		if a.LastSeen != nil {
			st.IsOnline = IsOnline(Record{UserID: a.UserID, LastSeen: *a.LastSeen}, now, t.threshold)
		}
		out = append(out, st)
	}
	return out, nil
}
