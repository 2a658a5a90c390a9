package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SessionSweepJob prunes the login audit table.
type SessionSweepJob struct {
	DB       Execer
	Logger   *slog.Logger
	Observer Observer
	now      func() time.Time
}

// NewSessionSweepJob initialises the sweep handler.
func NewSessionSweepJob(db Execer, logger *slog.Logger, observer Observer) *SessionSweepJob {
	return &SessionSweepJob{DB: db, Logger: logger, Observer: observer, now: func() time.Time { return time.Now().UTC() }}
}

// Handle deletes sessions that expired more than the payload's grace period ago.
func (j *SessionSweepJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.DB == nil {
		return errors.New("session sweep: handler not configured")
	}
	started := time.Now()
	defer func() {
		if j.Observer != nil {
			j.Observer.ObserveJob(TaskSessionSweep, started, err)
		}
	}()

	var payload SessionSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	cutoff := j.now().Add(-payload.Grace)
	tag, err := j.DB.Exec(ctx, `DELETE FROM user_sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return err
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("swept expired sessions", slog.Int64("deleted", tag.RowsAffected()), slog.Time("cutoff", cutoff))
	return nil
}
