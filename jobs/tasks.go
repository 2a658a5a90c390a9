package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMediaPurge removes stored media objects that are no longer referenced.
	TaskMediaPurge = "media:purge"
	// TaskSessionSweep deletes expired rows from user_sessions.
	TaskSessionSweep = "sessions:sweep"
)

// Observer receives the outcome of every processed task.
type Observer interface {
	ObserveJob(task string, started time.Time, err error)
}

// MediaPurgePayload lists the object keys to remove.
type MediaPurgePayload struct {
	Keys   []string `json:"keys"`
	Reason string   `json:"reason,omitempty"`
}

// NewMediaPurgeTask constructs an Asynq task.
func NewMediaPurgeTask(payload MediaPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMediaPurge, data, asynq.MaxRetry(10)), nil
}

// SessionSweepPayload configures how long expired sessions are kept.
type SessionSweepPayload struct {
	Grace time.Duration `json:"grace"`
}

// NewSessionSweepTask constructs an Asynq task.
func NewSessionSweepTask(grace time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(SessionSweepPayload{Grace: grace})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionSweep, data), nil
}
