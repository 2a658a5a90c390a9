package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/marquee-ott/marquee/internal/storage"
)

// MediaPurgeJob deletes objects from the media store.
type MediaPurgeJob struct {
	Store    storage.Store
	Logger   *slog.Logger
	Observer Observer
}

// NewMediaPurgeJob initialises the purge handler.
func NewMediaPurgeJob(store storage.Store, logger *slog.Logger, observer Observer) *MediaPurgeJob {
	return &MediaPurgeJob{Store: store, Logger: logger, Observer: observer}
}

// Handle removes every key in the payload. Invalid keys are skipped, storage
// failures are retried.
func (j *MediaPurgeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("media purge: handler not configured")
	}
	started := time.Now()
	defer func() {
		if j.Observer != nil {
			j.Observer.ObserveJob(TaskMediaPurge, started, err)
		}
	}()

	var payload MediaPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("media purge: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	logger := j.logger().With(slog.String("reason", payload.Reason))
	var failed []error
	for _, key := range payload.Keys {
		if key == "" {
			continue
		}
		if delErr := j.Store.Delete(ctx, key); delErr != nil {
			if errors.Is(delErr, storage.ErrInvalidKey) {
				logger.Warn("skipping invalid media key", slog.String("key", key))
				continue
			}
			failed = append(failed, delErr)
			continue
		}
		logger.Info("purged media object", slog.String("key", key))
	}
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	return nil
}

func (j *MediaPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
