package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// CanteenUnlocker is the slice of the canteen service the sweep needs.
type CanteenUnlocker interface {
	AutoUnlock(ctx context.Context) (int64, error)
}

// NewAutoUnlockHandler builds the handler for TaskCanteenAutoUnlock tasks.
// The sweep is idempotent, so retries after partial failures are safe.
func NewAutoUnlockHandler(logger *slog.Logger, canteens CanteenUnlocker) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AutoUnlockPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}

		count, err := canteens.AutoUnlock(ctx)
		if err != nil {
			logger.Error("auto unlock sweep", slog.Any("error", err))
			return err
		}
		logger.Info("auto unlock sweep done",
			slog.Int64("unlocked", count),
			slog.Time("requested_at", payload.RequestedAt))
		return nil
	}
}
