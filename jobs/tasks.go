package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCanteenAutoUnlock is the task type for the daily lock sweep.
	TaskCanteenAutoUnlock = "canteen:auto_unlock"
	// AutoUnlockCronSpec runs the sweep shortly after midnight so locks from
	// the previous day are released before the canteens open.
	AutoUnlockCronSpec = "5 0 * * *"
)

// AutoUnlockPayload carries the trigger metadata of a sweep run.
type AutoUnlockPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewAutoUnlockTask constructs an Asynq task for the lock sweep.
func NewAutoUnlockTask() (*asynq.Task, error) {
	data, err := json.Marshal(AutoUnlockPayload{RequestedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCanteenAutoUnlock, data), nil
}
