package canteen

import "time"

// Canteen is one serving location. The lock fields gate mutations elsewhere:
// a locked canteen rejects sale and supply submissions until unlocked.
type Canteen struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Location   string     `json:"location,omitempty"`
	IsActive   bool       `json:"is_active"`
	IsLocked   bool       `json:"is_locked"`
	LockedAt   *time.Time `json:"locked_at,omitempty"`
	LockedBy   string     `json:"locked_by,omitempty"`
	LockReason string     `json:"lock_reason,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
