package auth

import "time"

// User is an account that can sign in. Managers carry the canteen they are
// assigned to; admin roles are not bound to a canteen.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CanteenID    int64     `json:"canteen_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
