package supply

import "time"

// Supply is one day's transfer record between two canteens. At most one
// exists per (from, to, business day); its items form an append-only history
// of the day's movements.
type Supply struct {
	ID            int64     `json:"id"`
	FromCanteenID int64     `json:"from_canteen_id"`
	ToCanteenID   int64     `json:"to_canteen_id"`
	Date          time.Time `json:"date"`
	IsLocked      bool      `json:"is_locked"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Items []SupplyItem `json:"items,omitempty"`
}

// SupplyItem is one signed movement on a supply. Positive quantities deliver
// stock to the destination, negative ones correct earlier deliveries. Rows
// are never updated in place; corrections append.
type SupplyItem struct {
	ID        int64     `json:"id"`
	SupplyID  int64     `json:"supply_id"`
	ItemID    int64     `json:"item_id"`
	Quantity  float64   `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	CreatedBy int64     `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
