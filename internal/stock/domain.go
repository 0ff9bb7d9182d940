package stock

import (
	"errors"
	"fmt"
	"time"
)

// Stock is the live per-canteen-per-item balance.
type Stock struct {
	ID        int64     `json:"id"`
	CanteenID int64     `json:"canteen_id"`
	ItemID    int64     `json:"item_id"`
	Quantity  float64   `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// History is the daily per-item ledger row. Exactly one exists per
// (canteen, item, business day).
type History struct {
	ID                    int64     `json:"id"`
	CanteenID             int64     `json:"canteen_id"`
	ItemID                int64     `json:"item_id"`
	Date                  time.Time `json:"date"`
	OpeningStock          float64   `json:"opening_stock"`
	ReceivedStock         float64   `json:"received_stock"`
	SoldStock             float64   `json:"sold_stock"`
	ClosingStock          float64   `json:"closing_stock"`
	AdjustedStock         float64   `json:"adjusted_stock"`
	AdjustmentDescription string    `json:"adjustment_description,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ErrInsufficientStock triggered when a movement would drive quantity negative.
var ErrInsufficientStock = errors.New("stock: insufficient stock")

// ErrStockNotFound indicates a missing stock row where one is required.
var ErrStockNotFound = errors.New("stock: stock row not found")

// InsufficientStockError carries the availability context for the client.
type InsufficientStockError struct {
	ItemID    int64
	Available float64
	Requested float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient stock for item %d: available %.2f, requested %.2f",
		e.ItemID, e.Available, e.Requested)
}

// Is lets callers match against ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// StockNotFoundError identifies the item whose stock row is missing.
type StockNotFoundError struct {
	ItemID int64
}

func (e *StockNotFoundError) Error() string {
	return fmt.Sprintf("stock: no stock row for item %d", e.ItemID)
}

// Is lets callers match against ErrStockNotFound.
func (e *StockNotFoundError) Is(target error) bool {
	return target == ErrStockNotFound
}
