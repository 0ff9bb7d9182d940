package masterdata

import (
	"fmt"
	"time"

	"github.com/mealpoint/mealpoint/internal/shared"
)

// StockEffect describes what a sale of an item does to stock.
type StockEffect string

const (
	// StockEffectDecreases is the normal behaviour: selling removes stock.
	StockEffectDecreases StockEffect = "decreases"
	// StockEffectIncreases marks return-style items (crates, containers)
	// whose sale adds stock back.
	StockEffectIncreases StockEffect = "increases"
)

// Valid reports whether the effect is a known value.
func (e StockEffect) Valid() bool {
	return e == StockEffectDecreases || e == StockEffectIncreases
}

// Category groups items and carries the default stock effect for new items.
type Category struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	StockEffect StockEffect `json:"stock_effect"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Unit is a measurement unit for items.
type Unit struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

// Item is a sellable catalog entry.
type Item struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	CategoryID  int64       `json:"category_id"`
	UnitID      int64       `json:"unit_id"`
	MRP         float64     `json:"mrp"`
	StockEffect StockEffect `json:"stock_effect"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IncreasesStock reports whether selling the item adds stock.
func (i Item) IncreasesStock() bool {
	return i.StockEffect == StockEffectIncreases
}

// ItemNotFoundError identifies the missing item in a failed submission.
type ItemNotFoundError struct {
	ItemID int64
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("masterdata: item %d not found", e.ItemID)
}

// Is lets callers match against shared.ErrNotFound.
func (e *ItemNotFoundError) Is(target error) bool {
	return target == shared.ErrNotFound
}
