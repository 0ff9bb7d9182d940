package sales

import (
	"errors"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Sale is the single daily sales record of one canteen. At most one exists
// per (canteen, business day).
type Sale struct {
	ID          int64     `json:"id"`
	CanteenID   int64     `json:"canteen_id"`
	Date        time.Time `json:"date"`
	Description string    `json:"description,omitempty"`

	ItemsTotal            float64 `json:"items_total"`
	PreviousDayAdjustment float64 `json:"previous_day_adjustment"`
	PreviousDayReason     string  `json:"previous_day_reason,omitempty"`
	Total                 float64 `json:"total"`

	CashAmount   float64 `json:"cash_amount"`
	OnlineAmount float64 `json:"online_amount"`
	OtherAmount  float64 `json:"other_amount"`

	NextDayAdjustment       float64    `json:"next_day_adjustment"`
	NextDayAdjustmentReason string     `json:"next_day_adjustment_reason,omitempty"`
	VerifiedBy              int64      `json:"verified_by,omitempty"`
	VerifiedAt              *time.Time `json:"verified_at,omitempty"`

	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []SaleItem `json:"items,omitempty"`
}

// Verified reports whether the sale has passed admin verification.
func (s Sale) Verified() bool {
	return s.VerifiedBy != 0
}

// SaleItem is one sold line on a sale. At most one exists per (sale, item);
// resubmissions update the quantity rather than append.
type SaleItem struct {
	ID        int64     `json:"id"`
	SaleID    int64     `json:"sale_id"`
	ItemID    int64     `json:"item_id"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DailySummary is one row of the date-range aggregation.
type DailySummary struct {
	Date         time.Time `json:"date"`
	SaleCount    int64     `json:"sale_count"`
	ItemsTotal   float64   `json:"items_total"`
	Total        float64   `json:"total"`
	CashAmount   float64   `json:"cash_amount"`
	OnlineAmount float64   `json:"online_amount"`
	OtherAmount  float64   `json:"other_amount"`
}

// ErrPaymentMismatch triggered when the payment amounts do not add up to the
// sale total.
var ErrPaymentMismatch = errors.New("sales: payment mismatch")

var amounts = message.NewPrinter(language.English)

// PaymentMismatchError carries the reconciliation context for the client.
type PaymentMismatchError struct {
	Expected              float64
	Provided              float64
	ItemsTotal            float64
	PreviousDayAdjustment float64
}

func (e *PaymentMismatchError) Error() string {
	return amounts.Sprintf("sales: payments %.2f do not match expected total %.2f (items %.2f, previous day adjustment %.2f)",
		e.Provided, e.Expected, e.ItemsTotal, e.PreviousDayAdjustment)
}

// Is lets callers match against ErrPaymentMismatch.
func (e *PaymentMismatchError) Is(target error) bool {
	return target == ErrPaymentMismatch
}
