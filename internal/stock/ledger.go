package stock

import (
	"context"
	"errors"
	"time"
)

// ErrRowMissing is returned by TxLedger.GetStock when no balance row exists.
// Apply translates it into lazy creation or StockNotFoundError depending on
// the movement.
var ErrRowMissing = errors.New("stock: row missing")

// TxLedger is the transactional data access Apply needs. Sale and supply
// repositories satisfy it inside their own transactions so a submission's
// stock effects commit atomically with the aggregate itself.
type TxLedger interface {
	GetStock(ctx context.Context, canteenID, itemID int64) (Stock, error)
	SaveStock(ctx context.Context, s Stock) (Stock, error)
	GetHistory(ctx context.Context, canteenID, itemID int64, day time.Time) (History, error)
	SaveHistory(ctx context.Context, h History) (History, error)
}

// ApplyInput describes one signed stock movement.
//
// Delta mutates the live quantity. ReceivedDelta and SoldDelta accumulate into
// the day's history buckets; the split is the caller's responsibility because
// the bucket follows the operation (supply-in vs sale-out), not the sign —
// return-style items sell with a positive Delta but still belong to the sale.
type ApplyInput struct {
	CanteenID int64
	ItemID    int64
	Day       time.Time

	Delta         float64
	ReceivedDelta float64
	SoldDelta     float64

	// RequireExisting fails with StockNotFoundError instead of lazily
	// creating a zero balance. Sales require prior stock; supply does not.
	RequireExisting bool

	// Corrective permits driving the quantity negative (manual set_quantity).
	Corrective bool

	// AdjustedDelta and AdjustmentDescription are only set by manual
	// corrections and accumulate on the history row.
	AdjustedDelta         float64
	AdjustmentDescription string
}

// ApplyResult returns the post-movement balance and history row.
type ApplyResult struct {
	Stock   Stock
	History History
}

// Apply posts one movement against the live balance and the day's history row
// through the given transactional store.
//
// Invariants: opening_stock is captured once, at the day's first movement, and
// never recomputed; closing_stock always mirrors the live quantity after the
// movement; the balance write and the history write share the caller's
// transaction.
func Apply(ctx context.Context, store TxLedger, in ApplyInput, now time.Time) (ApplyResult, error) {
	bal, err := store.GetStock(ctx, in.CanteenID, in.ItemID)
	if err != nil && !errors.Is(err, ErrRowMissing) {
		return ApplyResult{}, err
	}
	if errors.Is(err, ErrRowMissing) {
		if in.RequireExisting {
			return ApplyResult{}, &StockNotFoundError{ItemID: in.ItemID}
		}
		bal = Stock{CanteenID: in.CanteenID, ItemID: in.ItemID}
	}

	before := bal.Quantity
	after := before + in.Delta
	if in.Delta < 0 && !in.Corrective && after < 0 {
		return ApplyResult{}, &InsufficientStockError{
			ItemID:    in.ItemID,
			Available: before,
			Requested: -in.Delta,
		}
	}

	bal.Quantity = after
	bal.UpdatedAt = now
	bal, err = store.SaveStock(ctx, bal)
	if err != nil {
		return ApplyResult{}, err
	}

	hist, err := store.GetHistory(ctx, in.CanteenID, in.ItemID, in.Day)
	if err != nil && !errors.Is(err, ErrRowMissing) {
		return ApplyResult{}, err
	}
	if errors.Is(err, ErrRowMissing) {
		hist = History{
			CanteenID:    in.CanteenID,
			ItemID:       in.ItemID,
			Date:         in.Day,
			OpeningStock: before,
			CreatedAt:    now,
		}
	}

	hist.ReceivedStock = clampZero(hist.ReceivedStock + in.ReceivedDelta)
	hist.SoldStock = clampZero(hist.SoldStock + in.SoldDelta)
	hist.ClosingStock = after
	hist.AdjustedStock += in.AdjustedDelta
	if in.AdjustmentDescription != "" {
		if hist.AdjustmentDescription != "" {
			hist.AdjustmentDescription += "; " + in.AdjustmentDescription
		} else {
			hist.AdjustmentDescription = in.AdjustmentDescription
		}
	}
	hist.UpdatedAt = now

	hist, err = store.SaveHistory(ctx, hist)
	if err != nil {
		return ApplyResult{}, err
	}

	return ApplyResult{Stock: bal, History: hist}, nil
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
