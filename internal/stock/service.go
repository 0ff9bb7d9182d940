package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mealpoint/mealpoint/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListByCanteen(ctx context.Context, canteenID int64) ([]Stock, error)
	HistorySince(ctx context.Context, canteenID, itemID int64, since time.Time) ([]History, error)
}

// CatalogPort resolves items so corrections can reject unknown ids.
type CatalogPort interface {
	ItemExists(ctx context.Context, itemID int64) (bool, error)
}

// Service owns the stock ledger entry points that are not part of a sale or
// supply submission: manual corrections and reads.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, catalog CatalogPort) *Service {
	return &Service{repo: repo, catalog: catalog, now: time.Now}
}

// SetQuantityInput is a direct corrective write of the live quantity.
type SetQuantityInput struct {
	CanteenID   int64
	ItemID      int64
	Quantity    float64
	Description string
}

// SetQuantity overwrites the live quantity, routing the difference through the
// ledger so the day's history stays consistent. It never fails on
// availability; corrections may drive the quantity negative and the callers
// reconcile via the adjustment trail.
func (s *Service) SetQuantity(ctx context.Context, input SetQuantityInput) (Stock, error) {
	if input.CanteenID == 0 || input.ItemID == 0 {
		return Stock{}, fmt.Errorf("stock: canteen and item required: %w", shared.ErrInvalidInput)
	}
	if s.catalog != nil {
		ok, err := s.catalog.ItemExists(ctx, input.ItemID)
		if err != nil {
			return Stock{}, err
		}
		if !ok {
			return Stock{}, fmt.Errorf("stock: item %d: %w", input.ItemID, shared.ErrNotFound)
		}
	}

	now := s.now()
	day := shared.BusinessDay(now)

	var result ApplyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetStock(ctx, input.CanteenID, input.ItemID)
		if err != nil && !errors.Is(err, ErrRowMissing) {
			return err
		}
		delta := input.Quantity - current.Quantity

		in := ApplyInput{
			CanteenID:             input.CanteenID,
			ItemID:                input.ItemID,
			Day:                   day,
			Delta:                 delta,
			Corrective:            true,
			AdjustedDelta:         delta,
			AdjustmentDescription: strings.TrimSpace(input.Description),
		}
		if delta > 0 {
			in.ReceivedDelta = delta
		} else {
			in.SoldDelta = -delta
		}

		result, err = Apply(ctx, tx, in, now)
		return err
	})
	if err != nil {
		return Stock{}, err
	}
	return result.Stock, nil
}

// GetByCanteen lists the live balances for a canteen.
func (s *Service) GetByCanteen(ctx context.Context, canteenID int64) ([]Stock, error) {
	if canteenID == 0 {
		return nil, fmt.Errorf("stock: canteen required: %w", shared.ErrInvalidInput)
	}
	return s.repo.ListByCanteen(ctx, canteenID)
}

// GetHistory returns the last `days` of history for a canteen, optionally for
// a single item.
func (s *Service) GetHistory(ctx context.Context, canteenID, itemID int64, days int) ([]History, error) {
	if canteenID == 0 {
		return nil, fmt.Errorf("stock: canteen required: %w", shared.ErrInvalidInput)
	}
	if days <= 0 {
		days = 30
	}
	since := shared.StartOfDay(s.now()).AddDate(0, 0, -days)
	return s.repo.HistorySince(ctx, canteenID, itemID, since)
}
