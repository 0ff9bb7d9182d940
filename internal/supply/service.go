package supply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mealpoint/mealpoint/internal/canteen"
	"github.com/mealpoint/mealpoint/internal/masterdata"
	"github.com/mealpoint/mealpoint/internal/shared"
	"github.com/mealpoint/mealpoint/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, id int64) (Supply, error)
	List(ctx context.Context, canteenID int64, limit int) ([]Supply, error)
	ListItemMovements(ctx context.Context, itemID int64, from, to time.Time) ([]Supply, error)
}

// CatalogPort resolves catalog items for supply lines.
type CatalogPort interface {
	GetItem(ctx context.Context, id int64) (masterdata.Item, error)
}

// CanteenPort verifies the endpoints of a transfer.
type CanteenPort interface {
	Get(ctx context.Context, id int64) (canteen.Canteen, error)
}

// Service owns supply transfers between canteens.
type Service struct {
	repo     RepositoryPort
	catalog  CatalogPort
	canteens CanteenPort
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, catalog CatalogPort, canteens CanteenPort) *Service {
	return &Service{repo: repo, catalog: catalog, canteens: canteens, now: time.Now}
}

// ItemInput is one signed movement to append. Negative quantities correct
// earlier deliveries and are bounded by the destination's available stock.
// A zero UnitPrice falls back to the item's catalog MRP.
type ItemInput struct {
	ItemID    int64
	Quantity  float64
	UnitPrice float64
}

// AddItemsInput appends movements to the day's transfer between two canteens.
type AddItemsInput struct {
	FromCanteenID int64
	ToCanteenID   int64
	Items         []ItemInput
}

// AddItems records movements on the current business day's supply for the
// given canteen pair, creating the supply on first use. Each movement adjusts
// the destination's stock; the supply row and the stock effects commit
// together.
func (s *Service) AddItems(ctx context.Context, actor *shared.AuthContext, input AddItemsInput) (Supply, error) {
	if err := s.validateAddItems(input); err != nil {
		return Supply{}, err
	}
	if !actor.CanAccessCanteen(input.ToCanteenID) {
		return Supply{}, fmt.Errorf("supply: destination canteen %d: %w", input.ToCanteenID, shared.ErrForbidden)
	}

	if _, err := s.canteens.Get(ctx, input.FromCanteenID); err != nil {
		return Supply{}, err
	}
	dest, err := s.canteens.Get(ctx, input.ToCanteenID)
	if err != nil {
		return Supply{}, err
	}
	if dest.IsLocked {
		return Supply{}, fmt.Errorf("supply: destination canteen %d: %w", dest.ID, shared.ErrAlreadyLocked)
	}

	catalog, err := s.resolveItems(ctx, input.Items)
	if err != nil {
		return Supply{}, err
	}

	now := s.now()
	day := shared.BusinessDay(now)

	var supplyID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sup, err := tx.GetSupplyForDay(ctx, input.FromCanteenID, input.ToCanteenID, day)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				return err
			}
			sup = Supply{
				FromCanteenID: input.FromCanteenID,
				ToCanteenID:   input.ToCanteenID,
				Date:          day,
				CreatedBy:     actor.UserID,
				CreatedAt:     now,
			}
		}
		if sup.IsLocked {
			return fmt.Errorf("supply %d: %w", sup.ID, shared.ErrLockedSupply)
		}
		sup.UpdatedAt = now
		sup, err = tx.SaveSupply(ctx, sup)
		if err != nil {
			return err
		}

		for _, in := range input.Items {
			movement := stock.ApplyInput{
				CanteenID: input.ToCanteenID,
				ItemID:    in.ItemID,
				Day:       day,
				Delta:     in.Quantity,
			}
			if in.Quantity > 0 {
				movement.ReceivedDelta = in.Quantity
			} else {
				movement.SoldDelta = -in.Quantity
			}
			if _, err := stock.Apply(ctx, tx, movement, now); err != nil {
				return err
			}

			price := in.UnitPrice
			if price == 0 {
				price = catalog[in.ItemID].MRP
			}
			if _, err := tx.AppendItem(ctx, SupplyItem{
				SupplyID:  sup.ID,
				ItemID:    in.ItemID,
				Quantity:  in.Quantity,
				UnitPrice: price,
				CreatedBy: actor.UserID,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		supplyID = sup.ID
		return nil
	})
	if err != nil {
		return Supply{}, err
	}
	return s.repo.GetByID(ctx, supplyID)
}

func (s *Service) validateAddItems(input AddItemsInput) error {
	if input.FromCanteenID == 0 || input.ToCanteenID == 0 {
		return fmt.Errorf("supply: both canteens required: %w", shared.ErrInvalidInput)
	}
	if input.FromCanteenID == input.ToCanteenID {
		return fmt.Errorf("supply: canteens must differ: %w", shared.ErrInvalidInput)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("supply: at least one item required: %w", shared.ErrInvalidInput)
	}
	for _, it := range input.Items {
		if it.ItemID == 0 || it.Quantity == 0 {
			return fmt.Errorf("supply: item %d: quantity must be non-zero: %w", it.ItemID, shared.ErrInvalidInput)
		}
		if it.UnitPrice < 0 {
			return fmt.Errorf("supply: item %d: unit price must not be negative: %w", it.ItemID, shared.ErrInvalidInput)
		}
	}
	return nil
}

func (s *Service) resolveItems(ctx context.Context, items []ItemInput) (map[int64]masterdata.Item, error) {
	resolved := make([]masterdata.Item, len(items))
	g, ctx := errgroup.WithContext(ctx)
	for i, in := range items {
		g.Go(func() error {
			item, err := s.catalog.GetItem(ctx, in.ItemID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return &masterdata.ItemNotFoundError{ItemID: in.ItemID}
				}
				return err
			}
			resolved[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[int64]masterdata.Item, len(resolved))
	for _, item := range resolved {
		out[item.ID] = item
	}
	return out, nil
}

// RemoveItem deletes one movement and reverses its stock effect on the
// destination. The reversal is corrective: it always succeeds even when the
// stock has been consumed since, and the day's received bucket floors at
// zero. An emptied supply is deleted with its last item.
func (s *Service) RemoveItem(ctx context.Context, actor *shared.AuthContext, supplyItemID int64) error {
	now := s.now()
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		it, err := tx.GetItem(ctx, supplyItemID)
		if err != nil {
			return err
		}
		sup, err := tx.GetSupplyForUpdate(ctx, it.SupplyID)
		if err != nil {
			return err
		}
		if !actor.CanAccessCanteen(sup.ToCanteenID) {
			return fmt.Errorf("supply: destination canteen %d: %w", sup.ToCanteenID, shared.ErrForbidden)
		}
		if sup.IsLocked {
			return fmt.Errorf("supply %d: %w", sup.ID, shared.ErrLockedSupply)
		}

		movement := stock.ApplyInput{
			CanteenID:  sup.ToCanteenID,
			ItemID:     it.ItemID,
			Day:        sup.Date,
			Delta:      -it.Quantity,
			Corrective: true,
		}
		if it.Quantity > 0 {
			movement.ReceivedDelta = -it.Quantity
		} else {
			movement.SoldDelta = it.Quantity
		}
		if _, err := stock.Apply(ctx, tx, movement, now); err != nil {
			return err
		}

		if err := tx.DeleteItem(ctx, it.ID); err != nil {
			return err
		}

		rest, err := tx.ListItems(ctx, sup.ID)
		if err != nil {
			return err
		}
		if len(rest) == 0 {
			return tx.DeleteSupply(ctx, sup.ID)
		}
		sup.UpdatedAt = now
		_, err = tx.SaveSupply(ctx, sup)
		return err
	})
}

// GetByID fetches one supply with its items, enforcing canteen access.
func (s *Service) GetByID(ctx context.Context, actor *shared.AuthContext, id int64) (Supply, error) {
	sup, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Supply{}, err
	}
	if !actor.CanAccessCanteen(sup.ToCanteenID) && !actor.CanAccessCanteen(sup.FromCanteenID) {
		return Supply{}, fmt.Errorf("supply %d: %w", id, shared.ErrForbidden)
	}
	return sup, nil
}

// List returns recent supplies. Managers only see transfers touching their
// own canteen.
func (s *Service) List(ctx context.Context, actor *shared.AuthContext, canteenID int64, limit int) ([]Supply, error) {
	if actor != nil && actor.Role == shared.RoleManager {
		canteenID = actor.CanteenID
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.List(ctx, canteenID, limit)
}

// ItemMovements returns every movement of one item in a calendar month.
func (s *Service) ItemMovements(ctx context.Context, itemID int64, year int, month time.Month) ([]Supply, error) {
	if itemID == 0 {
		return nil, fmt.Errorf("supply: item required: %w", shared.ErrInvalidInput)
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	return s.repo.ListItemMovements(ctx, itemID, from, from.AddDate(0, 1, 0))
}
