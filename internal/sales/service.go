package sales

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mealpoint/mealpoint/internal/canteen"
	"github.com/mealpoint/mealpoint/internal/masterdata"
	"github.com/mealpoint/mealpoint/internal/shared"
	"github.com/mealpoint/mealpoint/internal/stock"
)

// paymentTolerance is the largest accepted gap between the declared payments
// and the computed total.
const paymentTolerance = 0.01

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, canteenID int64, limit int) ([]Sale, error)
	SummarizeRange(ctx context.Context, canteenID int64, from, to time.Time) ([]DailySummary, error)
}

// CatalogPort resolves catalog items for sale lines.
type CatalogPort interface {
	GetItem(ctx context.Context, id int64) (masterdata.Item, error)
}

// CanteenPort is the slice of the canteen service a sale needs: existence and
// lock state before a submission, and the verification lock afterwards.
type CanteenPort interface {
	Get(ctx context.Context, id int64) (canteen.Canteen, error)
	VerificationLock(ctx context.Context, id int64, lockedBy, reason string) (canteen.Canteen, error)
}

// Service owns the daily sale lifecycle: submission, verification and reads.
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

// ItemInput is one submitted sale line. Price zero falls back to the item MRP.
type ItemInput struct {
	ItemID   int64
	Quantity float64
	Price    float64
}

// SubmitInput is a full sale submission for one canteen and business day.
// Items listed replace the previous submission: lines for items no longer
// present are removed and their stock restored.
type SubmitInput struct {
	CanteenID             int64
	Description           string
	PreviousDayAdjustment *float64
	PreviousDayReason     string
	CashAmount            float64
	OnlineAmount          float64
	OtherAmount           float64
	Items                 []ItemInput
}

type resolvedLine struct {
	input ItemInput
	item  masterdata.Item
	price float64
}

// CreateOrUpdate records the canteen's sale for the current business day,
// creating it on first submission and replacing its lines afterwards.
func (s *Service) CreateOrUpdate(ctx context.Context, actor *shared.AuthContext, input SubmitInput) (Sale, error) {
	return s.submit(ctx, actor, 0, input)
}

// Update replays a submission against an existing sale. It only works while
// the sale's business day is still current; older sales are frozen.
func (s *Service) Update(ctx context.Context, actor *shared.AuthContext, saleID int64, input SubmitInput) (Sale, error) {
	if saleID == 0 {
		return Sale{}, fmt.Errorf("sales: sale id required: %w", shared.ErrInvalidInput)
	}
	return s.submit(ctx, actor, saleID, input)
}

func (s *Service) submit(ctx context.Context, actor *shared.AuthContext, saleID int64, input SubmitInput) (Sale, error) {
	if err := s.validateSubmit(input); err != nil {
		return Sale{}, err
	}
	if !actor.CanAccessCanteen(input.CanteenID) {
		return Sale{}, fmt.Errorf("sales: canteen %d: %w", input.CanteenID, shared.ErrForbidden)
	}

	c, err := s.canteens.Get(ctx, input.CanteenID)
	if err != nil {
		return Sale{}, err
	}
	if c.IsLocked {
		return Sale{}, fmt.Errorf("sales: canteen %d: %w", c.ID, shared.ErrAlreadyLocked)
	}

	lines, err := s.resolveLines(ctx, input.Items)
	if err != nil {
		return Sale{}, err
	}

	now := s.now()
	day := shared.BusinessDay(now)

	var itemsTotal float64
	for _, l := range lines {
		itemsTotal += shared.Round2(l.input.Quantity * l.price)
	}
	itemsTotal = shared.Round2(itemsTotal)

	var out Sale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := s.loadTarget(ctx, tx, saleID, input.CanteenID, day)
		if err != nil {
			return err
		}

		if sale.ID == 0 {
			sale.CanteenID = input.CanteenID
			sale.Date = day
			sale.CreatedBy = actor.UserID
			sale.CreatedAt = now
			adj, adjReason, err := s.resolveAdjustment(ctx, tx, input, day)
			if err != nil {
				return err
			}
			sale.PreviousDayAdjustment = adj
			sale.PreviousDayReason = adjReason
		}
		// an existing sale keeps its stored adjustment for life

		sale.Description = strings.TrimSpace(input.Description)
		sale.ItemsTotal = itemsTotal
		sale.Total = shared.Round2(itemsTotal + sale.PreviousDayAdjustment)
		sale.CashAmount = input.CashAmount
		sale.OnlineAmount = input.OnlineAmount
		sale.OtherAmount = input.OtherAmount
		sale.UpdatedAt = now

		provided := shared.Round2(input.CashAmount + input.OnlineAmount + input.OtherAmount)
		if math.Abs(provided-sale.Total) > paymentTolerance {
			return &PaymentMismatchError{
				Expected:              sale.Total,
				Provided:              provided,
				ItemsTotal:            sale.ItemsTotal,
				PreviousDayAdjustment: sale.PreviousDayAdjustment,
			}
		}

		sale, err = tx.SaveSale(ctx, sale)
		if err != nil {
			return err
		}

		if err := s.applyLines(ctx, tx, sale, lines, day, now); err != nil {
			return err
		}

		out = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	return s.repo.GetByID(ctx, out.ID)
}

func (s *Service) validateSubmit(input SubmitInput) error {
	if input.CanteenID == 0 {
		return fmt.Errorf("sales: canteen required: %w", shared.ErrInvalidInput)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("sales: at least one item required: %w", shared.ErrInvalidInput)
	}
	seen := make(map[int64]bool, len(input.Items))
	for _, it := range input.Items {
		if it.ItemID == 0 || it.Quantity <= 0 || it.Price < 0 {
			return fmt.Errorf("sales: item %d: quantity must be > 0 and price >= 0: %w", it.ItemID, shared.ErrInvalidInput)
		}
		if seen[it.ItemID] {
			return fmt.Errorf("sales: item %d listed twice: %w", it.ItemID, shared.ErrInvalidInput)
		}
		seen[it.ItemID] = true
	}
	if input.CashAmount < 0 || input.OnlineAmount < 0 || input.OtherAmount < 0 {
		return fmt.Errorf("sales: payment amounts must be >= 0: %w", shared.ErrInvalidInput)
	}
	return nil
}

// resolveLines fetches the catalog items of a submission concurrently.
func (s *Service) resolveLines(ctx context.Context, items []ItemInput) ([]resolvedLine, error) {
	lines := make([]resolvedLine, len(items))
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
			price := in.Price
			if price == 0 {
				price = item.MRP
			}
			lines[i] = resolvedLine{input: in, item: item, price: price}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lines, nil
}

// loadTarget fetches the sale being written: by id for explicit updates, by
// (canteen, day) otherwise. A zero-ID result means first submission today.
func (s *Service) loadTarget(ctx context.Context, tx TxRepository, saleID, canteenID int64, day time.Time) (Sale, error) {
	if saleID != 0 {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return Sale{}, err
		}
		if sale.CanteenID != canteenID {
			return Sale{}, fmt.Errorf("sales: sale %d belongs to another canteen: %w", saleID, shared.ErrForbidden)
		}
		if !sale.Date.Equal(day) {
			return Sale{}, fmt.Errorf("sales: sale %d is frozen after day rollover: %w", saleID, shared.ErrForbidden)
		}
		return sale, nil
	}

	sale, err := tx.GetSaleForDay(ctx, canteenID, day)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Sale{}, nil
		}
		return Sale{}, err
	}
	return sale, nil
}

// resolveAdjustment fixes the previous-day adjustment and its reason at sale
// creation: an explicit value wins (with the submitted reason), otherwise
// yesterday's next-day adjustment and reason carry over, otherwise zero. Once
// stored they are never recomputed.
func (s *Service) resolveAdjustment(ctx context.Context, tx TxRepository, input SubmitInput, day time.Time) (float64, string, error) {
	if input.PreviousDayAdjustment != nil {
		return shared.Round2(*input.PreviousDayAdjustment), strings.TrimSpace(input.PreviousDayReason), nil
	}
	prev, err := tx.GetSaleForDay(ctx, input.CanteenID, day.AddDate(0, 0, -1))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, "", nil
		}
		return 0, "", err
	}
	return prev.NextDayAdjustment, prev.NextDayAdjustmentReason, nil
}

// applyLines reconciles the stored sale lines with the submission, posting
// the quantity differences to the stock ledger. Lines absent from the
// submission are reversed and deleted.
func (s *Service) applyLines(ctx context.Context, tx TxRepository, sale Sale, lines []resolvedLine, day time.Time, now time.Time) error {
	existing, err := tx.ListSaleItems(ctx, sale.ID)
	if err != nil {
		return err
	}
	prior := make(map[int64]SaleItem, len(existing))
	for _, it := range existing {
		prior[it.ItemID] = it
	}

	for _, l := range lines {
		old, had := prior[l.input.ItemID]
		delete(prior, l.input.ItemID)

		diff := l.input.Quantity - old.Quantity
		if diff != 0 {
			if err := s.postMovement(ctx, tx, sale.CanteenID, l.item, diff, day, now); err != nil {
				return err
			}
		}

		it := SaleItem{
			SaleID:    sale.ID,
			ItemID:    l.input.ItemID,
			Quantity:  l.input.Quantity,
			Price:     l.price,
			Amount:    shared.Round2(l.input.Quantity * l.price),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if had {
			it.ID = old.ID
			it.CreatedAt = old.CreatedAt
		}
		if _, err := tx.SaveSaleItem(ctx, it); err != nil {
			return err
		}
	}

	// remaining lines were omitted from the submission: reverse and delete
	for _, old := range prior {
		item, err := s.catalog.GetItem(ctx, old.ItemID)
		if err != nil {
			return err
		}
		if err := s.postMovement(ctx, tx, sale.CanteenID, item, -old.Quantity, day, now); err != nil {
			return err
		}
		if err := tx.DeleteSaleItem(ctx, old.ID); err != nil {
			return err
		}
	}
	return nil
}

// postMovement translates a sold-quantity difference into a ledger movement.
// Normal items consume stock, so selling more means a negative delta;
// return-style items add stock back and record under received instead. Their
// reversals are corrective: reducing a return-style line after the returned
// stock was consumed may drive the quantity negative, never fail.
func (s *Service) postMovement(ctx context.Context, tx TxRepository, canteenID int64, item masterdata.Item, qtyDiff float64, day, now time.Time) error {
	in := stock.ApplyInput{
		CanteenID: canteenID,
		ItemID:    item.ID,
		Day:       day,
	}
	if item.IncreasesStock() {
		in.Delta = qtyDiff
		in.ReceivedDelta = qtyDiff
		in.Corrective = true
	} else {
		in.Delta = -qtyDiff
		in.SoldDelta = qtyDiff
		in.RequireExisting = true
	}
	_, err := stock.Apply(ctx, tx, in, now)
	return err
}

// VerifyInput carries the admin decision on a sale.
type VerifyInput struct {
	SaleID     int64
	Adjustment float64
	Reason     string
}

// Verify records the admin verification of a sale: stores the carry-over
// adjustment for the next day and locks the canteen. Single use.
func (s *Service) Verify(ctx context.Context, actor *shared.AuthContext, input VerifyInput) (Sale, error) {
	return s.verify(ctx, actor, input, false)
}

// UpdateVerification revises the verification of a sale whose business day is
// still current. Unlike Verify it may run repeatedly.
func (s *Service) UpdateVerification(ctx context.Context, actor *shared.AuthContext, input VerifyInput) (Sale, error) {
	return s.verify(ctx, actor, input, true)
}

func (s *Service) verify(ctx context.Context, actor *shared.AuthContext, input VerifyInput, revision bool) (Sale, error) {
	if !actor.IsAdmin() {
		return Sale{}, fmt.Errorf("sales: verification requires admin role: %w", shared.ErrForbidden)
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return Sale{}, fmt.Errorf("sales: adjustment reason required: %w", shared.ErrInvalidInput)
	}

	now := s.now()
	var out Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, input.SaleID)
		if err != nil {
			return err
		}
		if revision {
			if !sale.Date.Equal(shared.BusinessDay(now)) {
				return fmt.Errorf("sales: sale %d is frozen after day rollover: %w", sale.ID, shared.ErrForbidden)
			}
		} else if sale.Verified() {
			return fmt.Errorf("sales: sale %d: %w", sale.ID, shared.ErrAlreadyVerified)
		}

		sale.NextDayAdjustment = shared.Round2(input.Adjustment)
		sale.NextDayAdjustmentReason = reason
		sale.VerifiedBy = actor.UserID
		sale.VerifiedAt = &now
		sale.UpdatedAt = now

		out, err = tx.SaveSale(ctx, sale)
		return err
	})
	if err != nil {
		return Sale{}, err
	}

	lockReason := "Sale verified by " + actor.Username
	if _, err := s.canteens.VerificationLock(ctx, out.CanteenID, actor.Username, lockReason); err != nil {
		return Sale{}, err
	}
	return out, nil
}

// GetByID fetches one sale with its lines, enforcing canteen access.
func (s *Service) GetByID(ctx context.Context, actor *shared.AuthContext, id int64) (Sale, error) {
	sale, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if !actor.CanAccessCanteen(sale.CanteenID) {
		return Sale{}, fmt.Errorf("sales: sale %d: %w", id, shared.ErrForbidden)
	}
	return sale, nil
}

// List returns recent sales. Managers only see their own canteen regardless
// of the filter.
func (s *Service) List(ctx context.Context, actor *shared.AuthContext, canteenID int64, limit int) ([]Sale, error) {
	if actor != nil && actor.Role == shared.RoleManager {
		canteenID = actor.CanteenID
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.List(ctx, canteenID, limit)
}

// Summarize aggregates sales per day over an inclusive date range.
func (s *Service) Summarize(ctx context.Context, actor *shared.AuthContext, canteenID int64, from, to time.Time) ([]DailySummary, error) {
	if from.After(to) {
		return nil, fmt.Errorf("sales: range start after end: %w", shared.ErrInvalidInput)
	}
	if actor != nil && actor.Role == shared.RoleManager {
		canteenID = actor.CanteenID
	}
	return s.repo.SummarizeRange(ctx, canteenID, from, to)
}
