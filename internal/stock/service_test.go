package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mealpoint/mealpoint/internal/shared"
)

type memoryRepo struct {
	ledger *memoryLedger
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{ledger: newMemoryLedger()}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m.ledger)
}

func (m *memoryRepo) ListByCanteen(ctx context.Context, canteenID int64) ([]Stock, error) {
	var out []Stock
	for _, s := range m.ledger.stocks {
		if s.CanteenID == canteenID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryRepo) HistorySince(ctx context.Context, canteenID, itemID int64, since time.Time) ([]History, error) {
	var out []History
	for _, h := range m.ledger.histories {
		if h.CanteenID != canteenID || h.Date.Before(since) {
			continue
		}
		if itemID != 0 && h.ItemID != itemID {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

type stubCatalog struct {
	known map[int64]bool
}

func (c *stubCatalog) ItemExists(ctx context.Context, itemID int64) (bool, error) {
	return c.known[itemID], nil
}

func newStockService(repo *memoryRepo, at time.Time) *Service {
	svc := NewService(repo, &stubCatalog{known: map[int64]bool{7: true, 8: true}})
	svc.now = func() time.Time { return at }
	return svc
}

func TestSetQuantityCreatesAndCorrects(t *testing.T) {
	repo := newMemoryRepo()
	at := time.Date(2024, 3, 14, 14, 0, 0, 0, time.UTC)
	svc := newStockService(repo, at)
	ctx := context.Background()

	// first write: 0 -> 50
	s, err := svc.SetQuantity(ctx, SetQuantityInput{CanteenID: 1, ItemID: 7, Quantity: 50, Description: "initial count"})
	require.NoError(t, err)
	require.InDelta(t, 50, s.Quantity, 1e-9)

	// downward correction: 50 -> 44
	s, err = svc.SetQuantity(ctx, SetQuantityInput{CanteenID: 1, ItemID: 7, Quantity: 44, Description: "spoilage"})
	require.NoError(t, err)
	require.InDelta(t, 44, s.Quantity, 1e-9)

	day := shared.BusinessDay(at)
	h, err := repo.ledger.GetHistory(ctx, 1, 7, day)
	require.NoError(t, err)
	require.InDelta(t, 0, h.OpeningStock, 1e-9)
	require.InDelta(t, 50, h.ReceivedStock, 1e-9)
	require.InDelta(t, 6, h.SoldStock, 1e-9)
	require.InDelta(t, 44, h.ClosingStock, 1e-9)
	require.InDelta(t, 44, h.AdjustedStock, 1e-9) // +50 then -6
	require.Equal(t, "initial count; spoilage", h.AdjustmentDescription)
}

func TestSetQuantityBeforeShiftBelongsToPreviousDay(t *testing.T) {
	repo := newMemoryRepo()
	// 01:30 still belongs to the previous business day
	at := time.Date(2024, 3, 15, 1, 30, 0, 0, time.UTC)
	svc := newStockService(repo, at)

	_, err := svc.SetQuantity(context.Background(), SetQuantityInput{CanteenID: 1, ItemID: 7, Quantity: 10})
	require.NoError(t, err)

	_, err = repo.ledger.GetHistory(context.Background(), 1, 7, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
}

func TestSetQuantityUnknownItem(t *testing.T) {
	repo := newMemoryRepo()
	svc := newStockService(repo, time.Date(2024, 3, 14, 14, 0, 0, 0, time.UTC))

	_, err := svc.SetQuantity(context.Background(), SetQuantityInput{CanteenID: 1, ItemID: 99, Quantity: 5})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSetQuantityValidatesInput(t *testing.T) {
	repo := newMemoryRepo()
	svc := newStockService(repo, time.Date(2024, 3, 14, 14, 0, 0, 0, time.UTC))

	_, err := svc.SetQuantity(context.Background(), SetQuantityInput{ItemID: 7, Quantity: 5})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestGetHistoryDefaultsWindow(t *testing.T) {
	repo := newMemoryRepo()
	at := time.Date(2024, 3, 14, 14, 0, 0, 0, time.UTC)
	svc := newStockService(repo, at)
	ctx := context.Background()

	old := History{CanteenID: 1, ItemID: 7, Date: at.AddDate(0, 0, -45)}
	_, err := repo.ledger.SaveHistory(ctx, old)
	require.NoError(t, err)
	recent := History{CanteenID: 1, ItemID: 7, Date: at.AddDate(0, 0, -3)}
	_, err = repo.ledger.SaveHistory(ctx, recent)
	require.NoError(t, err)

	rows, err := svc.GetHistory(ctx, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, recent.Date, rows[0].Date)
}
