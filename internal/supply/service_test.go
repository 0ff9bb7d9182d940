package supply

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mealpoint/mealpoint/internal/canteen"
	"github.com/mealpoint/mealpoint/internal/masterdata"
	"github.com/mealpoint/mealpoint/internal/shared"
	"github.com/mealpoint/mealpoint/internal/stock"
)

type memoryRepo struct {
	stocks    map[string]stock.Stock
	histories map[string]stock.History
	supplies  map[int64]Supply
	items     map[int64]SupplyItem
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stocks:    make(map[string]stock.Stock),
		histories: make(map[string]stock.History),
		supplies:  make(map[int64]Supply),
		items:     make(map[int64]SupplyItem),
	}
}

func (m *memoryRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func stockKey(canteenID, itemID int64) string {
	return fmt.Sprintf("%d:%d", canteenID, itemID)
}

func historyKey(canteenID, itemID int64, day time.Time) string {
	return fmt.Sprintf("%d:%d:%s", canteenID, itemID, day.Format("2006-01-02"))
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) GetStock(ctx context.Context, canteenID, itemID int64) (stock.Stock, error) {
	if s, ok := m.stocks[stockKey(canteenID, itemID)]; ok {
		return s, nil
	}
	return stock.Stock{}, stock.ErrRowMissing
}

func (m *memoryRepo) SaveStock(ctx context.Context, s stock.Stock) (stock.Stock, error) {
	if s.ID == 0 {
		s.ID = m.id()
	}
	m.stocks[stockKey(s.CanteenID, s.ItemID)] = s
	return s, nil
}

func (m *memoryRepo) GetHistory(ctx context.Context, canteenID, itemID int64, day time.Time) (stock.History, error) {
	if h, ok := m.histories[historyKey(canteenID, itemID, day)]; ok {
		return h, nil
	}
	return stock.History{}, stock.ErrRowMissing
}

func (m *memoryRepo) SaveHistory(ctx context.Context, h stock.History) (stock.History, error) {
	if h.ID == 0 {
		h.ID = m.id()
	}
	m.histories[historyKey(h.CanteenID, h.ItemID, h.Date)] = h
	return h, nil
}

func (m *memoryRepo) GetSupplyForDay(ctx context.Context, fromCanteenID, toCanteenID int64, day time.Time) (Supply, error) {
	for _, s := range m.supplies {
		if s.FromCanteenID == fromCanteenID && s.ToCanteenID == toCanteenID && s.Date.Equal(day) {
			return s, nil
		}
	}
	return Supply{}, fmt.Errorf("supply: %w", shared.ErrNotFound)
}

func (m *memoryRepo) GetSupplyForUpdate(ctx context.Context, id int64) (Supply, error) {
	s, ok := m.supplies[id]
	if !ok {
		return Supply{}, fmt.Errorf("supply %d: %w", id, shared.ErrNotFound)
	}
	return s, nil
}

func (m *memoryRepo) SaveSupply(ctx context.Context, s Supply) (Supply, error) {
	if s.ID == 0 {
		s.ID = m.id()
	}
	s.Items = nil
	m.supplies[s.ID] = s
	return s, nil
}

func (m *memoryRepo) AppendItem(ctx context.Context, it SupplyItem) (SupplyItem, error) {
	it.ID = m.id()
	m.items[it.ID] = it
	return it, nil
}

func (m *memoryRepo) GetItem(ctx context.Context, id int64) (SupplyItem, error) {
	it, ok := m.items[id]
	if !ok {
		return SupplyItem{}, fmt.Errorf("supply item %d: %w", id, shared.ErrNotFound)
	}
	return it, nil
}

func (m *memoryRepo) ListItems(ctx context.Context, supplyID int64) ([]SupplyItem, error) {
	var out []SupplyItem
	for _, it := range m.items {
		if it.SupplyID == supplyID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) DeleteItem(ctx context.Context, id int64) error {
	delete(m.items, id)
	return nil
}

func (m *memoryRepo) DeleteSupply(ctx context.Context, id int64) error {
	delete(m.supplies, id)
	return nil
}

func (m *memoryRepo) GetByID(ctx context.Context, id int64) (Supply, error) {
	s, err := m.GetSupplyForUpdate(ctx, id)
	if err != nil {
		return Supply{}, err
	}
	s.Items, _ = m.ListItems(ctx, id)
	return s, nil
}

func (m *memoryRepo) List(ctx context.Context, canteenID int64, limit int) ([]Supply, error) {
	var out []Supply
	for _, s := range m.supplies {
		if canteenID == 0 || s.FromCanteenID == canteenID || s.ToCanteenID == canteenID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) ListItemMovements(ctx context.Context, itemID int64, from, to time.Time) ([]Supply, error) {
	var out []Supply
	for _, s := range m.supplies {
		if s.Date.Before(from) || !s.Date.Before(to) {
			continue
		}
		items, _ := m.ListItems(ctx, s.ID)
		var matched []SupplyItem
		for _, it := range items {
			if it.ItemID == itemID {
				matched = append(matched, it)
			}
		}
		if len(matched) > 0 {
			s.Items = matched
			out = append(out, s)
		}
	}
	return out, nil
}

type stubCatalog struct {
	items map[int64]masterdata.Item
}

func (c *stubCatalog) GetItem(ctx context.Context, id int64) (masterdata.Item, error) {
	it, ok := c.items[id]
	if !ok {
		return masterdata.Item{}, fmt.Errorf("item %d: %w", id, shared.ErrNotFound)
	}
	return it, nil
}

type stubCanteens struct {
	canteens map[int64]canteen.Canteen
}

func (c *stubCanteens) Get(ctx context.Context, id int64) (canteen.Canteen, error) {
	ct, ok := c.canteens[id]
	if !ok {
		return canteen.Canteen{}, fmt.Errorf("canteen %d: %w", id, shared.ErrNotFound)
	}
	return ct, nil
}

type fixture struct {
	repo     *memoryRepo
	canteens *stubCanteens
	service  *Service
	now      time.Time
	day      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: newMemoryRepo(),
		canteens: &stubCanteens{canteens: map[int64]canteen.Canteen{
			1: {ID: 1, Name: "Central Kitchen"},
			2: {ID: 2, Name: "North Wing"},
		}},
		now: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	f.day = shared.BusinessDay(f.now)
	catalog := &stubCatalog{items: map[int64]masterdata.Item{
		1: {ID: 1, Name: "Tea", MRP: 10},
		2: {ID: 2, Name: "Samosa", MRP: 15},
	}}
	f.service = NewService(f.repo, catalog, f.canteens)
	f.service.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) stockQty(canteenID, itemID int64) float64 {
	return f.repo.stocks[stockKey(canteenID, itemID)].Quantity
}

func (f *fixture) history(canteenID, itemID int64) stock.History {
	return f.repo.histories[historyKey(canteenID, itemID, f.day)]
}

var admin = &shared.AuthContext{UserID: 1, Username: "admin", Role: shared.RoleAdmin}
var manager = &shared.AuthContext{UserID: 2, Username: "manager2", Role: shared.RoleManager, CanteenID: 2}

func TestAddItemsCreatesSupplyAndStock(t *testing.T) {
	f := newFixture(t)

	sup, err := f.service.AddItems(context.Background(), manager, AddItemsInput{
		FromCanteenID: 1,
		ToCanteenID:   2,
		Items:         []ItemInput{{ItemID: 1, Quantity: 30}, {ItemID: 2, Quantity: 12}},
	})
	require.NoError(t, err)
	require.Equal(t, f.day, sup.Date)
	require.Len(t, sup.Items, 2)

	require.InDelta(t, 30, f.stockQty(2, 1), 1e-9)
	require.InDelta(t, 12, f.stockQty(2, 2), 1e-9)
	require.InDelta(t, 30, f.history(2, 1).ReceivedStock, 1e-9)

	// source canteen stock is untouched
	require.Zero(t, f.stockQty(1, 1))
}

func TestAddItemsRecordsPriceAndAuthor(t *testing.T) {
	f := newFixture(t)

	sup, err := f.service.AddItems(context.Background(), manager, AddItemsInput{
		FromCanteenID: 1,
		ToCanteenID:   2,
		Items:         []ItemInput{{ItemID: 1, Quantity: 30, UnitPrice: 8.5}, {ItemID: 2, Quantity: 12}},
	})
	require.NoError(t, err)
	require.Len(t, sup.Items, 2)

	require.InDelta(t, 8.5, sup.Items[0].UnitPrice, 1e-9)
	require.InDelta(t, 15, sup.Items[1].UnitPrice, 1e-9, "omitted price falls back to catalog MRP")
	require.Equal(t, manager.UserID, sup.Items[0].CreatedBy)
	require.Equal(t, manager.UserID, sup.Items[1].CreatedBy)
}

func TestAddItemsRejectsNegativePrice(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.AddItems(context.Background(), manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 5, UnitPrice: -1}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestAddItemsAppendsToSameDaySupply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.AddItems(ctx, manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 30}},
	})
	require.NoError(t, err)

	sup, err := f.service.AddItems(ctx, manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 5}},
	})
	require.NoError(t, err)

	require.Len(t, f.repo.supplies, 1, "same canteen pair and day share one supply")
	require.Len(t, sup.Items, 2, "movements append, never merge")
	require.InDelta(t, 35, f.stockQty(2, 1), 1e-9)
}

func TestAddItemsNegativeCorrection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.AddItems(ctx, manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 30}},
	})
	require.NoError(t, err)

	sup, err := f.service.AddItems(ctx, manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: -10}},
	})
	require.NoError(t, err)
	require.Len(t, sup.Items, 2)
	require.InDelta(t, 20, f.stockQty(2, 1), 1e-9)
	require.InDelta(t, 30, f.history(2, 1).ReceivedStock, 1e-9)
	require.InDelta(t, 10, f.history(2, 1).SoldStock, 1e-9)
}

func TestAddItemsNegativeBoundedByStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.AddItems(ctx, manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 8}},
	})
	require.NoError(t, err)

	_, err = f.service.AddItems(ctx, manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: -9}},
	})
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	var insufficient *stock.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.InDelta(t, 8, insufficient.Available, 1e-9)
	require.InDelta(t, 9, insufficient.Requested, 1e-9)
}

func TestAddItemsValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.AddItems(ctx, admin, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 1,
		Items: []ItemInput{{ItemID: 1, Quantity: 5}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.service.AddItems(ctx, admin, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 0}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.service.AddItems(ctx, admin, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 9,
		Items: []ItemInput{{ItemID: 1, Quantity: 5}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.service.AddItems(ctx, admin, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 77, Quantity: 5}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAddItemsManagerMustOwnDestination(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.AddItems(context.Background(), manager, AddItemsInput{
		FromCanteenID: 2, ToCanteenID: 1,
		Items: []ItemInput{{ItemID: 1, Quantity: 5}},
	})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestAddItemsLockedDestinationRejected(t *testing.T) {
	f := newFixture(t)
	ct := f.canteens.canteens[2]
	ct.IsLocked = true
	f.canteens.canteens[2] = ct

	_, err := f.service.AddItems(context.Background(), manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 5}},
	})
	require.ErrorIs(t, err, shared.ErrAlreadyLocked)
}

func TestAddItemsLockedSupplyRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sup, err := f.service.AddItems(ctx, manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 5}},
	})
	require.NoError(t, err)

	locked := f.repo.supplies[sup.ID]
	locked.IsLocked = true
	f.repo.supplies[sup.ID] = locked

	_, err = f.service.AddItems(ctx, manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 5}},
	})
	require.ErrorIs(t, err, shared.ErrLockedSupply)
}

func TestRemoveItemReversesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sup, err := f.service.AddItems(ctx, manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 30}, {ItemID: 2, Quantity: 12}},
	})
	require.NoError(t, err)

	require.NoError(t, f.service.RemoveItem(ctx, manager, sup.Items[0].ID))

	require.InDelta(t, 0, f.stockQty(2, 1), 1e-9)
	require.InDelta(t, 0, f.history(2, 1).ReceivedStock, 1e-9)
	require.InDelta(t, 12, f.stockQty(2, 2), 1e-9)

	got, err := f.service.GetByID(ctx, manager, sup.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
}

func TestRemoveItemSucceedsAfterStockConsumed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sup, err := f.service.AddItems(ctx, manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 30}},
	})
	require.NoError(t, err)

	// stock got consumed elsewhere; the reversal still goes through
	s := f.repo.stocks[stockKey(2, 1)]
	s.Quantity = 4
	f.repo.stocks[stockKey(2, 1)] = s

	require.NoError(t, f.service.RemoveItem(ctx, manager, sup.Items[0].ID))
	require.InDelta(t, -26, f.stockQty(2, 1), 1e-9)
	require.InDelta(t, 0, f.history(2, 1).ReceivedStock, 1e-9, "received floors at zero")
}

func TestRemoveLastItemDeletesSupply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sup, err := f.service.AddItems(ctx, manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 30}},
	})
	require.NoError(t, err)

	require.NoError(t, f.service.RemoveItem(ctx, manager, sup.Items[0].ID))
	require.Empty(t, f.repo.supplies)
	require.Empty(t, f.repo.items)
}

func TestItemMovementsByMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.AddItems(ctx, manager, AddItemsInput{
		FromCanteenID: 1, ToCanteenID: 2,
		Items: []ItemInput{{ItemID: 1, Quantity: 30}, {ItemID: 2, Quantity: 5}},
	})
	require.NoError(t, err)

	supplies, err := f.service.ItemMovements(ctx, 1, 2024, time.March)
	require.NoError(t, err)
	require.Len(t, supplies, 1)
	require.Len(t, supplies[0].Items, 1)
	require.EqualValues(t, 1, supplies[0].Items[0].ItemID)

	supplies, err = f.service.ItemMovements(ctx, 1, 2024, time.April)
	require.NoError(t, err)
	require.Empty(t, supplies)
}
