package masterdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mealpoint/mealpoint/internal/shared"
)

type memoryRepo struct {
	categories map[int64]Category
	units      map[int64]Unit
	items      map[int64]Item
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		categories: make(map[int64]Category),
		units:      make(map[int64]Unit),
		items:      make(map[int64]Item),
	}
}

func (m *memoryRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryRepo) CreateCategory(_ context.Context, c Category) (Category, error) {
	c.ID = m.id()
	m.categories[c.ID] = c
	return c, nil
}

func (m *memoryRepo) ListCategories(context.Context) ([]Category, error) {
	out := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryRepo) GetCategory(_ context.Context, id int64) (Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return Category{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) CreateUnit(_ context.Context, u Unit) (Unit, error) {
	u.ID = m.id()
	m.units[u.ID] = u
	return u, nil
}

func (m *memoryRepo) ListUnits(context.Context) ([]Unit, error) {
	out := make([]Unit, 0, len(m.units))
	for _, u := range m.units {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryRepo) CreateItem(_ context.Context, it Item) (Item, error) {
	it.ID = m.id()
	m.items[it.ID] = it
	return it, nil
}

func (m *memoryRepo) GetItem(_ context.Context, id int64) (Item, error) {
	it, ok := m.items[id]
	if !ok {
		return Item{}, &ItemNotFoundError{ItemID: id}
	}
	return it, nil
}

func (m *memoryRepo) ListItems(_ context.Context, activeOnly bool) ([]Item, error) {
	out := make([]Item, 0, len(m.items))
	for _, it := range m.items {
		if activeOnly && !it.IsActive {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (m *memoryRepo) UpdateItem(_ context.Context, it Item) (Item, error) {
	if _, ok := m.items[it.ID]; !ok {
		return Item{}, &ItemNotFoundError{ItemID: it.ID}
	}
	m.items[it.ID] = it
	return it, nil
}

func TestCreateCategoryDefaultsToDecreases(t *testing.T) {
	svc := NewService(newMemoryRepo())

	category, err := svc.CreateCategory(context.Background(), "  Snacks ", "")
	require.NoError(t, err)
	require.Equal(t, "Snacks", category.Name)
	require.Equal(t, StockEffectDecreases, category.StockEffect)

	_, err = svc.CreateCategory(context.Background(), "   ", "")
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.CreateCategory(context.Background(), "Bad", "explodes")
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestCreateItemInheritsCategoryEffect(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	returns, err := svc.CreateCategory(context.Background(), "Returns", StockEffectIncreases)
	require.NoError(t, err)
	unit, err := svc.CreateUnit(context.Background(), "Piece", "pc")
	require.NoError(t, err)

	item, err := svc.CreateItem(context.Background(), CreateItemInput{
		Name:       "Crate Return",
		CategoryID: returns.ID,
		UnitID:     unit.ID,
		MRP:        5,
	})
	require.NoError(t, err)
	require.Equal(t, StockEffectIncreases, item.StockEffect)
	require.True(t, item.IncreasesStock())
	require.True(t, item.IsActive)

	// An explicit effect wins over the category default.
	item, err = svc.CreateItem(context.Background(), CreateItemInput{
		Name:        "Deposit Refund",
		CategoryID:  returns.ID,
		UnitID:      unit.ID,
		MRP:         2,
		StockEffect: StockEffectDecreases,
	})
	require.NoError(t, err)
	require.Equal(t, StockEffectDecreases, item.StockEffect)
}

func TestCreateItemUnknownCategory(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.CreateItem(context.Background(), CreateItemInput{
		Name:       "Tea",
		CategoryID: 99,
		UnitID:     1,
		MRP:        10,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateItemRejectsNegativeMRP(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.CreateItem(context.Background(), CreateItemInput{
		Name:       "Tea",
		CategoryID: 1,
		UnitID:     1,
		MRP:        -1,
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestItemExists(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	category, err := svc.CreateCategory(context.Background(), "Snacks", "")
	require.NoError(t, err)
	unit, err := svc.CreateUnit(context.Background(), "Piece", "pc")
	require.NoError(t, err)
	item, err := svc.CreateItem(context.Background(), CreateItemInput{
		Name:       "Samosa",
		CategoryID: category.ID,
		UnitID:     unit.ID,
		MRP:        15,
	})
	require.NoError(t, err)

	ok, err := svc.ItemExists(context.Background(), item.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.ItemExists(context.Background(), 404)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListItemsActiveOnly(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	category, err := svc.CreateCategory(context.Background(), "Snacks", "")
	require.NoError(t, err)
	unit, err := svc.CreateUnit(context.Background(), "Piece", "pc")
	require.NoError(t, err)

	active, err := svc.CreateItem(context.Background(), CreateItemInput{
		Name: "Tea", CategoryID: category.ID, UnitID: unit.ID, MRP: 10,
	})
	require.NoError(t, err)
	retired, err := svc.CreateItem(context.Background(), CreateItemInput{
		Name: "Old Biscuit", CategoryID: category.ID, UnitID: unit.ID, MRP: 8,
	})
	require.NoError(t, err)

	retired.IsActive = false
	_, err = svc.UpdateItem(context.Background(), retired)
	require.NoError(t, err)

	items, err := svc.ListItems(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, active.ID, items[0].ID)

	items, err = svc.ListItems(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, items, 2)
}
