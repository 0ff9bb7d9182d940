package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mealpoint/mealpoint/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	CreateCategory(ctx context.Context, c Category) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	CreateUnit(ctx context.Context, u Unit) (Unit, error)
	ListUnits(ctx context.Context) ([]Unit, error)
	CreateItem(ctx context.Context, it Item) (Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, activeOnly bool) ([]Item, error)
	UpdateItem(ctx context.Context, it Item) (Item, error)
}

// Service coordinates catalog operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateCategory validates and stores a category.
func (s *Service) CreateCategory(ctx context.Context, name string, effect StockEffect) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("masterdata: category name required: %w", shared.ErrInvalidInput)
	}
	if effect == "" {
		effect = StockEffectDecreases
	}
	if !effect.Valid() {
		return Category{}, fmt.Errorf("masterdata: unknown stock effect %q: %w", effect, shared.ErrInvalidInput)
	}
	return s.repo.CreateCategory(ctx, Category{Name: name, StockEffect: effect})
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateUnit validates and stores a unit.
func (s *Service) CreateUnit(ctx context.Context, name, abbreviation string) (Unit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Unit{}, fmt.Errorf("masterdata: unit name required: %w", shared.ErrInvalidInput)
	}
	return s.repo.CreateUnit(ctx, Unit{Name: name, Abbreviation: strings.TrimSpace(abbreviation)})
}

// ListUnits returns all units.
func (s *Service) ListUnits(ctx context.Context) ([]Unit, error) {
	return s.repo.ListUnits(ctx)
}

// CreateItemInput carries fields for a new item.
type CreateItemInput struct {
	Name        string
	Description string
	CategoryID  int64
	UnitID      int64
	MRP         float64
	StockEffect StockEffect // empty inherits the category default
}

// CreateItem validates and stores an item. The stock effect defaults to the
// category's effect so return-style categories propagate automatically.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Item{}, fmt.Errorf("masterdata: item name required: %w", shared.ErrInvalidInput)
	}
	if input.MRP < 0 {
		return Item{}, fmt.Errorf("masterdata: mrp must be >= 0: %w", shared.ErrInvalidInput)
	}
	category, err := s.repo.GetCategory(ctx, input.CategoryID)
	if err != nil {
		return Item{}, err
	}
	effect := input.StockEffect
	if effect == "" {
		effect = category.StockEffect
	}
	if !effect.Valid() {
		return Item{}, fmt.Errorf("masterdata: unknown stock effect %q: %w", effect, shared.ErrInvalidInput)
	}
	return s.repo.CreateItem(ctx, Item{
		Name:        input.Name,
		Description: strings.TrimSpace(input.Description),
		CategoryID:  input.CategoryID,
		UnitID:      input.UnitID,
		MRP:         input.MRP,
		StockEffect: effect,
		IsActive:    true,
	})
}

// GetItem fetches one item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ItemExists reports whether an item id is present in the catalog.
func (s *Service) ItemExists(ctx context.Context, id int64) (bool, error) {
	if _, err := s.repo.GetItem(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListItems lists catalog items.
func (s *Service) ListItems(ctx context.Context, activeOnly bool) ([]Item, error) {
	return s.repo.ListItems(ctx, activeOnly)
}

// UpdateItem rewrites an item after validation.
func (s *Service) UpdateItem(ctx context.Context, it Item) (Item, error) {
	if strings.TrimSpace(it.Name) == "" {
		return Item{}, fmt.Errorf("masterdata: item name required: %w", shared.ErrInvalidInput)
	}
	if !it.StockEffect.Valid() {
		return Item{}, fmt.Errorf("masterdata: unknown stock effect %q: %w", it.StockEffect, shared.ErrInvalidInput)
	}
	return s.repo.UpdateItem(ctx, it)
}
