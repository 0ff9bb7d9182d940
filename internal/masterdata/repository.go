package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mealpoint/mealpoint/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	query := `
		INSERT INTO categories (name, stock_effect, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query, c.Name, string(c.StockEffect)).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.ConstraintName == "uq_categories_name" {
			return Category{}, fmt.Errorf("masterdata: category %q exists: %w", c.Name, shared.ErrInvalidInput)
		}
		return Category{}, err
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, stock_effect, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		var effect string
		if err := rows.Scan(&c.ID, &c.Name, &effect, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.StockEffect = StockEffect(effect)
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategory fetches one category.
func (r *Repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	var effect string
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, stock_effect, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &effect, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, fmt.Errorf("masterdata: category %d: %w", id, shared.ErrNotFound)
		}
		return Category{}, err
	}
	c.StockEffect = StockEffect(effect)
	return c, nil
}

// CreateUnit inserts a unit.
func (r *Repository) CreateUnit(ctx context.Context, u Unit) (Unit, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO units (name, abbreviation) VALUES ($1, $2) RETURNING id`,
		u.Name, u.Abbreviation).Scan(&u.ID)
	if err != nil {
		return Unit{}, err
	}
	return u, nil
}

// ListUnits returns all units ordered by name.
func (r *Repository) ListUnits(ctx context.Context) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, abbreviation FROM units ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.Abbreviation); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateItem inserts an item.
func (r *Repository) CreateItem(ctx context.Context, it Item) (Item, error) {
	query := `
		INSERT INTO items (name, description, category_id, unit_id, mrp, stock_effect, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		it.Name, it.Description, it.CategoryID, it.UnitID, it.MRP, string(it.StockEffect), it.IsActive).
		Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

// GetItem fetches one item.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	var it Item
	var effect string
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), category_id, unit_id, mrp, stock_effect, is_active, created_at, updated_at
		FROM items WHERE id = $1`, id).
		Scan(&it.ID, &it.Name, &it.Description, &it.CategoryID, &it.UnitID, &it.MRP, &effect, &it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, fmt.Errorf("masterdata: item %d: %w", id, shared.ErrNotFound)
		}
		return Item{}, err
	}
	it.StockEffect = StockEffect(effect)
	return it, nil
}

// ListItems returns catalog items, optionally only active ones.
func (r *Repository) ListItems(ctx context.Context, activeOnly bool) ([]Item, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), category_id, unit_id, mrp, stock_effect, is_active, created_at, updated_at
		FROM items`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var effect string
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.CategoryID, &it.UnitID, &it.MRP, &effect, &it.IsActive, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		it.StockEffect = StockEffect(effect)
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateItem rewrites mutable item fields.
func (r *Repository) UpdateItem(ctx context.Context, it Item) (Item, error) {
	query := `
		UPDATE items
		SET name = $2, description = $3, category_id = $4, unit_id = $5, mrp = $6, stock_effect = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		it.ID, it.Name, it.Description, it.CategoryID, it.UnitID, it.MRP, string(it.StockEffect), it.IsActive).
		Scan(&it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, fmt.Errorf("masterdata: item %d: %w", it.ID, shared.ErrNotFound)
		}
		return Item{}, err
	}
	return it, nil
}
