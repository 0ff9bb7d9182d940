package supply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mealpoint/mealpoint/internal/platform/db"
	"github.com/mealpoint/mealpoint/internal/shared"
	"github.com/mealpoint/mealpoint/internal/stock"
)

// Repository persists supplies in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations of a supply submission.
// It embeds the stock ledger so the destination's stock movements commit
// atomically with the supply rows.
type TxRepository interface {
	stock.TxLedger

	GetSupplyForDay(ctx context.Context, fromCanteenID, toCanteenID int64, day time.Time) (Supply, error)
	GetSupplyForUpdate(ctx context.Context, id int64) (Supply, error)
	SaveSupply(ctx context.Context, s Supply) (Supply, error)
	AppendItem(ctx context.Context, it SupplyItem) (SupplyItem, error)
	GetItem(ctx context.Context, id int64) (SupplyItem, error)
	ListItems(ctx context.Context, supplyID int64) ([]SupplyItem, error)
	DeleteItem(ctx context.Context, id int64) error
	DeleteSupply(ctx context.Context, id int64) error
}

// WithTx executes the callback inside a repeatable-read transaction with
// bounded retry on serialization failure.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxLedger: stock.NewTxLedger(tx), tx: tx})
	})
}

type txRepo struct {
	stock.TxLedger
	tx pgx.Tx
}

const supplyColumns = `id, from_canteen_id, to_canteen_id, date, is_locked, created_by, created_at, updated_at`

const supplyItemColumns = `id, supply_id, item_id, quantity, unit_price, COALESCE(created_by, 0), created_at`

func scanSupply(row pgx.Row) (Supply, error) {
	var s Supply
	err := row.Scan(&s.ID, &s.FromCanteenID, &s.ToCanteenID, &s.Date, &s.IsLocked,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supply{}, fmt.Errorf("supply: %w", shared.ErrNotFound)
		}
		return Supply{}, err
	}
	return s, nil
}

func (t *txRepo) GetSupplyForDay(ctx context.Context, fromCanteenID, toCanteenID int64, day time.Time) (Supply, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+supplyColumns+`
		FROM supplies
		WHERE from_canteen_id = $1 AND to_canteen_id = $2 AND date = $3
		FOR UPDATE`, fromCanteenID, toCanteenID, day)
	return scanSupply(row)
}

func (t *txRepo) GetSupplyForUpdate(ctx context.Context, id int64) (Supply, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+supplyColumns+`
		FROM supplies
		WHERE id = $1
		FOR UPDATE`, id)
	return scanSupply(row)
}

func (t *txRepo) SaveSupply(ctx context.Context, s Supply) (Supply, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO supplies (from_canteen_id, to_canteen_id, date, is_locked, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (from_canteen_id, to_canteen_id, date)
		DO UPDATE SET is_locked = EXCLUDED.is_locked, updated_at = EXCLUDED.updated_at
		RETURNING id`,
		s.FromCanteenID, s.ToCanteenID, s.Date, s.IsLocked, s.CreatedBy, s.CreatedAt, s.UpdatedAt).
		Scan(&s.ID)
	if err != nil {
		return Supply{}, err
	}
	return s, nil
}

func (t *txRepo) AppendItem(ctx context.Context, it SupplyItem) (SupplyItem, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO supply_items (supply_id, item_id, quantity, unit_price, created_by, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0), $6)
		RETURNING id`,
		it.SupplyID, it.ItemID, it.Quantity, it.UnitPrice, it.CreatedBy, it.CreatedAt).
		Scan(&it.ID)
	if err != nil {
		return SupplyItem{}, err
	}
	return it, nil
}

func (t *txRepo) GetItem(ctx context.Context, id int64) (SupplyItem, error) {
	var it SupplyItem
	err := t.tx.QueryRow(ctx, `
		SELECT `+supplyItemColumns+`
		FROM supply_items
		WHERE id = $1
		FOR UPDATE`, id).
		Scan(&it.ID, &it.SupplyID, &it.ItemID, &it.Quantity, &it.UnitPrice, &it.CreatedBy, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupplyItem{}, fmt.Errorf("supply item %d: %w", id, shared.ErrNotFound)
		}
		return SupplyItem{}, err
	}
	return it, nil
}

func (t *txRepo) ListItems(ctx context.Context, supplyID int64) ([]SupplyItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+supplyItemColumns+`
		FROM supply_items
		WHERE supply_id = $1
		ORDER BY id`, supplyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (t *txRepo) DeleteItem(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM supply_items WHERE id = $1`, id)
	return err
}

func (t *txRepo) DeleteSupply(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM supplies WHERE id = $1`, id)
	return err
}

func collectItems(rows pgx.Rows) ([]SupplyItem, error) {
	var out []SupplyItem
	for rows.Next() {
		var it SupplyItem
		if err := rows.Scan(&it.ID, &it.SupplyID, &it.ItemID, &it.Quantity,
			&it.UnitPrice, &it.CreatedBy, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetByID fetches one supply with its items.
func (r *Repository) GetByID(ctx context.Context, id int64) (Supply, error) {
	s, err := scanSupply(r.pool.QueryRow(ctx, `
		SELECT `+supplyColumns+`
		FROM supplies
		WHERE id = $1`, id))
	if err != nil {
		return Supply{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+supplyItemColumns+`
		FROM supply_items
		WHERE supply_id = $1
		ORDER BY id`, id)
	if err != nil {
		return Supply{}, err
	}
	defer rows.Close()

	s.Items, err = collectItems(rows)
	if err != nil {
		return Supply{}, err
	}
	return s, nil
}

// List returns recent supplies, optionally touching one canteen as source or
// destination (canteenID = 0 means all).
func (r *Repository) List(ctx context.Context, canteenID int64, limit int) ([]Supply, error) {
	query := `
		SELECT ` + supplyColumns + `
		FROM supplies`
	args := []any{}
	if canteenID != 0 {
		query += ` WHERE from_canteen_id = $1 OR to_canteen_id = $1`
		args = append(args, canteenID)
	}
	query += fmt.Sprintf(` ORDER BY date DESC, id DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Supply
	for rows.Next() {
		s, err := scanSupply(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListItemMovements returns the supply items of one catalog item inside a
// calendar month, joined with their supply header.
func (r *Repository) ListItemMovements(ctx context.Context, itemID int64, from, to time.Time) ([]Supply, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.from_canteen_id, s.to_canteen_id, s.date, s.is_locked, s.created_by, s.created_at, s.updated_at,
		       i.id, i.supply_id, i.item_id, i.quantity, i.unit_price, COALESCE(i.created_by, 0), i.created_at
		FROM supply_items i
		JOIN supplies s ON s.id = i.supply_id
		WHERE i.item_id = $1 AND s.date >= $2 AND s.date < $3
		ORDER BY s.date, i.id`, itemID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Supply
	index := make(map[int64]int)
	for rows.Next() {
		var s Supply
		var it SupplyItem
		if err := rows.Scan(&s.ID, &s.FromCanteenID, &s.ToCanteenID, &s.Date, &s.IsLocked,
			&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
			&it.ID, &it.SupplyID, &it.ItemID, &it.Quantity,
			&it.UnitPrice, &it.CreatedBy, &it.CreatedAt); err != nil {
			return nil, err
		}
		pos, ok := index[s.ID]
		if !ok {
			out = append(out, s)
			pos = len(out) - 1
			index[s.ID] = pos
		}
		out[pos].Items = append(out[pos].Items, it)
	}
	return out, rows.Err()
}
