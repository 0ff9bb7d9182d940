package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mealpoint/mealpoint/internal/platform/db"
)

// Repository persists stock balances and history in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	TxLedger
}

// WithTx executes the callback inside a repeatable-read transaction with
// bounded retry on serialization failure.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxLedger(tx))
	})
}

type txLedger struct {
	tx pgx.Tx
}

// NewTxLedger adapts a pgx transaction to the TxLedger interface so other
// repositories can post stock movements inside their own transactions.
func NewTxLedger(tx pgx.Tx) TxLedger {
	return &txLedger{tx: tx}
}

func (l *txLedger) GetStock(ctx context.Context, canteenID, itemID int64) (Stock, error) {
	var s Stock
	err := l.tx.QueryRow(ctx, `
		SELECT id, canteen_id, item_id, quantity, updated_at
		FROM stocks
		WHERE canteen_id = $1 AND item_id = $2
		FOR UPDATE`, canteenID, itemID).
		Scan(&s.ID, &s.CanteenID, &s.ItemID, &s.Quantity, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrRowMissing
		}
		return Stock{}, err
	}
	return s, nil
}

func (l *txLedger) SaveStock(ctx context.Context, s Stock) (Stock, error) {
	err := l.tx.QueryRow(ctx, `
		INSERT INTO stocks (canteen_id, item_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (canteen_id, item_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		RETURNING id`, s.CanteenID, s.ItemID, s.Quantity, s.UpdatedAt).
		Scan(&s.ID)
	if err != nil {
		return Stock{}, err
	}
	return s, nil
}

func (l *txLedger) GetHistory(ctx context.Context, canteenID, itemID int64, day time.Time) (History, error) {
	var h History
	err := l.tx.QueryRow(ctx, `
		SELECT id, canteen_id, item_id, date, opening_stock, received_stock, sold_stock,
		       closing_stock, adjusted_stock, COALESCE(adjustment_description, ''), created_at, updated_at
		FROM stock_history
		WHERE canteen_id = $1 AND item_id = $2 AND date = $3
		FOR UPDATE`, canteenID, itemID, day).
		Scan(&h.ID, &h.CanteenID, &h.ItemID, &h.Date, &h.OpeningStock, &h.ReceivedStock,
			&h.SoldStock, &h.ClosingStock, &h.AdjustedStock, &h.AdjustmentDescription, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return History{}, ErrRowMissing
		}
		return History{}, err
	}
	return h, nil
}

func (l *txLedger) SaveHistory(ctx context.Context, h History) (History, error) {
	err := l.tx.QueryRow(ctx, `
		INSERT INTO stock_history (canteen_id, item_id, date, opening_stock, received_stock,
		                           sold_stock, closing_stock, adjusted_stock, adjustment_description,
		                           created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)
		ON CONFLICT (canteen_id, item_id, date)
		DO UPDATE SET received_stock = EXCLUDED.received_stock,
		              sold_stock = EXCLUDED.sold_stock,
		              closing_stock = EXCLUDED.closing_stock,
		              adjusted_stock = EXCLUDED.adjusted_stock,
		              adjustment_description = EXCLUDED.adjustment_description,
		              updated_at = EXCLUDED.updated_at
		RETURNING id`,
		h.CanteenID, h.ItemID, h.Date, h.OpeningStock, h.ReceivedStock, h.SoldStock,
		h.ClosingStock, h.AdjustedStock, h.AdjustmentDescription, h.CreatedAt, h.UpdatedAt).
		Scan(&h.ID)
	if err != nil {
		return History{}, err
	}
	return h, nil
}

// ListByCanteen returns the live balances for one canteen.
func (r *Repository) ListByCanteen(ctx context.Context, canteenID int64) ([]Stock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, canteen_id, item_id, quantity, updated_at
		FROM stocks
		WHERE canteen_id = $1
		ORDER BY item_id`, canteenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stock
	for rows.Next() {
		var s Stock
		if err := rows.Scan(&s.ID, &s.CanteenID, &s.ItemID, &s.Quantity, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// HistorySince returns history rows for a canteen from the given day onward,
// optionally restricted to one item (itemID = 0 means all items).
func (r *Repository) HistorySince(ctx context.Context, canteenID, itemID int64, since time.Time) ([]History, error) {
	query := `
		SELECT id, canteen_id, item_id, date, opening_stock, received_stock, sold_stock,
		       closing_stock, adjusted_stock, COALESCE(adjustment_description, ''), created_at, updated_at
		FROM stock_history
		WHERE canteen_id = $1 AND date >= $2`
	args := []any{canteenID, since}
	if itemID != 0 {
		query += ` AND item_id = $3`
		args = append(args, itemID)
	}
	query += ` ORDER BY date`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []History
	for rows.Next() {
		var h History
		if err := rows.Scan(&h.ID, &h.CanteenID, &h.ItemID, &h.Date, &h.OpeningStock, &h.ReceivedStock,
			&h.SoldStock, &h.ClosingStock, &h.AdjustedStock, &h.AdjustmentDescription, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
