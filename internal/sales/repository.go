package sales

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

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations of a sale submission.
// It embeds the stock ledger so the submission's stock movements commit
// atomically with the sale itself.
type TxRepository interface {
	stock.TxLedger

	GetSaleForDay(ctx context.Context, canteenID int64, day time.Time) (Sale, error)
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	SaveSale(ctx context.Context, s Sale) (Sale, error)
	ListSaleItems(ctx context.Context, saleID int64) ([]SaleItem, error)
	SaveSaleItem(ctx context.Context, it SaleItem) (SaleItem, error)
	DeleteSaleItem(ctx context.Context, id int64) error
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

const saleColumns = `id, canteen_id, date, COALESCE(description, ''),
	items_total, previous_day_adjustment, COALESCE(previous_day_reason, ''), total,
	cash_amount, online_amount, other_amount,
	next_day_adjustment, COALESCE(next_day_adjustment_reason, ''),
	COALESCE(verified_by, 0), verified_at, created_by, created_at, updated_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.CanteenID, &s.Date, &s.Description,
		&s.ItemsTotal, &s.PreviousDayAdjustment, &s.PreviousDayReason, &s.Total,
		&s.CashAmount, &s.OnlineAmount, &s.OtherAmount,
		&s.NextDayAdjustment, &s.NextDayAdjustmentReason,
		&s.VerifiedBy, &s.VerifiedAt, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, fmt.Errorf("sale: %w", shared.ErrNotFound)
		}
		return Sale{}, err
	}
	return s, nil
}

func (t *txRepo) GetSaleForDay(ctx context.Context, canteenID int64, day time.Time) (Sale, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE canteen_id = $1 AND date = $2
		FOR UPDATE`, canteenID, day)
	return scanSale(row)
}

func (t *txRepo) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1
		FOR UPDATE`, id)
	return scanSale(row)
}

func (t *txRepo) SaveSale(ctx context.Context, s Sale) (Sale, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sales (canteen_id, date, description,
		                   items_total, previous_day_adjustment, previous_day_reason, total,
		                   cash_amount, online_amount, other_amount,
		                   next_day_adjustment, next_day_adjustment_reason,
		                   verified_by, verified_at, created_by, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8, $9, $10,
		        $11, NULLIF($12, ''), NULLIF($13, 0), $14, $15, $16, $17)
		ON CONFLICT (canteen_id, date)
		DO UPDATE SET description = EXCLUDED.description,
		              items_total = EXCLUDED.items_total,
		              total = EXCLUDED.total,
		              cash_amount = EXCLUDED.cash_amount,
		              online_amount = EXCLUDED.online_amount,
		              other_amount = EXCLUDED.other_amount,
		              next_day_adjustment = EXCLUDED.next_day_adjustment,
		              next_day_adjustment_reason = EXCLUDED.next_day_adjustment_reason,
		              verified_by = EXCLUDED.verified_by,
		              verified_at = EXCLUDED.verified_at,
		              updated_at = EXCLUDED.updated_at
		RETURNING id`,
		s.CanteenID, s.Date, s.Description,
		s.ItemsTotal, s.PreviousDayAdjustment, s.PreviousDayReason, s.Total,
		s.CashAmount, s.OnlineAmount, s.OtherAmount,
		s.NextDayAdjustment, s.NextDayAdjustmentReason,
		s.VerifiedBy, s.VerifiedAt, s.CreatedBy, s.CreatedAt, s.UpdatedAt).
		Scan(&s.ID)
	if err != nil {
		return Sale{}, err
	}
	return s, nil
}

func (t *txRepo) ListSaleItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, sale_id, item_id, quantity, price, amount, created_at, updated_at
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY item_id
		FOR UPDATE`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSaleItems(rows)
}

func (t *txRepo) SaveSaleItem(ctx context.Context, it SaleItem) (SaleItem, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sale_items (sale_id, item_id, quantity, price, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sale_id, item_id)
		DO UPDATE SET quantity = EXCLUDED.quantity,
		              price = EXCLUDED.price,
		              amount = EXCLUDED.amount,
		              updated_at = EXCLUDED.updated_at
		RETURNING id`,
		it.SaleID, it.ItemID, it.Quantity, it.Price, it.Amount, it.CreatedAt, it.UpdatedAt).
		Scan(&it.ID)
	if err != nil {
		return SaleItem{}, err
	}
	return it, nil
}

func (t *txRepo) DeleteSaleItem(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM sale_items WHERE id = $1`, id)
	return err
}

func collectSaleItems(rows pgx.Rows) ([]SaleItem, error) {
	var out []SaleItem
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ItemID, &it.Quantity, &it.Price,
			&it.Amount, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetByID fetches one sale with its items.
func (r *Repository) GetByID(ctx context.Context, id int64) (Sale, error) {
	s, err := scanSale(r.pool.QueryRow(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1`, id))
	if err != nil {
		return Sale{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_id, item_id, quantity, price, amount, created_at, updated_at
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY item_id`, id)
	if err != nil {
		return Sale{}, err
	}
	defer rows.Close()

	s.Items, err = collectSaleItems(rows)
	if err != nil {
		return Sale{}, err
	}
	return s, nil
}

// List returns recent sales, optionally restricted to one canteen
// (canteenID = 0 means all).
func (r *Repository) List(ctx context.Context, canteenID int64, limit int) ([]Sale, error) {
	query := `
		SELECT ` + saleColumns + `
		FROM sales`
	args := []any{}
	if canteenID != 0 {
		query += ` WHERE canteen_id = $1`
		args = append(args, canteenID)
	}
	query += fmt.Sprintf(` ORDER BY date DESC, canteen_id LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SummarizeRange aggregates sales per day over [from, to], optionally for one
// canteen (canteenID = 0 means all).
func (r *Repository) SummarizeRange(ctx context.Context, canteenID int64, from, to time.Time) ([]DailySummary, error) {
	query := `
		SELECT date, COUNT(*), COALESCE(SUM(items_total), 0), COALESCE(SUM(total), 0),
		       COALESCE(SUM(cash_amount), 0), COALESCE(SUM(online_amount), 0), COALESCE(SUM(other_amount), 0)
		FROM sales
		WHERE date BETWEEN $1 AND $2`
	args := []any{from, to}
	if canteenID != 0 {
		query += ` AND canteen_id = $3`
		args = append(args, canteenID)
	}
	query += ` GROUP BY date ORDER BY date`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailySummary
	for rows.Next() {
		var d DailySummary
		if err := rows.Scan(&d.Date, &d.SaleCount, &d.ItemsTotal, &d.Total,
			&d.CashAmount, &d.OnlineAmount, &d.OtherAmount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
