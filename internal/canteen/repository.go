package canteen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mealpoint/mealpoint/internal/platform/db"
	"github.com/mealpoint/mealpoint/internal/shared"
)

// Repository persists canteens in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional canteen operations.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Canteen, error)
	Save(ctx context.Context, c Canteen) (Canteen, error)
}

// WithTx executes the callback inside a repeatable-read transaction with
// bounded retry on serialization failure.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

const canteenColumns = `id, name, COALESCE(location, ''), is_active, is_locked,
	locked_at, COALESCE(locked_by, ''), COALESCE(lock_reason, ''), created_at, updated_at`

func scanCanteen(row pgx.Row) (Canteen, error) {
	var c Canteen
	err := row.Scan(&c.ID, &c.Name, &c.Location, &c.IsActive, &c.IsLocked,
		&c.LockedAt, &c.LockedBy, &c.LockReason, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Canteen{}, fmt.Errorf("canteen: %w", shared.ErrNotFound)
		}
		return Canteen{}, err
	}
	return c, nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Canteen, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+canteenColumns+`
		FROM canteens
		WHERE id = $1
		FOR UPDATE`, id)
	return scanCanteen(row)
}

func (t *txRepo) Save(ctx context.Context, c Canteen) (Canteen, error) {
	_, err := t.tx.Exec(ctx, `
		UPDATE canteens
		SET name = $2, location = NULLIF($3, ''), is_active = $4, is_locked = $5,
		    locked_at = $6, locked_by = NULLIF($7, ''), lock_reason = NULLIF($8, ''),
		    updated_at = $9
		WHERE id = $1`,
		c.ID, c.Name, c.Location, c.IsActive, c.IsLocked,
		c.LockedAt, c.LockedBy, c.LockReason, c.UpdatedAt)
	if err != nil {
		return Canteen{}, err
	}
	return c, nil
}

// Create inserts a new canteen.
func (r *Repository) Create(ctx context.Context, c Canteen) (Canteen, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO canteens (name, location, is_active, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $4)
		RETURNING id`,
		c.Name, c.Location, c.IsActive, c.CreatedAt).
		Scan(&c.ID)
	if err != nil {
		return Canteen{}, err
	}
	return c, nil
}

// Get fetches one canteen by id.
func (r *Repository) Get(ctx context.Context, id int64) (Canteen, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+canteenColumns+`
		FROM canteens
		WHERE id = $1`, id)
	return scanCanteen(row)
}

// List returns all canteens.
func (r *Repository) List(ctx context.Context) ([]Canteen, error) {
	return r.list(ctx, `
		SELECT `+canteenColumns+`
		FROM canteens
		ORDER BY name`)
}

// ListLocked returns the currently locked canteens.
func (r *Repository) ListLocked(ctx context.Context) ([]Canteen, error) {
	return r.list(ctx, `
		SELECT `+canteenColumns+`
		FROM canteens
		WHERE is_locked
		ORDER BY locked_at`)
}

func (r *Repository) list(ctx context.Context, query string) ([]Canteen, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Canteen
	for rows.Next() {
		c, err := scanCanteen(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UnlockExpired clears the lock on every canteen locked before the cutoff and
// returns how many rows changed.
func (r *Repository) UnlockExpired(ctx context.Context, cutoff, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE canteens
		SET is_locked = FALSE, locked_at = NULL, locked_by = NULL, lock_reason = NULL,
		    updated_at = $2
		WHERE is_locked AND locked_at < $1`, cutoff, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
