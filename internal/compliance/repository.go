package compliance

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/platform/db"
)

// Repository persists cash movements.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	MonthlyTotal(ctx context.Context, counterpartyID int64, dir Direction, from, to time.Time) (decimal.Decimal, error)
	Insert(ctx context.Context, m Movement) (int64, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Movement, error)
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// NewTxRepository binds the repository to a caller-owned transaction, as the
// payment transaction does.
func NewTxRepository(tx DBTX) Repository {
	return &repository{db: tx}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.RetryTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) MonthlyTotal(ctx context.Context, counterpartyID int64, dir Direction, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM cash_movements
WHERE counterparty_id = $1 AND direction = $2 AND declared_at >= $3 AND declared_at < $4`,
		counterpartyID, string(dir), from, to).Scan(&total)
	return total, err
}

func (r *repository) Insert(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO cash_movements (counterparty_id, direction, amount, source, ar_invoice_id,
declared_at, penalty_amount, stamp_duty, override_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		m.CounterpartyID, string(m.Direction), m.Amount, m.Source, m.ARInvoiceID,
		m.DeclaredAt, m.PenaltyAmount, m.StampDuty, m.OverrideBy).Scan(&id)
	return id, err
}

func (r *repository) ListBetween(ctx context.Context, from, to time.Time) ([]Movement, error) {
	rows, err := r.db.Query(ctx, `SELECT id, counterparty_id, direction, amount, source, ar_invoice_id, declared_at,
penalty_amount, stamp_duty, override_by, created_at
FROM cash_movements WHERE declared_at >= $1 AND declared_at < $2
ORDER BY counterparty_id, direction, declared_at, id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var (
			m   Movement
			dir string
		)
		if err := rows.Scan(&m.ID, &m.CounterpartyID, &dir, &m.Amount, &m.Source, &m.ARInvoiceID, &m.DeclaredAt,
			&m.PenaltyAmount, &m.StampDuty, &m.OverrideBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Direction = Direction(dir)
		out = append(out, m)
	}
	return out, rows.Err()
}
