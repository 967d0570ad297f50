package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/platform/db"
	"github.com/concreta/concreta/internal/shared"
)

var (
	ErrAlreadyExists = errors.New("customer code already exists")
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Customer, error)
	GetByCode(ctx context.Context, code string) (*Customer, error)
	List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error)
	Create(ctx context.Context, customer Customer) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	GetForUpdate(ctx context.Context, id int64) (*Customer, error)
	AdjustCreditUsed(ctx context.Context, id int64, delta decimal.Decimal) error
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
// payment transaction does. WithTx on it runs fn in place.
func NewTxRepository(tx DBTX) Repository {
	return &repository{db: tx}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const selectCustomer = `SELECT id, code, name, credit_limit, credit_used, payment_terms_days, is_active, created_at, updated_at FROM customers`

// ScanCustomer reads a customers row in selectCustomer column order.
func ScanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.CreditLimit, &c.CreditUsed, &c.PaymentTermsDays, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Customer, error) {
	c, err := ScanCustomer(r.db.QueryRow(ctx, selectCustomer+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Customer, error) {
	c, err := ScanCustomer(r.db.QueryRow(ctx, selectCustomer+` WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", code, shared.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	var conditions []string
	var args []interface{}
	if req.Search != "" {
		args = append(args, "%"+req.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d)", len(args), len(args)))
	}
	if req.IsActive != nil {
		args = append(args, *req.IsActive)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	query := fmt.Sprintf(`%s%s ORDER BY name LIMIT $%d OFFSET $%d`, selectCustomer, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := ScanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO customers (code, name, credit_limit, credit_used, payment_terms_days, is_active)
VALUES ($1, $2, $3, 0, $4, $5) RETURNING id`, c.Code, c.Name, c.CreditLimit, c.PaymentTermsDays, c.IsActive).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, ErrAlreadyExists
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	var setClauses []string
	var args []interface{}
	for field, value := range updates {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, len(args)))
	}
	args = append(args, time.Now())
	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE customers SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Customer, error) {
	c, err := ScanCustomer(r.db.QueryRow(ctx, selectCustomer+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

// AdjustCreditUsed moves the outstanding balance by delta. The column check
// rejects a negative result.
func (r *repository) AdjustCreditUsed(ctx context.Context, id int64, delta decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `UPDATE customers SET credit_used = credit_used + $2, updated_at = NOW() WHERE id = $1`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	return nil
}
