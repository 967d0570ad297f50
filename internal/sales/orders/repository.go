package orders

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

const docPrefix = "BC"

// ErrQuoteAlreadyConverted occurs when a second order is requested for one quote.
var ErrQuoteAlreadyConverted = fmt.Errorf("%w: quotation already converted to an order", shared.ErrSequenceViolation)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*SalesOrder, error)
	GetForUpdate(ctx context.Context, id int64) (*SalesOrder, error)
	GetByQuotation(ctx context.Context, quotationID int64) (*SalesOrder, error)
	List(ctx context.Context, req ListSalesOrdersRequest) ([]SalesOrder, int, error)
	Create(ctx context.Context, order SalesOrder) (int64, error)
	SaveLedger(ctx context.Context, order SalesOrder) error
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
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

// NewTxRepository binds the repository to a transaction owned by another
// package, as the delivery transaction does. WithTx on it runs fn in place.
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

const selectSalesOrder = `SELECT id, doc_number, customer_id, formula_id, quotation_id, unit_price, tax_rate_pct,
ordered_m3, delivered_m3, remaining_m3, status, delivery_address, created_by, created_at, updated_at, completed_at
FROM sales_orders`

func scanSalesOrder(row pgx.Row) (SalesOrder, error) {
	var (
		o                             SalesOrder
		ordered, delivered, remaining decimal.Decimal
		status                        string
	)
	err := row.Scan(&o.ID, &o.DocNumber, &o.CustomerID, &o.FormulaID, &o.QuotationID, &o.UnitPrice, &o.TaxRatePct,
		&ordered, &delivered, &remaining, &status, &o.DeliveryAddress, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt)
	if err != nil {
		return o, err
	}
	o.Status = SalesOrderStatus(status)
	o.Ledger, err = RestoreLedger(ordered, delivered, remaining)
	return o, err
}

func (r *repository) getOne(ctx context.Context, query string, arg int64, what string) (*SalesOrder, error) {
	o, err := scanSalesOrder(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s %d: %w", what, arg, shared.ErrNotFound)
		}
		return nil, err
	}
	return &o, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*SalesOrder, error) {
	return r.getOne(ctx, selectSalesOrder+` WHERE id = $1`, id, "sales order")
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*SalesOrder, error) {
	return r.getOne(ctx, selectSalesOrder+` WHERE id = $1 FOR UPDATE`, id, "sales order")
}

func (r *repository) GetByQuotation(ctx context.Context, quotationID int64) (*SalesOrder, error) {
	return r.getOne(ctx, selectSalesOrder+` WHERE quotation_id = $1`, quotationID, "sales order for quotation")
}

func (r *repository) List(ctx context.Context, req ListSalesOrdersRequest) ([]SalesOrder, int, error) {
	var conditions []string
	var args []interface{}
	if req.CustomerID != nil {
		args = append(args, *req.CustomerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if req.Status != nil {
		args = append(args, string(*req.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sales_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`%s%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		selectSalesOrder, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []SalesOrder
	for rows.Next() {
		o, err := scanSalesOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, o SalesOrder) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO sales_orders (doc_number, customer_id, formula_id, quotation_id, unit_price, tax_rate_pct,
ordered_m3, delivered_m3, remaining_m3, status, delivery_address, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		o.DocNumber, o.CustomerID, o.FormulaID, o.QuotationID, o.UnitPrice, o.TaxRatePct,
		o.Ledger.Ordered(), o.Ledger.Delivered(), o.Ledger.Remaining(), string(o.Status), o.DeliveryAddress, o.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "sales_orders_quotation_id_key" {
			return 0, ErrQuoteAlreadyConverted
		}
		return 0, err
	}
	return id, nil
}

// SaveLedger writes the volume ledger and status after a delivery.
func (r *repository) SaveLedger(ctx context.Context, o SalesOrder) error {
	tag, err := r.db.Exec(ctx, `UPDATE sales_orders SET delivered_m3 = $1, remaining_m3 = $2, status = $3,
completed_at = $4, updated_at = $5 WHERE id = $6`,
		o.Ledger.Delivered(), o.Ledger.Remaining(), string(o.Status), o.CompletedAt, o.UpdatedAt, o.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sales order %d: %w", o.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	seq, err := db.NextSequence(ctx, r.db, docPrefix, date)
	if err != nil {
		return "", err
	}
	return shared.DocNumber(docPrefix, date.Year(), int(date.Month()), seq), nil
}
