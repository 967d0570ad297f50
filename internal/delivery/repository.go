package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/concreta/concreta/internal/platform/db"
	"github.com/concreta/concreta/internal/sales/orders"
	"github.com/concreta/concreta/internal/shared"
)

const docPrefix = "BL"

// Store is the persistence contract of the delivery service.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDelivery(ctx context.Context, id int64) (*Delivery, error)
	ListBySalesOrder(ctx context.Context, salesOrderID int64) ([]Delivery, error)
	ListUnbilled(ctx context.Context, customerID int64) ([]Delivery, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockSalesOrder(ctx context.Context, id int64) (*orders.SalesOrder, error)
	SaveSalesOrder(ctx context.Context, order orders.SalesOrder) error
	InsertDelivery(ctx context.Context, d Delivery) (int64, error)
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
}

// Repository provides PostgreSQL backed persistence for delivery operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx     pgx.Tx
	orders orders.Repository
}

// WithTx wraps callback in a repeatable-read transaction, re-running it on
// serialization failures and deadlocks.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.RetryTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, orders: orders.NewTxRepository(tx)})
	})
}

// ============================================================================
// DELIVERY QUERIES
// ============================================================================

const selectDelivery = `SELECT id, doc_number, sales_order_id, customer_id, formula_id, volume_m3, unit_price,
actual_cement_kg, theoretical_cement_kg, variance_pct, technical_validated, payment_status, ar_invoice_id,
vehicle_number, driver_name, delivered_at, created_by, created_at FROM deliveries`

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	var status string
	err := row.Scan(&d.ID, &d.DocNumber, &d.SalesOrderID, &d.CustomerID, &d.FormulaID, &d.VolumeM3, &d.UnitPrice,
		&d.ActualCementKg, &d.TheoreticalCementKg, &d.VariancePct, &d.TechnicalValidated, &status, &d.ARInvoiceID,
		&d.VehicleNumber, &d.DriverName, &d.DeliveredAt, &d.CreatedBy, &d.CreatedAt)
	d.PaymentStatus = PaymentStatus(status)
	return d, err
}

// GetDelivery retrieves a delivery by ID.
func (r *Repository) GetDelivery(ctx context.Context, id int64) (*Delivery, error) {
	d, err := scanDelivery(r.pool.QueryRow(ctx, selectDelivery+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("delivery %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}

// ListBySalesOrder returns the rotations of an order in delivery order.
func (r *Repository) ListBySalesOrder(ctx context.Context, salesOrderID int64) ([]Delivery, error) {
	return r.list(ctx, selectDelivery+` WHERE sales_order_id = $1 ORDER BY delivered_at, id`, salesOrderID)
}

// ListUnbilled returns a client's deliveries not yet on an invoice.
func (r *Repository) ListUnbilled(ctx context.Context, customerID int64) ([]Delivery, error) {
	return r.list(ctx, selectDelivery+` WHERE customer_id = $1 AND ar_invoice_id IS NULL ORDER BY delivered_at, id`, customerID)
}

func (r *Repository) list(ctx context.Context, query string, args ...interface{}) ([]Delivery, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) LockSalesOrder(ctx context.Context, id int64) (*orders.SalesOrder, error) {
	return t.orders.GetForUpdate(ctx, id)
}

func (t *txRepo) SaveSalesOrder(ctx context.Context, order orders.SalesOrder) error {
	return t.orders.SaveLedger(ctx, order)
}

func (t *txRepo) InsertDelivery(ctx context.Context, d Delivery) (int64, error) {
	query := `
		INSERT INTO deliveries (
			doc_number, sales_order_id, customer_id, formula_id, volume_m3, unit_price,
			actual_cement_kg, theoretical_cement_kg, variance_pct, technical_validated,
			payment_status, vehicle_number, driver_name, delivered_at, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		d.DocNumber, d.SalesOrderID, d.CustomerID, d.FormulaID, d.VolumeM3, d.UnitPrice,
		d.ActualCementKg, d.TheoreticalCementKg, d.VariancePct, d.TechnicalValidated,
		string(d.PaymentStatus), d.VehicleNumber, d.DriverName, d.DeliveredAt, d.CreatedBy,
	).Scan(&id)
	return id, err
}

func (t *txRepo) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	seq, err := db.NextSequence(ctx, t.tx, docPrefix, date)
	if err != nil {
		return "", err
	}
	return shared.DocNumber(docPrefix, date.Year(), int(date.Month()), seq), nil
}
