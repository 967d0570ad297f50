package ar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/concreta/concreta/internal/compliance"
	"github.com/concreta/concreta/internal/delivery"
	"github.com/concreta/concreta/internal/platform/db"
	"github.com/concreta/concreta/internal/sales/customers"
	"github.com/concreta/concreta/internal/shared"
)

const (
	invoicePrefix = "FA"
	paymentPrefix = "RG"
)

// Store is the persistence contract of the AR service.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	ListUnpaid(ctx context.Context) ([]Invoice, error)
	UpdateDaysOverdue(ctx context.Context, id int64, days int) error
}

// TxRepository exposes transactional operations. Delivery, client and cash
// writes go through their own packages bound to the same transaction.
type TxRepository interface {
	LockDeliveries(ctx context.Context, ids []int64) ([]delivery.Delivery, error)
	MarkDeliveriesBilled(ctx context.Context, invoiceID int64, ids []int64) (int64, error)
	SetDeliveriesPaymentStatus(ctx context.Context, invoiceID int64, status delivery.PaymentStatus) error
	GetCustomer(ctx context.Context, id int64) (*customers.Customer, error)
	LockCustomer(ctx context.Context, id int64) (*customers.Customer, error)
	AdjustCreditUsed(ctx context.Context, customerID int64, delta decimal.Decimal) error
	CashMonthlyTotal(ctx context.Context, customerID int64, from, to time.Time) (decimal.Decimal, error)
	InsertCashMovement(ctx context.Context, m compliance.Movement) (int64, error)
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	LockInvoice(ctx context.Context, id int64) (*Invoice, error)
	SaveSettlement(ctx context.Context, inv Invoice) error
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	GenerateNumber(ctx context.Context, prefix string, date time.Time) (string, error)
}

// Repository provides PostgreSQL backed persistence for AR.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx         pgx.Tx
	deliveries delivery.Billing
	customers  customers.Repository
	cash       compliance.Repository
}

// WithTx wraps callback in a repeatable-read transaction, re-running it on
// serialization failures and deadlocks.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.RetryTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			tx:         tx,
			deliveries: delivery.NewBilling(tx),
			customers:  customers.NewTxRepository(tx),
			cash:       compliance.NewTxRepository(tx),
		})
	})
}

// --- Invoice Queries ---

const selectInvoice = `SELECT i.id, i.number, i.customer_id,
COALESCE((SELECT array_agg(d.id ORDER BY d.id) FROM deliveries d WHERE d.ar_invoice_id = i.id), '{}'),
i.subtotal, i.tax_rate_pct, i.tax_amount, i.total, i.paid_amount, i.credit_accrued, i.status,
i.issued_at, i.due_at, i.days_overdue, i.created_by, i.created_at, i.updated_at
FROM ar_invoices i`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var status string
	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.DeliveryIDs,
		&inv.Subtotal, &inv.TaxRatePct, &inv.TaxAmount, &inv.Total, &inv.PaidAmount, &inv.CreditAccrued, &status,
		&inv.IssuedAt, &inv.DueAt, &inv.DaysOverdue, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	inv.Status = InvoiceStatus(status)
	return inv, err
}

func getInvoice(ctx context.Context, q db.RowQuerier, query string, id int64) (*Invoice, error) {
	inv, err := scanInvoice(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &inv, nil
}

// GetInvoice retrieves an invoice by ID.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return getInvoice(ctx, r.pool, selectInvoice+` WHERE i.id = $1`, id)
}

// ListInvoices returns invoices with optional filtering.
func (r *Repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	if req.CustomerID != nil {
		args = append(args, *req.CustomerID)
		where += fmt.Sprintf(" AND i.customer_id = $%d", len(args))
	}
	if req.Status != nil {
		args = append(args, string(*req.Status))
		where += fmt.Sprintf(" AND i.status = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ar_invoices i`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	query := fmt.Sprintf("%s%s ORDER BY i.issued_at DESC, i.id DESC LIMIT $%d OFFSET $%d", selectInvoice, where, len(args)-1, len(args))
	invoices, err := r.listInvoices(ctx, query, args...)
	return invoices, total, err
}

// ListUnpaid returns invoices that still carry a balance.
func (r *Repository) ListUnpaid(ctx context.Context) ([]Invoice, error) {
	return r.listInvoices(ctx, selectInvoice+` WHERE i.status <> 'PAID' ORDER BY i.due_at, i.id`)
}

func (r *Repository) listInvoices(ctx context.Context, query string, args ...any) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// UpdateDaysOverdue stores the overdue counter of an unpaid invoice.
func (r *Repository) UpdateDaysOverdue(ctx context.Context, id int64, days int) error {
	_, err := r.pool.Exec(ctx, `UPDATE ar_invoices SET days_overdue = $2, updated_at = NOW() WHERE id = $1 AND status <> 'PAID'`, id, days)
	return err
}

// --- Payment Queries ---

// ListPayments returns payments applied to an invoice.
func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, number, ar_invoice_id, amount, method, paid_at, override_by,
penalty_amount, stamp_duty, COALESCE(note, ''), created_at
FROM ar_payments WHERE ar_invoice_id = $1 ORDER BY paid_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		var method string
		if err := rows.Scan(&p.ID, &p.Number, &p.ARInvoiceID, &p.Amount, &method, &p.PaidAt, &p.OverrideBy,
			&p.PenaltyAmount, &p.StampDuty, &p.Note, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Method = PaymentMethod(method)
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Transactional Operations ---

func (t *txRepo) LockDeliveries(ctx context.Context, ids []int64) ([]delivery.Delivery, error) {
	return t.deliveries.LockForBilling(ctx, ids)
}

func (t *txRepo) MarkDeliveriesBilled(ctx context.Context, invoiceID int64, ids []int64) (int64, error) {
	return t.deliveries.MarkBilled(ctx, invoiceID, ids)
}

func (t *txRepo) SetDeliveriesPaymentStatus(ctx context.Context, invoiceID int64, status delivery.PaymentStatus) error {
	return t.deliveries.SetPaymentStatus(ctx, invoiceID, status)
}

func (t *txRepo) GetCustomer(ctx context.Context, id int64) (*customers.Customer, error) {
	return t.customers.Get(ctx, id)
}

func (t *txRepo) LockCustomer(ctx context.Context, id int64) (*customers.Customer, error) {
	return t.customers.GetForUpdate(ctx, id)
}

func (t *txRepo) AdjustCreditUsed(ctx context.Context, customerID int64, delta decimal.Decimal) error {
	return t.customers.AdjustCreditUsed(ctx, customerID, delta)
}

func (t *txRepo) CashMonthlyTotal(ctx context.Context, customerID int64, from, to time.Time) (decimal.Decimal, error) {
	return t.cash.MonthlyTotal(ctx, customerID, compliance.DirectionReceived, from, to)
}

func (t *txRepo) InsertCashMovement(ctx context.Context, m compliance.Movement) (int64, error) {
	return t.cash.Insert(ctx, m)
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO ar_invoices (number, customer_id, subtotal, tax_rate_pct, tax_amount, total,
paid_amount, credit_accrued, status, issued_at, due_at, days_overdue, created_by)
VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, $8, $9, 0, $10) RETURNING id`,
		inv.Number, inv.CustomerID, inv.Subtotal, inv.TaxRatePct, inv.TaxAmount, inv.Total,
		string(inv.Status), inv.IssuedAt, inv.DueAt, inv.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) LockInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return getInvoice(ctx, t.tx, selectInvoice+` WHERE i.id = $1 FOR UPDATE OF i`, id)
}

func (t *txRepo) SaveSettlement(ctx context.Context, inv Invoice) error {
	_, err := t.tx.Exec(ctx, `UPDATE ar_invoices SET paid_amount = $2, credit_accrued = $3, status = $4,
days_overdue = $5, updated_at = NOW() WHERE id = $1`,
		inv.ID, inv.PaidAmount, inv.CreditAccrued, string(inv.Status), inv.DaysOverdue)
	return err
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var note *string
	if p.Note != "" {
		note = &p.Note
	}
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO ar_payments (number, ar_invoice_id, amount, method, paid_at, override_by,
penalty_amount, stamp_duty, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		p.Number, p.ARInvoiceID, p.Amount, string(p.Method), p.PaidAt, p.OverrideBy,
		p.PenaltyAmount, p.StampDuty, note).Scan(&id)
	return id, err
}

func (t *txRepo) GenerateNumber(ctx context.Context, prefix string, date time.Time) (string, error) {
	seq, err := db.NextSequence(ctx, t.tx, prefix, date)
	if err != nil {
		return "", err
	}
	return shared.DocNumber(prefix, date.Year(), int(date.Month()), seq), nil
}
