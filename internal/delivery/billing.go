package delivery

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Billing is the slice of delivery persistence the invoicing and payment
// transactions use. It runs on the caller's transaction.
type Billing interface {
	LockForBilling(ctx context.Context, ids []int64) ([]Delivery, error)
	MarkBilled(ctx context.Context, invoiceID int64, ids []int64) (int64, error)
	ListByInvoice(ctx context.Context, invoiceID int64) ([]Delivery, error)
	SetPaymentStatus(ctx context.Context, invoiceID int64, status PaymentStatus) error
}

type billing struct {
	db DBTX
}

// NewBilling binds billing operations to tx.
func NewBilling(tx DBTX) Billing {
	return &billing{db: tx}
}

func (b *billing) query(ctx context.Context, query string, args ...interface{}) ([]Delivery, error) {
	rows, err := b.db.Query(ctx, query, args...)
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

// LockForBilling row-locks the deliveries in id order.
func (b *billing) LockForBilling(ctx context.Context, ids []int64) ([]Delivery, error) {
	return b.query(ctx, selectDelivery+` WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
}

// MarkBilled attaches unbilled deliveries to the invoice and returns how many
// rows changed. A count below len(ids) means another invoice won the race.
func (b *billing) MarkBilled(ctx context.Context, invoiceID int64, ids []int64) (int64, error) {
	tag, err := b.db.Exec(ctx, `UPDATE deliveries SET ar_invoice_id = $1 WHERE id = ANY($2) AND ar_invoice_id IS NULL`, invoiceID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (b *billing) ListByInvoice(ctx context.Context, invoiceID int64) ([]Delivery, error) {
	return b.query(ctx, selectDelivery+` WHERE ar_invoice_id = $1 ORDER BY delivered_at, id`, invoiceID)
}

func (b *billing) SetPaymentStatus(ctx context.Context, invoiceID int64, status PaymentStatus) error {
	_, err := b.db.Exec(ctx, `UPDATE deliveries SET payment_status = $2 WHERE ar_invoice_id = $1`, invoiceID, string(status))
	return err
}
