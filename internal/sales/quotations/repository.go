package quotations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/concreta/concreta/internal/platform/db"
	"github.com/concreta/concreta/internal/shared"
)

const docPrefix = "QT"

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Quotation, error)
	GetForUpdate(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error)
	Create(ctx context.Context, quotation Quotation) (int64, error)
	ApplyTransition(ctx context.Context, id int64, from Stage, t Transition) error
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const selectQuotation = `SELECT id, doc_number, customer_id, formula_id, volume_m3, unit_price, tax_rate_pct,
net_amount, tax_amount, total_amount, status, technical_validated, administrative_validated,
technical_by, technical_at, approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
valid_until, notes, created_by, created_at, updated_at FROM quotations`

func scanQuotation(row pgx.Row) (Quotation, error) {
	var (
		q              Quotation
		stage          string
		technical      bool
		administrative bool
	)
	err := row.Scan(&q.ID, &q.DocNumber, &q.CustomerID, &q.FormulaID, &q.VolumeM3, &q.UnitPrice, &q.TaxRatePct,
		&q.NetAmount, &q.TaxAmount, &q.TotalAmount, &stage, &technical, &administrative,
		&q.TechnicalBy, &q.TechnicalAt, &q.ApprovedBy, &q.ApprovedAt, &q.RejectedBy, &q.RejectedAt, &q.RejectionReason,
		&q.ValidUntil, &q.Notes, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return q, err
	}
	q.Handshake, err = RestoreHandshake(Stage(stage), technical, administrative)
	return q, err
}

func (r *repository) get(ctx context.Context, query string, id int64) (*Quotation, error) {
	q, err := scanQuotation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("quotation %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &q, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	return r.get(ctx, selectQuotation+` WHERE id = $1`, id)
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Quotation, error) {
	return r.get(ctx, selectQuotation+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	var conditions []string
	var args []interface{}
	if req.CustomerID != nil {
		args = append(args, *req.CustomerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if req.Stage != nil {
		args = append(args, string(*req.Stage))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM quotations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`%s%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		selectQuotation, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO quotations (doc_number, customer_id, formula_id, volume_m3, unit_price, tax_rate_pct,
net_amount, tax_amount, total_amount, status, technical_validated, administrative_validated, valid_until, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`,
		q.DocNumber, q.CustomerID, q.FormulaID, q.VolumeM3, q.UnitPrice, q.TaxRatePct,
		q.NetAmount, q.TaxAmount, q.TotalAmount, string(q.Handshake.Stage()),
		q.Handshake.TechnicalValidated(), q.Handshake.AdministrativeValidated(), q.ValidUntil, q.Notes, q.CreatedBy).Scan(&id)
	return id, err
}

// ApplyTransition persists a handshake step. The status guard turns a lost race
// into a sequence violation instead of a double transition.
func (r *repository) ApplyTransition(ctx context.Context, id int64, from Stage, t Transition) error {
	var (
		query string
		args  []interface{}
	)
	next := t.Next
	switch next.Stage() {
	case StageTechnicallyApproved:
		query = `UPDATE quotations SET status = $1, technical_validated = $2, administrative_validated = $3,
technical_by = $4, technical_at = $5, updated_at = $5 WHERE id = $6 AND status = $7`
		args = []interface{}{string(next.Stage()), next.TechnicalValidated(), next.AdministrativeValidated(), t.Actor, t.At, id, string(from)}
	case StageApproved:
		query = `UPDATE quotations SET status = $1, technical_validated = $2, administrative_validated = $3,
approved_by = $4, approved_at = $5, updated_at = $5 WHERE id = $6 AND status = $7`
		args = []interface{}{string(next.Stage()), next.TechnicalValidated(), next.AdministrativeValidated(), t.Actor, t.At, id, string(from)}
	case StageRejected:
		query = `UPDATE quotations SET status = $1, technical_validated = $2, administrative_validated = $3,
rejected_by = $4, rejected_at = $5, rejection_reason = $6, updated_at = $5 WHERE id = $7 AND status = $8`
		args = []interface{}{string(next.Stage()), next.TechnicalValidated(), next.AdministrativeValidated(), t.Actor, t.At, t.Reason, id, string(from)}
	default:
		return fmt.Errorf("%w: cannot persist stage %s", shared.ErrSequenceViolation, next.Stage())
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quotation %d is no longer %s", shared.ErrSequenceViolation, id, from)
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
