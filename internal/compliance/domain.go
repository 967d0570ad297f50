package compliance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether cash came in from a client or went out to a supplier.
type Direction string

const (
	DirectionReceived Direction = "RECEIVED"
	DirectionPaid     Direction = "PAID"
)

// IsValid checks the direction.
func (d Direction) IsValid() bool {
	return d == DirectionReceived || d == DirectionPaid
}

// Movement is one declared cash deposit or cash payment.
type Movement struct {
	ID             int64           `json:"id"`
	CounterpartyID int64           `json:"counterparty_id"`
	Direction      Direction       `json:"direction"`
	Amount         decimal.Decimal `json:"amount"`
	Source         string          `json:"source"`
	ARInvoiceID    *int64          `json:"ar_invoice_id,omitempty"`
	DeclaredAt     time.Time       `json:"declared_at"`
	PenaltyAmount  decimal.Decimal `json:"penalty_amount"`
	StampDuty      decimal.Decimal `json:"stamp_duty"`
	OverrideBy     *int64          `json:"override_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Stamp copies the penalty breakdown and the overriding actor onto the movement.
func (m *Movement) Stamp(res Result, o *Override) {
	if !res.PenaltyApplicable {
		return
	}
	m.PenaltyAmount = res.Penalty
	m.StampDuty = res.StampDuty
	if o.Valid() {
		actor := o.ActorID
		m.OverrideBy = &actor
	}
}

// CheckRequest asks whether a cash amount would breach the monthly ceiling.
type CheckRequest struct {
	CounterpartyID int64           `json:"counterparty_id" validate:"required,gt=0"`
	Direction      Direction       `json:"direction" validate:"required,oneof=RECEIVED PAID"`
	Amount         decimal.Decimal `json:"amount"`
	At             *time.Time      `json:"at,omitempty"`
}

// DepositRequest registers a cash movement that is not an invoice payment.
type DepositRequest struct {
	CounterpartyID int64           `json:"counterparty_id" validate:"required,gt=0"`
	Direction      Direction       `json:"direction" validate:"required,oneof=RECEIVED PAID"`
	Amount         decimal.Decimal `json:"amount"`
	Source         string          `json:"source" validate:"required,max=200"`
	DeclaredAt     *time.Time      `json:"declared_at,omitempty"`
	Override       *Override       `json:"override,omitempty"`
}

// DepositResult returns the stored movement with its check.
type DepositResult struct {
	Movement *Movement `json:"movement"`
	Check    Result    `json:"check"`
}

// Discrepancy is a movement whose stored penalty differs from a recomputation.
type Discrepancy struct {
	MovementID      int64           `json:"movement_id"`
	CounterpartyID  int64           `json:"counterparty_id"`
	Direction       Direction       `json:"direction"`
	StoredPenalty   decimal.Decimal `json:"stored_penalty"`
	ExpectedPenalty decimal.Decimal `json:"expected_penalty"`
	Unacknowledged  bool            `json:"unacknowledged"`
}

// CounterpartyTotal is the month's cash total for one counterparty and direction.
type CounterpartyTotal struct {
	CounterpartyID int64           `json:"counterparty_id"`
	Direction      Direction       `json:"direction"`
	Total          decimal.Decimal `json:"total"`
	Movements      int             `json:"movements"`
	Excess         decimal.Decimal `json:"excess"`
	Penalties      decimal.Decimal `json:"penalties"`
}

// ReconcileReport summarises a month of cash movements.
type ReconcileReport struct {
	Month         string              `json:"month"`
	Totals        []CounterpartyTotal `json:"totals"`
	Discrepancies []Discrepancy       `json:"discrepancies"`
}
