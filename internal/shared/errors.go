package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a request value outside its accepted domain.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSequenceViolation indicates a workflow step attempted out of order.
	ErrSequenceViolation = errors.New("sequence violation")
	// ErrFormulaOutOfSpec indicates a mix formula outside the technical bands.
	ErrFormulaOutOfSpec = errors.New("formula out of spec")
	// ErrQuoteNotApproved occurs when an order is requested from a non-approved quote.
	ErrQuoteNotApproved = errors.New("quotation not approved")
	// ErrOrderClosed occurs when a delivery targets a completed order.
	ErrOrderClosed = errors.New("order closed")
	// ErrVolumeExceedsRemaining occurs when a delivery overdraws the order.
	ErrVolumeExceedsRemaining = errors.New("volume exceeds remaining")
	// ErrVolumeOutOfRange occurs when a delivery volume is not positive or exceeds vehicle capacity.
	ErrVolumeOutOfRange = errors.New("volume out of range")
	// ErrMixedClientDeliveries occurs when an invoice mixes deliveries of different clients.
	ErrMixedClientDeliveries = errors.New("deliveries belong to different clients")
	// ErrAlreadyBilled occurs when a delivery is already part of an invoice.
	ErrAlreadyBilled = errors.New("delivery already billed")
	// ErrCashComplianceFlagged indicates a cash payment exceeding the monthly ceiling.
	ErrCashComplianceFlagged = errors.New("cash compliance flagged")
	// ErrCreditLimitExceeded occurs when the enforced credit gate denies an order.
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
)

// ViolationError reports the offending value and the bound it broke.
type ViolationError struct {
	Err   error
	Field string
	Value string
	Bound string
}

// Violation builds a ViolationError.
func Violation(err error, field string, value any, bound string) *ViolationError {
	return &ViolationError{Err: err, Field: field, Value: fmt.Sprint(value), Bound: bound}
}

func (e *ViolationError) Error() string {
	if e.Bound == "" {
		return fmt.Sprintf("%v: %s=%s", e.Err, e.Field, e.Value)
	}
	return fmt.Sprintf("%v: %s=%s (bound %s)", e.Err, e.Field, e.Value, e.Bound)
}

func (e *ViolationError) Unwrap() error {
	return e.Err
}
