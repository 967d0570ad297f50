// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/concreta/concreta/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// detailer is implemented by errors that carry structured problem extensions.
type detailer interface {
	ProblemDetails() map[string]any
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status, title := classify(err)
	problem := ProblemDetail{Title: title, Status: status}
	if status != http.StatusInternalServerError {
		problem.Detail = err.Error()
	}
	var d detailer
	if errors.As(err, &d) {
		problem.Extensions = d.ProblemDetails()
	}
	var v *shared.ViolationError
	if errors.As(err, &v) {
		if problem.Extensions == nil {
			problem.Extensions = map[string]any{}
		}
		problem.Extensions["field"] = v.Field
		problem.Extensions["value"] = v.Value
		if v.Bound != "" {
			problem.Extensions["bound"] = v.Bound
		}
	}
	JSON(w, status, problem)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, ErrValidation), errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, shared.ErrSequenceViolation),
		errors.Is(err, shared.ErrQuoteNotApproved),
		errors.Is(err, shared.ErrOrderClosed),
		errors.Is(err, shared.ErrAlreadyBilled),
		errors.Is(err, shared.ErrIdempotencyConflict),
		errors.Is(err, ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, shared.ErrFormulaOutOfSpec),
		errors.Is(err, shared.ErrVolumeExceedsRemaining),
		errors.Is(err, shared.ErrVolumeOutOfRange),
		errors.Is(err, shared.ErrMixedClientDeliveries),
		errors.Is(err, shared.ErrCreditLimitExceeded),
		errors.Is(err, shared.ErrCashComplianceFlagged):
		return http.StatusUnprocessableEntity, "Business Rule Violated"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}
