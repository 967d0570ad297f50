package compliance

import (
	"fmt"

	"github.com/concreta/concreta/internal/shared"
)

// Override is the explicit acknowledgement that lets a flagged cash movement proceed.
type Override struct {
	ActorID      int64 `json:"actor_id"`
	Acknowledged bool  `json:"acknowledged"`
}

// Valid reports whether the override can authorise a flagged movement.
func (o *Override) Valid() bool {
	return o != nil && o.Acknowledged && o.ActorID > 0
}

// FlaggedError is returned when a cash movement exceeds the monthly ceiling and
// no valid override was supplied. Nothing has been written when it is returned.
type FlaggedError struct {
	Result Result
}

func (e *FlaggedError) Error() string {
	return fmt.Sprintf("%v: monthly total %s exceeds ceiling %s, penalty %s + stamp duty %s",
		shared.ErrCashComplianceFlagged, e.Result.NewTotal, e.Result.Ceiling, e.Result.Penalty, e.Result.StampDuty)
}

func (e *FlaggedError) Unwrap() error {
	return shared.ErrCashComplianceFlagged
}

// ProblemDetails exposes the breakdown in API error responses.
func (e *FlaggedError) ProblemDetails() map[string]any {
	return map[string]any{
		"prior_total":        e.Result.PriorTotal,
		"amount":             e.Result.Amount,
		"new_total":          e.Result.NewTotal,
		"ceiling":            e.Result.Ceiling,
		"excess":             e.Result.Excess,
		"penalty":            e.Result.Penalty,
		"stamp_duty":         e.Result.StampDuty,
		"total_penalty_cost": e.Result.TotalPenaltyCost,
		"override_required":  true,
	}
}

// Authorize returns nil when the result is within the ceiling or the override
// acknowledges the penalty, and a *FlaggedError otherwise.
func Authorize(res Result, o *Override) error {
	if !res.PenaltyApplicable || o.Valid() {
		return nil
	}
	return &FlaggedError{Result: res}
}
