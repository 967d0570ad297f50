package quotations

import (
	"encoding/json"
	"fmt"

	"github.com/concreta/concreta/internal/formulas"
	"github.com/concreta/concreta/internal/shared"
)

// Stage is the position of a quote in the validation handshake.
type Stage string

const (
	StageDraft               Stage = "DRAFT"
	StageTechnicallyApproved Stage = "TECHNICALLY_APPROVED"
	StageApproved            Stage = "APPROVED"
	StageRejected            Stage = "REJECTED"
)

// Handshake is the two-step validation state of a quote. Its fields can only be
// changed through ValidateTechnical, ValidateAdministrative and Reject, so an
// administrative sign-off without a technical one cannot be constructed.
type Handshake struct {
	stage          Stage
	technical      bool
	administrative bool
}

// NewHandshake returns the initial DRAFT state.
func NewHandshake() Handshake {
	return Handshake{stage: StageDraft}
}

// RestoreHandshake rebuilds a persisted state, refusing inconsistent combinations.
func RestoreHandshake(stage Stage, technical, administrative bool) (Handshake, error) {
	h := Handshake{stage: stage, technical: technical, administrative: administrative}
	ok := false
	switch stage {
	case StageDraft:
		ok = !technical && !administrative
	case StageTechnicallyApproved:
		ok = technical && !administrative
	case StageApproved:
		ok = technical && administrative
	case StageRejected:
		ok = !administrative
	}
	if !ok {
		return Handshake{}, fmt.Errorf("%w: stage %s technical=%t administrative=%t",
			shared.ErrSequenceViolation, stage, technical, administrative)
	}
	return h, nil
}

func (h Handshake) Stage() Stage {
	if h.stage == "" {
		return StageDraft
	}
	return h.stage
}

func (h Handshake) TechnicalValidated() bool      { return h.technical }
func (h Handshake) AdministrativeValidated() bool { return h.administrative }

// Terminal reports APPROVED or REJECTED.
func (h Handshake) Terminal() bool {
	s := h.Stage()
	return s == StageApproved || s == StageRejected
}

// CheckFormula verifies the mix design against the cement and water/cement bands.
func CheckFormula(f formulas.Formula, rules shared.Rules) error {
	if !rules.CementBandKg.Contains(f.CementKgPerM3) {
		return shared.Violation(shared.ErrFormulaOutOfSpec, "cement_kg_per_m3", f.CementKgPerM3, rules.CementBandKg.String())
	}
	ratio := f.WaterCementRatio().Round(3)
	if !rules.WaterCementRatioBand.Contains(ratio) {
		return shared.Violation(shared.ErrFormulaOutOfSpec, "water_cement_ratio", ratio, rules.WaterCementRatioBand.String())
	}
	return nil
}

// ValidateTechnical moves DRAFT to TECHNICALLY_APPROVED when the formula is in spec.
func ValidateTechnical(h Handshake, f formulas.Formula, rules shared.Rules) (Handshake, error) {
	if h.Stage() != StageDraft {
		return h, fmt.Errorf("%w: technical validation requires DRAFT, quote is %s", shared.ErrSequenceViolation, h.Stage())
	}
	if err := CheckFormula(f, rules); err != nil {
		return h, err
	}
	return Handshake{stage: StageTechnicallyApproved, technical: true}, nil
}

// ValidateAdministrative moves TECHNICALLY_APPROVED to APPROVED.
func ValidateAdministrative(h Handshake) (Handshake, error) {
	if h.Terminal() {
		return h, fmt.Errorf("%w: quote is %s", shared.ErrSequenceViolation, h.Stage())
	}
	if !h.technical {
		return h, fmt.Errorf("%w: administrative validation requires technical validation", shared.ErrSequenceViolation)
	}
	return Handshake{stage: StageApproved, technical: true, administrative: true}, nil
}

// Reject ends a non-terminal quote.
func Reject(h Handshake) (Handshake, error) {
	if h.Terminal() {
		return h, fmt.Errorf("%w: quote is %s", shared.ErrSequenceViolation, h.Stage())
	}
	return Handshake{stage: StageRejected, technical: h.technical}, nil
}

func (h Handshake) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Stage                   Stage `json:"stage"`
		TechnicalValidated      bool  `json:"technical_validated"`
		AdministrativeValidated bool  `json:"administrative_validated"`
	}{h.Stage(), h.technical, h.administrative})
}
