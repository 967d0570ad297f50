package quotations

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concreta/concreta/internal/formulas"
	"github.com/concreta/concreta/internal/shared"
)

func b25() formulas.Formula {
	return formulas.Formula{
		ID:            1,
		Code:          "B25",
		CementKgPerM3: decimal.NewFromInt(350),
		WaterLPerM3:   decimal.NewFromInt(175),
	}
}

func TestHandshakeHappyPath(t *testing.T) {
	rules := shared.DefaultRules()
	h := NewHandshake()
	assert.Equal(t, StageDraft, h.Stage())

	h, err := ValidateTechnical(h, b25(), rules)
	require.NoError(t, err)
	assert.Equal(t, StageTechnicallyApproved, h.Stage())
	assert.True(t, h.TechnicalValidated())
	assert.False(t, h.AdministrativeValidated())

	h, err = ValidateAdministrative(h)
	require.NoError(t, err)
	assert.Equal(t, StageApproved, h.Stage())
	assert.True(t, h.Terminal())
}

func TestAdministrativeBeforeTechnicalFails(t *testing.T) {
	h := NewHandshake()
	next, err := ValidateAdministrative(h)
	assert.ErrorIs(t, err, shared.ErrSequenceViolation)
	assert.Equal(t, h, next)
}

func TestTechnicalValidationFormulaBands(t *testing.T) {
	rules := shared.DefaultRules()

	rich := b25()
	rich.CementKgPerM3 = decimal.NewFromInt(550)
	_, err := ValidateTechnical(NewHandshake(), rich, rules)
	require.ErrorIs(t, err, shared.ErrFormulaOutOfSpec)
	var v *shared.ViolationError
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "cement_kg_per_m3", v.Field)
	assert.Equal(t, "[200, 500]", v.Bound)

	wet := b25()
	wet.WaterLPerM3 = decimal.NewFromInt(245)
	_, err = ValidateTechnical(NewHandshake(), wet, rules)
	require.ErrorIs(t, err, shared.ErrFormulaOutOfSpec)
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "water_cement_ratio", v.Field)
	assert.Equal(t, "0.7", v.Value)
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	rules := shared.DefaultRules()
	rejected, err := Reject(NewHandshake())
	require.NoError(t, err)

	_, err = ValidateTechnical(rejected, b25(), rules)
	assert.ErrorIs(t, err, shared.ErrSequenceViolation)
	_, err = ValidateAdministrative(rejected)
	assert.ErrorIs(t, err, shared.ErrSequenceViolation)
	_, err = Reject(rejected)
	assert.ErrorIs(t, err, shared.ErrSequenceViolation)
}

func TestRestoreHandshakeRejectsInconsistentState(t *testing.T) {
	_, err := RestoreHandshake(StageApproved, false, true)
	assert.ErrorIs(t, err, shared.ErrSequenceViolation)
	_, err = RestoreHandshake(StageDraft, true, false)
	assert.ErrorIs(t, err, shared.ErrSequenceViolation)

	h, err := RestoreHandshake(StageRejected, true, false)
	require.NoError(t, err)
	assert.True(t, h.Terminal())
}

func TestHandshakeJSON(t *testing.T) {
	h, err := ValidateTechnical(NewHandshake(), b25(), shared.DefaultRules())
	require.NoError(t, err)
	raw, err := json.Marshal(h)
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"TECHNICALLY_APPROVED","technical_validated":true,"administrative_validated":false}`, string(raw))
}

// Random operation orderings never yield administrative without technical.
func TestHandshakeRandomOrderings(t *testing.T) {
	rules := shared.DefaultRules()
	bad := b25()
	bad.CementKgPerM3 = decimal.NewFromInt(100)
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 2000; run++ {
		h := NewHandshake()
		for step := 0; step < 6; step++ {
			var next Handshake
			var err error
			switch rng.Intn(4) {
			case 0:
				next, err = ValidateTechnical(h, b25(), rules)
			case 1:
				next, err = ValidateTechnical(h, bad, rules)
			case 2:
				next, err = ValidateAdministrative(h)
			case 3:
				next, err = Reject(h)
			}
			if err != nil {
				assert.Equal(t, h, next, "failed transition must not change state")
			} else {
				h = next
			}
			require.False(t, h.AdministrativeValidated() && !h.TechnicalValidated(), "run %d step %d", run, step)
			_, restoreErr := RestoreHandshake(h.Stage(), h.TechnicalValidated(), h.AdministrativeValidated())
			require.NoError(t, restoreErr)
		}
	}
}
