package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concreta/concreta/internal/shared"
)

func TestLoadConfigDefaultsMatchReferenceRules(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	rules, err := cfg.Engine()
	require.NoError(t, err)
	want := shared.DefaultRules()
	assert.True(t, want.CementBandKg.Min.Equal(rules.CementBandKg.Min))
	assert.True(t, want.CementBandKg.Max.Equal(rules.CementBandKg.Max))
	assert.True(t, want.WaterCementRatioBand.Min.Equal(rules.WaterCementRatioBand.Min))
	assert.True(t, want.WaterCementRatioBand.Max.Equal(rules.WaterCementRatioBand.Max))
	assert.True(t, want.MaxVehicleVolumeM3.Equal(rules.MaxVehicleVolumeM3))
	assert.True(t, want.CashMonthlyCeiling.Equal(rules.CashMonthlyCeiling))
	assert.True(t, want.StampDutyRatePct.Equal(rules.StampDutyRatePct))
	assert.Equal(t, shared.CreditGateAdvisory, rules.CreditGateMode)
	assert.Equal(t, ":8080", cfg.AppAddr)
}

func TestLoadConfigReadsOverrides(t *testing.T) {
	t.Setenv("CASH_MONTHLY_CEILING", "75000")
	t.Setenv("CREDIT_GATE_MODE", "enforced")
	t.Setenv("WATER_CEMENT_RATIO_MAX", "0.6")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	rules, err := cfg.Engine()
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(75000).Equal(rules.CashMonthlyCeiling))
	assert.True(t, decimal.RequireFromString("0.6").Equal(rules.WaterCementRatioBand.Max))
	assert.Equal(t, shared.CreditGateEnforced, rules.CreditGateMode)
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	cases := map[string][2]string{
		"inverted cement band": {"CEMENT_BAND_KG_MIN", "600"},
		"unknown gate mode":    {"CREDIT_GATE_MODE", "strict"},
		"zero vehicle volume":  {"MAX_VEHICLE_VOLUME_M3", "0"},
		"negative penalty":     {"CASH_PENALTY_RATE_PCT", "-1"},
		"not a number":         {"DEFAULT_TAX_RATE_PCT", "twenty"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestEngineOnNilConfigFallsBackToDefaults(t *testing.T) {
	var cfg *Config
	rules, err := cfg.Engine()
	require.NoError(t, err)
	assert.True(t, shared.DefaultRules().CashMonthlyCeiling.Equal(rules.CashMonthlyCeiling))
	assert.False(t, cfg.IsProduction())
}
