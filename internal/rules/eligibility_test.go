package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
)

func TestCheckExamEligibility(t *testing.T) {
	reg := testDefaultRegistry(t)

	short := CheckExamEligibility(reg, "IN", 1999, false)
	assert.False(t, short.Eligible)
	assert.Equal(t, "1 more hour(s) required.", short.Reason)
	assert.Equal(t, 1.0, short.Shortfall)
	assert.Equal(t, "IN-BARBER-2023-07", short.RuleSetID)

	fractional := CheckExamEligibility(reg, "IN", 1987.5, false)
	assert.Equal(t, "12.5 more hour(s) required.", fractional.Reason)

	nearly := CheckExamEligibility(reg, "IN", 1999.996, false)
	assert.False(t, nearly.Eligible)
	assert.Equal(t, 0.01, nearly.Shortfall)
	assert.Equal(t, "0.01 more hour(s) required.", nearly.Reason)

	ok := CheckExamEligibility(reg, "IN", 2000, false)
	assert.True(t, ok.Eligible)
	assert.Equal(t, ReasonEligible, ok.Reason)
	assert.Zero(t, ok.Shortfall)

	pending := CheckExamEligibility(reg, "IN", 2500, true)
	assert.False(t, pending.Eligible)
	assert.Equal(t, ReasonPendingReviews, pending.Reason)

	unknown := CheckExamEligibility(reg, "ZZ", 5000, false)
	assert.False(t, unknown.Eligible)
	assert.Equal(t, ReasonRulesNotFound, unknown.Reason)
}

func TestCheckExamEligibilityWithoutExam(t *testing.T) {
	reg := testDefaultRegistry(t)

	res := CheckExamEligibility(reg, "KY", 1500, false)
	assert.True(t, res.Eligible)
	assert.False(t, res.ExamIsRequired)
	assert.Equal(t, ReasonExamNotNeeded, res.Reason)
}

func TestCheckExamEligibilityFallsBackToRequiredTotal(t *testing.T) {
	reg, err := NewRegistry(models.JurisdictionRules{
		RuleSetID:           "NX-1",
		JurisdictionCode:    "NX",
		Version:             1,
		RequiredTotalHours:  800,
		AcceptedSourceTypes: []models.SourceType{models.SourceHostSite},
	})
	require.NoError(t, err)

	res := CheckExamEligibility(reg, "NX", 700, false)
	assert.Equal(t, 800, res.RequiredHours)
	assert.Equal(t, "100 more hour(s) required.", res.Reason)
}

func TestCalculateRemainingHours(t *testing.T) {
	reg := testDefaultRegistry(t)

	rem, ok := CalculateRemainingHours(reg, "IN", 1500)
	require.True(t, ok)
	assert.Equal(t, 500.0, rem.Remaining)
	assert.Equal(t, 2000, rem.TotalRequired)
	assert.Equal(t, 75.0, rem.PercentageComplete)

	over, ok := CalculateRemainingHours(reg, "IN", 2600)
	require.True(t, ok)
	assert.Zero(t, over.Remaining)
	assert.Equal(t, 100.0, over.PercentageComplete)

	_, ok = CalculateRemainingHours(reg, "ZZ", 10)
	assert.False(t, ok)
}

func TestPercentageAndFormatting(t *testing.T) {
	assert.Equal(t, 55.0, Percentage(55, 100))
	assert.Equal(t, 33.33, Percentage(1, 3))
	assert.Zero(t, Percentage(10, 0))
	assert.Equal(t, "1", FormatHours(1))
	assert.Equal(t, "0.33", FormatHours(1.0/3))
}
