package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/rules"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

type progressSourceStub struct {
	summary *models.ApprenticeProgressSummary
	err     error
}

func (s progressSourceStub) Summary(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.ApprenticeProgressSummary, bool, error) {
	return s.summary, false, s.err
}

type standingStub struct {
	standing *models.LedgerStanding
	err      error
}

func (s standingStub) Standing(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.LedgerStanding, error) {
	return s.standing, s.err
}

func TestEligibilityServiceCheckDirect(t *testing.T) {
	svc := NewEligibilityService(defaultRegistry(t), nil, nil, nil, nil)

	result, err := svc.CheckDirect(dto.EligibilityRequest{JurisdictionCode: "IN", TotalAcceptedHours: 1999})
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, "1 more hour(s) required.", result.Reason)
	assert.Equal(t, 1.0, result.Shortfall)

	result, err = svc.CheckDirect(dto.EligibilityRequest{JurisdictionCode: "IN", TotalAcceptedHours: 2000})
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.Equal(t, rules.ReasonEligible, result.Reason)

	result, err = svc.CheckDirect(dto.EligibilityRequest{JurisdictionCode: "IN", TotalAcceptedHours: 2500, HasPendingReviews: true})
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, rules.ReasonPendingReviews, result.Reason)

	result, err = svc.CheckDirect(dto.EligibilityRequest{JurisdictionCode: "KY", TotalAcceptedHours: 1500})
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.Equal(t, rules.ReasonExamNotNeeded, result.Reason)

	result, err = svc.CheckDirect(dto.EligibilityRequest{JurisdictionCode: "ZZ", TotalAcceptedHours: 5000})
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, rules.ReasonRulesNotFound, result.Reason)

	_, err = svc.CheckDirect(dto.EligibilityRequest{TotalAcceptedHours: 10})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestEligibilityServiceRemaining(t *testing.T) {
	svc := NewEligibilityService(defaultRegistry(t), nil, nil, nil, nil)

	remaining, err := svc.Remaining(dto.RemainingHoursRequest{JurisdictionCode: "OH", TotalAcceptedHours: 450})
	require.NoError(t, err)
	assert.Equal(t, 1350.0, remaining.Remaining)
	assert.Equal(t, 1800, remaining.TotalRequired)
	assert.Equal(t, 25.0, remaining.PercentageComplete)

	remaining, err = svc.Remaining(dto.RemainingHoursRequest{JurisdictionCode: "OH", TotalAcceptedHours: 2500})
	require.NoError(t, err)
	assert.Zero(t, remaining.Remaining)
	assert.Equal(t, 100.0, remaining.PercentageComplete)

	_, err = svc.Remaining(dto.RemainingHoursRequest{JurisdictionCode: "ZZ"})
	assert.ErrorIs(t, err, appErrors.ErrRulesNotFound)
}

func TestEligibilityServiceCheckUsesStoredProgress(t *testing.T) {
	progress := standingStub{standing: &models.LedgerStanding{
		JurisdictionCode:  "IN",
		EffectiveHours:    2000,
		HasPendingReviews: true,
	}}
	svc := NewEligibilityService(defaultRegistry(t), progress, nil, nil, nil)

	result, err := svc.Check(context.Background(), "enr-1", apprenticeClaims)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, rules.ReasonPendingReviews, result.Reason)

	svc = NewEligibilityService(defaultRegistry(t), standingStub{err: appErrors.ErrForbidden}, nil, nil, nil)
	_, err = svc.Check(context.Background(), "enr-1", apprenticeClaims)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestEligibilityServiceCheckComparesExactTotal(t *testing.T) {
	enrollments := newEnrollmentStore(models.ApprenticeEnrollment{ID: "enr-1", ApprenticeID: apprenticeClaims.UserID, JurisdictionCode: "IN"})
	entries := &hourStoreStub{entries: []models.HourEntry{
		{ID: "h-1", EnrollmentID: "enr-1", Hours: 999.996, Category: models.CategoryOJT, LoggedDate: day(2025, 3, 3), Verified: true},
	}}
	progress := NewProgressService(defaultRegistry(t), enrollments, entries, transferTotalsStub{accepted: 1000}, NewCacheService(newMemCache(), nil, 0, nil, true), nil, nil)
	svc := NewEligibilityService(defaultRegistry(t), progress, nil, nil, nil)
	ctx := context.Background()

	summary, _, err := progress.Summary(ctx, "enr-1", apprenticeClaims)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, summary.EffectiveTotalHours)
	assert.False(t, summary.ReadyForExam)

	result, err := svc.Check(ctx, "enr-1", apprenticeClaims)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, 0.01, result.Shortfall)
}
