package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/repository"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

type hourStoreStub struct {
	entries  []models.HourEntry
	verifies int
	listErr  error
	// staleCheck makes IsSuperseded miss corrections written by another request.
	staleCheck bool
}

func (s *hourStoreStub) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.HourEntry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.HourEntry
	for _, e := range s.entries {
		if e.EnrollmentID == enrollmentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *hourStoreStub) FindByID(ctx context.Context, id string) (*models.HourEntry, error) {
	for _, e := range s.entries {
		if e.ID == id {
			copied := e
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *hourStoreStub) Create(ctx context.Context, entry *models.HourEntry) error {
	if entry.SupersedesID != nil {
		for _, e := range s.entries {
			if e.SupersedesID != nil && *e.SupersedesID == *entry.SupersedesID {
				return repository.ErrAlreadySuperseded
			}
		}
	}
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("entry-%d", len(s.entries)+1)
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *hourStoreStub) Verify(ctx context.Context, id, verifierID string, at time.Time) error {
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.verifies++
			s.entries[i].Verified = true
			s.entries[i].VerifiedBy = &verifierID
			s.entries[i].VerifiedAt = &at
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *hourStoreStub) IsSuperseded(ctx context.Context, id string) (bool, error) {
	if s.staleCheck {
		return false, nil
	}
	for _, e := range s.entries {
		if e.SupersedesID != nil && *e.SupersedesID == id {
			return true, nil
		}
	}
	return false, nil
}

func newHourFixture() (*HourEntryService, *hourStoreStub, *auditSpy, *memCache) {
	store := &hourStoreStub{entries: []models.HourEntry{
		{ID: "h-1", EnrollmentID: "enr-1", Hours: 8, Category: models.CategoryOJT, LoggedDate: day(2025, 3, 3), Source: models.HourSourceManual},
	}}
	enrollments := newEnrollmentStore(models.ApprenticeEnrollment{ID: "enr-1", ApprenticeID: apprenticeClaims.UserID, JurisdictionCode: "IN"})
	audit := &auditSpy{}
	mem := newMemCache()
	svc := NewHourEntryService(store, enrollments, NewCacheService(mem, nil, 0, nil, true), audit, nil, nil)
	return svc, store, audit, mem
}

func TestHourEntryServiceVerifyIsIdempotent(t *testing.T) {
	svc, store, audit, mem := newHourFixture()
	ctx := context.Background()

	entry, err := svc.Verify(ctx, "h-1", supervisorClaims)
	require.NoError(t, err)
	assert.True(t, entry.Verified)
	assert.Equal(t, supervisorClaims.UserID, *entry.VerifiedBy)

	again, err := svc.Verify(ctx, "h-1", adminClaims)
	require.NoError(t, err)
	assert.Equal(t, adminClaims.UserID, *again.VerifiedBy)

	assert.Len(t, store.entries, 1, "verification never inserts")
	assert.Equal(t, 2, store.verifies)
	assert.Equal(t, adminClaims.UserID, *store.entries[0].VerifiedBy)
	assert.Contains(t, mem.deleted, ProgressKey("enr-1"))
	assert.Equal(t, []string{models.AuditActionHoursVerified, models.AuditActionHoursVerified}, audit.actions())
}

func TestHourEntryServiceVerifyMissing(t *testing.T) {
	svc, _, _, _ := newHourFixture()

	_, err := svc.Verify(context.Background(), "nope", supervisorClaims)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Verify(context.Background(), "h-1", nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestHourEntryServiceCorrectSupersedesOriginal(t *testing.T) {
	svc, store, audit, _ := newHourFixture()
	ctx := context.Background()

	correction, err := svc.Correct(ctx, "h-1", dto.CorrectHoursRequest{Hours: 6.5, Reason: "left early"}, supervisorClaims)
	require.NoError(t, err)
	assert.Equal(t, models.HourSourceCorrection, correction.Source)
	assert.Equal(t, models.CategoryOJT, correction.Category)
	assert.Equal(t, 6.5, correction.Hours)
	assert.False(t, correction.Verified)
	require.NotNil(t, correction.SupersedesID)
	assert.Equal(t, "h-1", *correction.SupersedesID)
	assert.Equal(t, day(2025, 3, 3), correction.LoggedDate)
	assert.Len(t, store.entries, 2)

	_, err = svc.Verify(ctx, "h-1", supervisorClaims)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	_, err = svc.Correct(ctx, "h-1", dto.CorrectHoursRequest{Hours: 5, Reason: "again"}, supervisorClaims)
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	assert.Equal(t, []string{models.AuditActionHoursCorrected}, audit.actions())
}

func TestHourEntryServiceCorrectLosingRaceConflicts(t *testing.T) {
	svc, store, audit, mem := newHourFixture()
	ctx := context.Background()

	_, err := svc.Correct(ctx, "h-1", dto.CorrectHoursRequest{Hours: 6.5, Reason: "left early"}, supervisorClaims)
	require.NoError(t, err)
	mem.deleted = nil

	// The second request passed the superseded check before the first committed.
	store.staleCheck = true
	_, err = svc.Correct(ctx, "h-1", dto.CorrectHoursRequest{Hours: 5, Reason: "again"}, adminClaims)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Len(t, store.entries, 2)
	assert.Empty(t, mem.deleted)
	assert.Equal(t, []string{models.AuditActionHoursCorrected}, audit.actions())
}

func TestHourEntryServiceCorrectValidation(t *testing.T) {
	svc, store, _, _ := newHourFixture()

	_, err := svc.Correct(context.Background(), "h-1", dto.CorrectHoursRequest{Hours: 0, Reason: "zero"}, supervisorClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.Correct(context.Background(), "h-1", dto.CorrectHoursRequest{Hours: 4, Category: "XYZ", Reason: "bad"}, supervisorClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.Correct(context.Background(), "h-1", dto.CorrectHoursRequest{Hours: 4}, supervisorClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Len(t, store.entries, 1)
}

func TestHourEntryServiceList(t *testing.T) {
	svc, _, _, _ := newHourFixture()

	entries, err := svc.List(context.Background(), "enr-1", apprenticeClaims)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = svc.List(context.Background(), "enr-1", &models.JWTClaims{UserID: "someone-else", Role: models.RoleApprentice})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
