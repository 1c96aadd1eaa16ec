package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/repository"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

type hourEntryStore interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.HourEntry, error)
	FindByID(ctx context.Context, id string) (*models.HourEntry, error)
	Create(ctx context.Context, entry *models.HourEntry) error
	Verify(ctx context.Context, id, verifierID string, at time.Time) error
	IsSuperseded(ctx context.Context, id string) (bool, error)
}

// HourEntryService lists, verifies and corrects ledger entries.
type HourEntryService struct {
	repo        hourEntryStore
	enrollments enrollmentReader
	cache       *CacheService
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewHourEntryService constructs HourEntryService.
func NewHourEntryService(repo hourEntryStore, enrollments enrollmentReader, cache *CacheService, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *HourEntryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HourEntryService{
		repo:        repo,
		enrollments: enrollments,
		cache:       cache,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns every entry of an enrollment, superseded ones included.
func (s *HourEntryService) List(ctx context.Context, enrollmentID string, actor *models.JWTClaims) ([]models.HourEntry, error) {
	enrollment, err := loadEnrollment(ctx, s.enrollments, enrollmentID, actor)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListByEnrollment(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list hour entries")
	}
	if entries == nil {
		entries = []models.HourEntry{}
	}
	return entries, nil
}

// Verify marks an entry verified. Verifying twice is allowed and the last
// verifier wins.
func (s *HourEntryService) Verify(ctx context.Context, entryID string, verifier *models.JWTClaims) (*models.HourEntry, error) {
	if verifier == nil {
		return nil, appErrors.ErrUnauthorized
	}
	entry, err := s.activeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if err := s.repo.Verify(ctx, entry.ID, verifier.UserID, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hour entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify hour entry")
	}
	before := map[string]interface{}{"verified": entry.Verified, "verified_by": entry.VerifiedBy}
	entry.Verified = true
	entry.VerifiedBy = &verifier.UserID
	entry.VerifiedAt = &at

	s.cache.Invalidate(ctx, ProgressKey(entry.EnrollmentID))
	s.recordAudit(ctx, verifier, models.AuditActionHoursVerified, entry.ID, before, map[string]interface{}{
		"verified":    true,
		"verified_by": verifier.UserID,
		"hours":       entry.Hours,
	})
	return entry, nil
}

// Correct appends an unverified entry that supersedes the original. The
// superseded check is advisory; the ledger's unique key on supersedes_id
// decides between concurrent corrections.
func (s *HourEntryService) Correct(ctx context.Context, entryID string, req dto.CorrectHoursRequest, actor *models.JWTClaims) (*models.HourEntry, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err)
	}
	original, err := s.activeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	category := original.Category
	if req.Category != "" {
		category = models.HourCategory(req.Category)
	}
	reason := req.Reason
	correction := &models.HourEntry{
		EnrollmentID: original.EnrollmentID,
		Hours:        req.Hours,
		Category:     category,
		LoggedDate:   original.LoggedDate,
		Source:       models.HourSourceCorrection,
		SupersedesID: &original.ID,
		Note:         &reason,
	}
	if err := s.repo.Create(ctx, correction); err != nil {
		if errors.Is(err, repository.ErrAlreadySuperseded) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "hour entry has been superseded by a correction")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record correction")
	}

	s.cache.Invalidate(ctx, ProgressKey(original.EnrollmentID))
	s.recordAudit(ctx, actor, models.AuditActionHoursCorrected, correction.ID,
		map[string]interface{}{"entry_id": original.ID, "hours": original.Hours, "category": original.Category},
		map[string]interface{}{"entry_id": correction.ID, "hours": correction.Hours, "category": correction.Category, "reason": reason},
	)
	return correction, nil
}

func (s *HourEntryService) activeEntry(ctx context.Context, id string) (*models.HourEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hour entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hour entry")
	}
	superseded, err := s.repo.IsSuperseded(ctx, entry.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hour entry")
	}
	if superseded {
		return nil, appErrors.Clone(appErrors.ErrConflict, "hour entry has been superseded by a correction")
	}
	return entry, nil
}

func (s *HourEntryService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, entryID string, before, after interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:    actorID(actor),
		Action:     action,
		Resource:   models.AuditResourceHourEntry,
		ResourceID: entryID,
		OldValues:  before,
		NewValues:  after,
		UserAgent:  "hour-entry-service",
	})
}
