package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/rules"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

type progressSource interface {
	Summary(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.ApprenticeProgressSummary, bool, error)
}

type standingSource interface {
	Standing(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.LedgerStanding, error)
}

// EligibilityService answers exam eligibility and remaining-hours questions.
type EligibilityService struct {
	registry  rules.Lookup
	progress  standingSource
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEligibilityService constructs EligibilityService.
func NewEligibilityService(registry rules.Lookup, progress standingSource, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EligibilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{registry: registry, progress: progress, metrics: metrics, validator: validate, logger: logger}
}

// Check decides eligibility from an enrollment's stored hours. The threshold
// is compared against the exact total, never the rounded display value.
func (s *EligibilityService) Check(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*rules.Eligibility, error) {
	standing, err := s.progress.Standing(ctx, enrollmentID, actor)
	if err != nil {
		return nil, err
	}
	result := rules.CheckExamEligibility(s.registry, standing.JurisdictionCode, standing.EffectiveHours, standing.HasPendingReviews)
	s.metrics.RecordEligibilityCheck(result.Eligible)
	return &result, nil
}

// CheckDirect decides eligibility from caller-supplied totals. Unknown
// jurisdictions are an ineligible outcome, not an error.
func (s *EligibilityService) CheckDirect(req dto.EligibilityRequest) (*rules.Eligibility, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err)
	}
	result := rules.CheckExamEligibility(s.registry, req.JurisdictionCode, req.TotalAcceptedHours, req.HasPendingReviews)
	s.metrics.RecordEligibilityCheck(result.Eligible)
	return &result, nil
}

// Remaining reports hours left toward the jurisdiction's required total.
func (s *EligibilityService) Remaining(req dto.RemainingHoursRequest) (*rules.Remaining, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err)
	}
	remaining, ok := rules.CalculateRemainingHours(s.registry, req.JurisdictionCode, req.TotalAcceptedHours)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrRulesNotFound, "rules not found for jurisdiction "+req.JurisdictionCode)
	}
	return &remaining, nil
}
