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
	"github.com/noah-isme/apprenticeship-hours-api/internal/rules"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.ApprenticeEnrollment, error)
}

type enrollmentRepository interface {
	enrollmentReader
	Create(ctx context.Context, enrollment *models.ApprenticeEnrollment) error
	FindActiveByApprentice(ctx context.Context, apprenticeID string) (*models.ApprenticeEnrollment, error)
	FindSite(ctx context.Context, id string) (*models.PartnerSite, error)
	CreateSite(ctx context.Context, site *models.PartnerSite) error
}

// EnrollmentService manages enrollments and partner sites.
type EnrollmentService struct {
	repo      enrollmentRepository
	registry  rules.Lookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, registry rules.Lookup, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, registry: registry, validator: validate, logger: logger}
}

// Get returns an enrollment the actor may see.
func (s *EnrollmentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ApprenticeEnrollment, error) {
	return loadEnrollment(ctx, s.repo, id, actor)
}

// Create enrols an apprentice. The jurisdiction must have registered rules.
func (s *EnrollmentService) Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.ApprenticeEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err)
	}
	if _, ok := s.registry.Get(req.JurisdictionCode); !ok {
		return nil, appErrors.Clone(appErrors.ErrRulesNotFound, "rules not found for jurisdiction "+req.JurisdictionCode)
	}
	enrollment := &models.ApprenticeEnrollment{
		ApprenticeID:     req.ApprenticeID,
		JurisdictionCode: req.JurisdictionCode,
		Status:           models.EnrollmentStatusActive,
		StartedAt:        time.Now().UTC(),
	}
	if req.StartedAt != nil {
		enrollment.StartedAt = req.StartedAt.UTC()
	}
	if req.SiteID != "" {
		if _, err := s.repo.FindSite(ctx, req.SiteID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "site not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load site")
		}
		siteID := req.SiteID
		enrollment.SiteID = &siteID
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("enrollment created", zap.String("enrollment_id", enrollment.ID), zap.String("jurisdiction", enrollment.JurisdictionCode))
	return enrollment, nil
}

// CreateSite registers a partner site.
func (s *EnrollmentService) CreateSite(ctx context.Context, req dto.CreateSiteRequest) (*models.PartnerSite, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err)
	}
	site := &models.PartnerSite{Name: req.Name, CenterLat: req.CenterLat, CenterLng: req.CenterLng, RadiusM: req.RadiusM}
	if err := s.repo.CreateSite(ctx, site); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create site")
	}
	return site, nil
}

// loadEnrollment fetches an enrollment and applies ownership rules:
// apprentices only see their own enrollments.
func loadEnrollment(ctx context.Context, repo enrollmentReader, id string, actor *models.JWTClaims) (*models.ApprenticeEnrollment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	enrollment, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if actor.Role == models.RoleApprentice && enrollment.ApprenticeID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return enrollment, nil
}

func actorID(actor *models.JWTClaims) string {
	if actor == nil || actor.UserID == "" {
		return models.SystemActor
	}
	return actor.UserID
}
