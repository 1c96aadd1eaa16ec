package service

import (
	"context"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

type hourLister interface {
	List(ctx context.Context, enrollmentID string, actor *models.JWTClaims) ([]models.HourEntry, error)
}

// ReportServiceConfig governs export retention.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ReportDownload is a resolved export ready to stream.
type ReportDownload struct {
	Data        []byte
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ReportService exports progress reports and serves signed downloads.
type ReportService struct {
	progress  progressSource
	hours     hourLister
	exporter  *ExportService
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// NewReportService constructs the report service.
func NewReportService(progress progressSource, hours hourLister, exporter *ExportService, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{
		progress:  progress,
		hours:     hours,
		exporter:  exporter,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Export renders an enrollment's progress report and returns its signed link.
func (s *ReportService) Export(ctx context.Context, enrollmentID string, req dto.ExportProgressRequest, actor *models.JWTClaims) (*models.ProgressReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err)
	}
	summary, _, err := s.progress.Summary(ctx, enrollmentID, actor)
	if err != nil {
		return nil, err
	}
	entries, err := s.hours.List(ctx, enrollmentID, actor)
	if err != nil {
		return nil, err
	}
	report, err := s.exporter.Generate(uuid.NewString(), summary, entries, req.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate report")
	}
	if s.audit != nil {
		s.audit.Record(ctx, AuditEntry{
			ActorID:    actorID(actor),
			Action:     models.AuditActionReportExported,
			Resource:   models.AuditResourceEnrollment,
			ResourceID: enrollmentID,
			NewValues:  map[string]interface{}{"report_id": report.ID, "format": report.Format},
			UserAgent:  "report-service",
		})
	}
	return report, nil
}

// ResolveDownload validates a token and loads the stored export.
func (s *ReportService) ResolveDownload(token string) (*ReportDownload, error) {
	_, relPath, expiresAt, err := s.exporter.ParseToken(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	data, err := s.exporter.Read(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report no longer available")
	}
	return &ReportDownload{
		Data:        data,
		Filename:    filepath.Base(relPath),
		ContentType: s.exporter.ContentType(relPath),
		ExpiresAt:   expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired()
			}
		}
	}()
}

func (s *ReportService) cleanupExpired() {
	removed, err := s.exporter.Cleanup(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Sugar().Warnw("report cleanup failed", "error", err)
		return
	}
	if len(removed) > 0 {
		s.logger.Sugar().Infow("expired reports removed", "count", len(removed))
	}
}
