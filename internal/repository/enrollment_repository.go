package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
)

const enrollmentColumns = `id, apprentice_id, jurisdiction_code, site_id, status, started_at, created_at, updated_at`

// EnrollmentRepository handles persistence of apprenticeship enrollments and partner sites.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create inserts a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.ApprenticeEnrollment) error {
	now := time.Now().UTC()
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	if enrollment.StartedAt.IsZero() {
		enrollment.StartedAt = now
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	const query = `INSERT INTO enrollments (` + enrollmentColumns + `)
	VALUES (:id, :apprentice_id, :jurisdiction_code, :site_id, :status, :started_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindByID fetches an enrollment by id.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.ApprenticeEnrollment, error) {
	query := r.db.Rebind(`SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = ?`)
	var enrollment models.ApprenticeEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindActiveByApprentice returns the apprentice's most recent active enrollment.
func (r *EnrollmentRepository) FindActiveByApprentice(ctx context.Context, apprenticeID string) (*models.ApprenticeEnrollment, error) {
	query := r.db.Rebind(`SELECT ` + enrollmentColumns + ` FROM enrollments
	WHERE apprentice_id = ? AND status = ? ORDER BY started_at DESC LIMIT 1`)
	var enrollment models.ApprenticeEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, apprenticeID, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindSite fetches a partner site and its geofence.
func (r *EnrollmentRepository) FindSite(ctx context.Context, id string) (*models.PartnerSite, error) {
	query := r.db.Rebind(`SELECT id, name, center_lat, center_lng, radius_m, created_at FROM partner_sites WHERE id = ?`)
	var site models.PartnerSite
	if err := r.db.GetContext(ctx, &site, query, id); err != nil {
		return nil, err
	}
	return &site, nil
}

// CreateSite inserts a partner site.
func (r *EnrollmentRepository) CreateSite(ctx context.Context, site *models.PartnerSite) error {
	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	if site.CreatedAt.IsZero() {
		site.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO partner_sites (id, name, center_lat, center_lng, radius_m, created_at)
	VALUES (:id, :name, :center_lat, :center_lng, :radius_m, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, site); err != nil {
		return fmt.Errorf("create partner site: %w", err)
	}
	return nil
}
