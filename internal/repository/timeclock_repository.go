package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
)

const timeclockColumns = `id, apprentice_id, enrollment_id, site_id, state, clock_in_at, clock_out_at, lunch_start_at,
	lunch_end_at, offsite_since, grace_deadline, grace_token, last_accuracy_m, error_message, error_from, failed_action,
	hours_worked, auto_closed, created_at, updated_at`

// TimeclockRepository persists timeclock sessions and admin alerts.
type TimeclockRepository struct {
	db *sqlx.DB
}

// NewTimeclockRepository constructs the repository.
func NewTimeclockRepository(db *sqlx.DB) *TimeclockRepository {
	return &TimeclockRepository{db: db}
}

// Create inserts a new session.
func (r *TimeclockRepository) Create(ctx context.Context, session *models.TimeclockSession) error {
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = now
	session.UpdatedAt = now
	const query = `INSERT INTO timeclock_sessions (` + timeclockColumns + `)
	VALUES (:id, :apprentice_id, :enrollment_id, :site_id, :state, :clock_in_at, :clock_out_at, :lunch_start_at,
	:lunch_end_at, :offsite_since, :grace_deadline, :grace_token, :last_accuracy_m, :error_message, :error_from, :failed_action,
	:hours_worked, :auto_closed, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create timeclock session: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of a session.
func (r *TimeclockRepository) Update(ctx context.Context, session *models.TimeclockSession) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timeclock_sessions SET state = :state, clock_in_at = :clock_in_at, clock_out_at = :clock_out_at,
	lunch_start_at = :lunch_start_at, lunch_end_at = :lunch_end_at, offsite_since = :offsite_since,
	grace_deadline = :grace_deadline, grace_token = :grace_token, last_accuracy_m = :last_accuracy_m,
	error_message = :error_message, error_from = :error_from, failed_action = :failed_action,
	hours_worked = :hours_worked, auto_closed = :auto_closed, updated_at = :updated_at
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, session)
	if err != nil {
		return fmt.Errorf("update timeclock session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check timeclock update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID fetches one session.
func (r *TimeclockRepository) FindByID(ctx context.Context, id string) (*models.TimeclockSession, error) {
	query := r.db.Rebind(`SELECT ` + timeclockColumns + ` FROM timeclock_sessions WHERE id = ?`)
	var session models.TimeclockSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// LatestByApprentice returns the apprentice's most recently created session.
func (r *TimeclockRepository) LatestByApprentice(ctx context.Context, apprenticeID string) (*models.TimeclockSession, error) {
	query := r.db.Rebind(`SELECT ` + timeclockColumns + ` FROM timeclock_sessions
	WHERE apprentice_id = ? ORDER BY created_at DESC LIMIT 1`)
	var session models.TimeclockSession
	if err := r.db.GetContext(ctx, &session, query, apprenticeID); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByStates returns sessions currently in any of the given states.
func (r *TimeclockRepository) ListByStates(ctx context.Context, states ...models.SessionState) ([]models.TimeclockSession, error) {
	if len(states) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+timeclockColumns+` FROM timeclock_sessions WHERE state IN (?)`, states)
	if err != nil {
		return nil, fmt.Errorf("build session state query: %w", err)
	}
	var sessions []models.TimeclockSession
	if err := r.db.SelectContext(ctx, &sessions, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list timeclock sessions: %w", err)
	}
	return sessions, nil
}

// CreateAlert stores an admin alert.
func (r *TimeclockRepository) CreateAlert(ctx context.Context, alert *models.AdminAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO admin_alerts (id, alert_type, apprentice_id, enrollment_id, session_id, site_id, message, details, resolved, created_at)
	VALUES (:id, :alert_type, :apprentice_id, :enrollment_id, :session_id, :site_id, :message, :details, :resolved, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("create admin alert: %w", err)
	}
	return nil
}

// ListOpenAlerts returns unresolved alerts, newest first.
func (r *TimeclockRepository) ListOpenAlerts(ctx context.Context, limit int) ([]models.AdminAlert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := r.db.Rebind(`SELECT id, alert_type, apprentice_id, enrollment_id, session_id, site_id, message, details, resolved, created_at
	FROM admin_alerts WHERE resolved = ? ORDER BY created_at DESC LIMIT ?`)
	var alerts []models.AdminAlert
	if err := r.db.SelectContext(ctx, &alerts, query, false, limit); err != nil {
		return nil, fmt.Errorf("list admin alerts: %w", err)
	}
	return alerts, nil
}
