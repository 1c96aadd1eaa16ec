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

const hourEntryColumns = `id, enrollment_id, hours, category, logged_date, source, verified, verified_by, verified_at,
	supersedes_id, timeclock_session_id, note, created_at`

// HourEntryRepository persists the append-only hour ledger.
type HourEntryRepository struct {
	db *sqlx.DB
}

// NewHourEntryRepository constructs the repository.
func NewHourEntryRepository(db *sqlx.DB) *HourEntryRepository {
	return &HourEntryRepository{db: db}
}

// ListByEnrollment reads every entry for an enrollment in a single query, oldest first.
func (r *HourEntryRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.HourEntry, error) {
	query := r.db.Rebind(`SELECT ` + hourEntryColumns + ` FROM hour_entries
	WHERE enrollment_id = ? ORDER BY logged_date ASC, created_at ASC`)
	var entries []models.HourEntry
	if err := r.db.SelectContext(ctx, &entries, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list hour entries: %w", err)
	}
	return entries, nil
}

// FindByID fetches one entry.
func (r *HourEntryRepository) FindByID(ctx context.Context, id string) (*models.HourEntry, error) {
	query := r.db.Rebind(`SELECT ` + hourEntryColumns + ` FROM hour_entries WHERE id = ?`)
	var entry models.HourEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create appends an entry to the ledger. A correction whose target already
// has one fails with ErrAlreadySuperseded.
func (r *HourEntryRepository) Create(ctx context.Context, entry *models.HourEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Source == "" {
		entry.Source = models.HourSourceManual
	}
	const query = `INSERT INTO hour_entries (` + hourEntryColumns + `)
	VALUES (:id, :enrollment_id, :hours, :category, :logged_date, :source, :verified, :verified_by, :verified_at,
	:supersedes_id, :timeclock_session_id, :note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		if entry.SupersedesID != nil && isUniqueViolation(err) {
			return ErrAlreadySuperseded
		}
		return fmt.Errorf("create hour entry: %w", err)
	}
	return nil
}

// Verify marks an entry verified in a single statement. Re-verifying
// overwrites the verifier and time; it never inserts a row.
func (r *HourEntryRepository) Verify(ctx context.Context, id, verifierID string, at time.Time) error {
	query := r.db.Rebind(`UPDATE hour_entries SET verified = ?, verified_by = ?, verified_at = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, true, verifierID, at, id)
	if err != nil {
		return fmt.Errorf("verify hour entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check hour entry verify rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IsSuperseded reports whether a correction already replaces the entry.
func (r *HourEntryRepository) IsSuperseded(ctx context.Context, id string) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(1) FROM hour_entries WHERE supersedes_id = ?`)
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return false, fmt.Errorf("check superseded entry: %w", err)
	}
	return count > 0, nil
}
