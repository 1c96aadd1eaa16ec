package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/config"
)

const (
	transferClaimColumns = `id, enrollment_id, source_type, source_jurisdiction, hours_claimed, has_documents, status,
	decision, accepted_hours, submitted_by, reviewed_by, reviewed_at, review_note, created_at, updated_at`
	transferEvaluationColumns = `id, claim_id, enrollment_id, hours_claimed, accepted_hours, decision, rule_set_id,
	rule_hash, reason_codes, explanation, evaluated_by, evaluated_at`
)

// rebindQueryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type rebindQueryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

// TransferRepository persists transfer claims and their append-only evaluations.
type TransferRepository struct {
	db *sqlx.DB
}

// NewTransferRepository constructs the repository.
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// AcceptedHours sums hours credited by decided claims.
func (r *TransferRepository) AcceptedHours(ctx context.Context, enrollmentID string) (float64, error) {
	return acceptedHours(ctx, r.db, enrollmentID)
}

func acceptedHours(ctx context.Context, q rebindQueryer, enrollmentID string) (float64, error) {
	query := q.Rebind(`SELECT COALESCE(SUM(accepted_hours), 0) FROM transfer_claims WHERE enrollment_id = ? AND status = ?`)
	var total float64
	if err := sqlx.GetContext(ctx, q, &total, query, enrollmentID, models.ClaimStatusDecided); err != nil {
		return 0, fmt.Errorf("sum accepted transfer hours: %w", err)
	}
	return total, nil
}

// HasPendingReview reports whether any claim still awaits a reviewer.
func (r *TransferRepository) HasPendingReview(ctx context.Context, enrollmentID string) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(1) FROM transfer_claims WHERE enrollment_id = ? AND status = ?`)
	var count int
	if err := r.db.GetContext(ctx, &count, query, enrollmentID, models.ClaimStatusPendingReview); err != nil {
		return false, fmt.Errorf("count pending transfer claims: %w", err)
	}
	return count > 0, nil
}

// ClaimDecider builds a claim and its first evaluation from the enrollment's
// accepted transfer total as read under the enrollment lock.
type ClaimDecider func(acceptedHours float64) (*models.TransferClaim, *models.TransferEvaluation, error)

// SubmitClaim reads the running transfer total, lets decide evaluate the
// claim against it, and stores the result, all inside one transaction that
// holds the enrollment lock. Concurrent submissions for the same enrollment
// therefore see each other's credited hours.
func (r *TransferRepository) SubmitClaim(ctx context.Context, enrollmentID string, decide ClaimDecider) (*models.TransferClaim, *models.TransferEvaluation, error) {
	var (
		claim      *models.TransferClaim
		evaluation *models.TransferEvaluation
	)
	err := r.withEnrollmentLock(ctx, enrollmentID, func(tx *sqlx.Tx) error {
		current, err := acceptedHours(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		claim, evaluation, err = decide(current)
		if err != nil {
			return err
		}
		claim.EnrollmentID = enrollmentID
		return insertClaim(ctx, tx, claim, evaluation)
	})
	if err != nil {
		return nil, nil, err
	}
	return claim, evaluation, nil
}

// ResolveParams carries a reviewer's decision on a pending claim.
type ResolveParams struct {
	ClaimID       string
	Decision      models.Decision
	AcceptedHours float64
	ReviewedBy    string
	ReviewedAt    time.Time
	Note          *string
}

// ResolveDecider computes a reviewer's outcome for a claim still pending
// review, given the enrollment's accepted transfer total.
type ResolveDecider func(claim models.TransferClaim, acceptedHours float64) (ResolveParams, *models.TransferEvaluation, error)

// ResolveClaim decides a pending claim under the enrollment lock and appends
// the evaluation. It returns sql.ErrNoRows for an unknown claim and
// ErrClaimDecided when another reviewer got there first.
func (r *TransferRepository) ResolveClaim(ctx context.Context, claimID string, decide ResolveDecider) (*models.TransferClaim, error) {
	existing, err := r.FindClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	var resolved *models.TransferClaim
	err = r.withEnrollmentLock(ctx, existing.EnrollmentID, func(tx *sqlx.Tx) error {
		claim, err := findClaim(ctx, tx, claimID)
		if err != nil {
			return err
		}
		if claim.Status != models.ClaimStatusPendingReview {
			return ErrClaimDecided
		}
		current, err := acceptedHours(ctx, tx, claim.EnrollmentID)
		if err != nil {
			return err
		}
		params, evaluation, err := decide(*claim, current)
		if err != nil {
			return err
		}
		params.ClaimID = claim.ID
		evaluation.ClaimID = &claim.ID
		evaluation.EnrollmentID = &claim.EnrollmentID
		if err := updateResolution(ctx, tx, params); err != nil {
			return err
		}
		if err := insertEvaluation(ctx, tx, evaluation); err != nil {
			return err
		}

		claim.Status = models.ClaimStatusDecided
		claim.Decision = params.Decision
		claim.AcceptedHours = params.AcceptedHours
		claim.ReviewedBy = &params.ReviewedBy
		claim.ReviewedAt = &params.ReviewedAt
		claim.ReviewNote = params.Note
		claim.UpdatedAt = params.ReviewedAt
		resolved = claim
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// withEnrollmentLock runs fn in a transaction that first locks the
// enrollment row. SQLite needs no row lock: its pool has one connection and
// transactions begin IMMEDIATE, so writers are already serialised.
func (r *TransferRepository) withEnrollmentLock(ctx context.Context, enrollmentID string, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if r.db.DriverName() == config.DriverPostgres {
		var locked string
		if err = tx.GetContext(ctx, &locked, `SELECT id FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentID); err != nil {
			return fmt.Errorf("lock enrollment %s: %w", enrollmentID, err)
		}
	}
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer tx: %w", err)
	}
	return nil
}

func insertClaim(ctx context.Context, tx *sqlx.Tx, claim *models.TransferClaim, evaluation *models.TransferEvaluation) error {
	now := time.Now().UTC()
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	claim.CreatedAt = now
	claim.UpdatedAt = now
	evaluation.ClaimID = &claim.ID
	evaluation.EnrollmentID = &claim.EnrollmentID

	const query = `INSERT INTO transfer_claims (` + transferClaimColumns + `)
	VALUES (:id, :enrollment_id, :source_type, :source_jurisdiction, :hours_claimed, :has_documents, :status,
	:decision, :accepted_hours, :submitted_by, :reviewed_by, :reviewed_at, :review_note, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, claim); err != nil {
		return fmt.Errorf("create transfer claim: %w", err)
	}
	return insertEvaluation(ctx, tx, evaluation)
}

func updateResolution(ctx context.Context, tx *sqlx.Tx, params ResolveParams) error {
	query := tx.Rebind(`UPDATE transfer_claims SET status = ?, decision = ?, accepted_hours = ?, reviewed_by = ?,
	reviewed_at = ?, review_note = ?, updated_at = ? WHERE id = ? AND status = ?`)
	result, err := tx.ExecContext(ctx, query,
		models.ClaimStatusDecided,
		params.Decision,
		params.AcceptedHours,
		params.ReviewedBy,
		params.ReviewedAt,
		params.Note,
		params.ReviewedAt,
		params.ClaimID,
		models.ClaimStatusPendingReview,
	)
	if err != nil {
		return fmt.Errorf("resolve transfer claim: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transfer resolve rows: %w", err)
	}
	if rows == 0 {
		return ErrClaimDecided
	}
	return nil
}

// CreateEvaluation records a stateless evaluation that has no claim behind it.
func (r *TransferRepository) CreateEvaluation(ctx context.Context, evaluation *models.TransferEvaluation) error {
	return insertEvaluation(ctx, r.db, evaluation)
}

// FindClaim fetches a claim by id.
func (r *TransferRepository) FindClaim(ctx context.Context, id string) (*models.TransferClaim, error) {
	return findClaim(ctx, r.db, id)
}

func findClaim(ctx context.Context, q rebindQueryer, id string) (*models.TransferClaim, error) {
	query := q.Rebind(`SELECT ` + transferClaimColumns + ` FROM transfer_claims WHERE id = ?`)
	var claim models.TransferClaim
	if err := sqlx.GetContext(ctx, q, &claim, query, id); err != nil {
		return nil, err
	}
	return &claim, nil
}

// ListClaims returns an enrollment's claims, newest first.
func (r *TransferRepository) ListClaims(ctx context.Context, enrollmentID string) ([]models.TransferClaim, error) {
	query := r.db.Rebind(`SELECT ` + transferClaimColumns + ` FROM transfer_claims
	WHERE enrollment_id = ? ORDER BY created_at DESC`)
	var claims []models.TransferClaim
	if err := r.db.SelectContext(ctx, &claims, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list transfer claims: %w", err)
	}
	return claims, nil
}

// ListEvaluations returns the evaluation history of a claim, oldest first.
func (r *TransferRepository) ListEvaluations(ctx context.Context, claimID string) ([]models.TransferEvaluation, error) {
	query := r.db.Rebind(`SELECT ` + transferEvaluationColumns + ` FROM transfer_evaluations
	WHERE claim_id = ? ORDER BY evaluated_at ASC`)
	var evaluations []models.TransferEvaluation
	if err := r.db.SelectContext(ctx, &evaluations, query, claimID); err != nil {
		return nil, fmt.Errorf("list transfer evaluations: %w", err)
	}
	return evaluations, nil
}

func insertEvaluation(ctx context.Context, exec sqlx.ExtContext, evaluation *models.TransferEvaluation) error {
	if evaluation.ID == "" {
		evaluation.ID = uuid.NewString()
	}
	if evaluation.EvaluatedAt.IsZero() {
		evaluation.EvaluatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO transfer_evaluations (` + transferEvaluationColumns + `)
	VALUES (:id, :claim_id, :enrollment_id, :hours_claimed, :accepted_hours, :decision, :rule_set_id,
	:rule_hash, :reason_codes, :explanation, :evaluated_by, :evaluated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, evaluation); err != nil {
		return fmt.Errorf("create transfer evaluation: %w", err)
	}
	return nil
}
