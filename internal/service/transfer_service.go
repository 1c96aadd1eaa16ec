package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/repository"
	"github.com/noah-isme/apprenticeship-hours-api/internal/rules"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

type transferStore interface {
	SubmitClaim(ctx context.Context, enrollmentID string, decide repository.ClaimDecider) (*models.TransferClaim, *models.TransferEvaluation, error)
	ResolveClaim(ctx context.Context, claimID string, decide repository.ResolveDecider) (*models.TransferClaim, error)
	CreateEvaluation(ctx context.Context, evaluation *models.TransferEvaluation) error
	FindClaim(ctx context.Context, id string) (*models.TransferClaim, error)
	ListClaims(ctx context.Context, enrollmentID string) ([]models.TransferClaim, error)
	ListEvaluations(ctx context.Context, claimID string) ([]models.TransferEvaluation, error)
}

// TransferService runs transfer evaluations and the manual review workflow.
type TransferService struct {
	registry    rules.Lookup
	repo        transferStore
	enrollments enrollmentReader
	cache       *CacheService
	audit       auditRecorder
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewTransferService constructs TransferService.
func NewTransferService(
	registry rules.Lookup,
	repo transferStore,
	enrollments enrollmentReader,
	cache *CacheService,
	audit auditRecorder,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *TransferService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{
		registry:    registry,
		repo:        repo,
		enrollments: enrollments,
		cache:       cache,
		audit:       audit,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate runs a stateless evaluation and records it.
func (s *TransferService) Evaluate(ctx context.Context, req dto.EvaluateTransferRequest, actor *models.JWTClaims) (*models.EvaluationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err)
	}
	result := rules.EvaluateTransfer(s.registry, req.JurisdictionCode, models.TransferCreditClaim{
		SourceType:                   req.SourceType,
		SourceJurisdiction:           req.SourceJurisdiction,
		HoursClaimed:                 req.HoursClaimed,
		HasSupportingDocuments:       req.HasSupportingDocuments,
		CurrentAcceptedTransferHours: req.CurrentAcceptedTransferHours,
	})

	evaluation, err := s.toEvaluation(result, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateEvaluation(ctx, evaluation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record evaluation")
	}
	s.metrics.RecordTransferDecision(req.JurisdictionCode, string(result.Decision))
	s.recordAudit(ctx, actor, models.AuditActionTransferEvaluated, models.AuditResourceEvaluation, evaluation.ID, nil, result)
	return &result, nil
}

// Submit evaluates and persists a claim against an enrollment. The running
// transfer total is read inside the same locked transaction that stores the
// claim, so concurrent submissions cannot both spend the same cap.
func (s *TransferService) Submit(ctx context.Context, enrollmentID string, req dto.SubmitTransferRequest, actor *models.JWTClaims) (*models.TransferClaimDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err)
	}
	enrollment, err := loadEnrollment(ctx, s.enrollments, enrollmentID, actor)
	if err != nil {
		return nil, err
	}

	var result models.EvaluationResult
	claim, evaluation, err := s.repo.SubmitClaim(ctx, enrollment.ID, func(current float64) (*models.TransferClaim, *models.TransferEvaluation, error) {
		result = rules.EvaluateTransfer(s.registry, enrollment.JurisdictionCode, models.TransferCreditClaim{
			SourceType:                   req.SourceType,
			SourceJurisdiction:           req.SourceJurisdiction,
			HoursClaimed:                 req.HoursClaimed,
			HasSupportingDocuments:       req.HasSupportingDocuments,
			CurrentAcceptedTransferHours: current,
		})
		status := models.ClaimStatusDecided
		if result.Decision == models.DecisionRequiresManualReview {
			status = models.ClaimStatusPendingReview
		}
		claim := &models.TransferClaim{
			EnrollmentID:  enrollment.ID,
			SourceType:    req.SourceType,
			HoursClaimed:  req.HoursClaimed,
			HasDocuments:  req.HasSupportingDocuments,
			Status:        status,
			Decision:      result.Decision,
			AcceptedHours: result.AcceptedHours,
			SubmittedBy:   actorID(actor),
		}
		if j := strings.TrimSpace(req.SourceJurisdiction); j != "" {
			claim.SourceJurisdiction = &j
		}
		evaluation, err := s.toEvaluation(result, actor)
		if err != nil {
			return nil, nil, err
		}
		return claim, evaluation, nil
	})
	if err != nil {
		return nil, storeError(err, "failed to submit transfer claim")
	}

	s.metrics.RecordTransferDecision(enrollment.JurisdictionCode, string(result.Decision))
	s.cache.Invalidate(ctx, ProgressKey(enrollment.ID))
	s.recordAudit(ctx, actor, models.AuditActionTransferSubmitted, models.AuditResourceTransferClaim, claim.ID, nil, result)
	s.logger.Info("transfer claim submitted",
		zap.String("claim_id", claim.ID),
		zap.String("decision", string(result.Decision)),
		zap.Float64("accepted_hours", result.AcceptedHours),
	)
	return &models.TransferClaimDetail{TransferClaim: *claim, Evaluations: []models.TransferEvaluation{*evaluation}}, nil
}

// Resolve records a reviewer's decision on a claim awaiting manual review.
// Verified documents re-run the evaluation against the total read under the
// enrollment lock; rejection credits nothing. Only the first reviewer wins;
// later attempts conflict.
func (s *TransferService) Resolve(ctx context.Context, claimID string, req dto.ResolveTransferRequest, reviewer *models.JWTClaims) (*models.TransferClaimDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err)
	}
	if req.DocumentsVerified == req.Reject {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of documents_verified or reject must be set")
	}
	pending, err := s.repo.FindClaim(ctx, claimID)
	if err != nil {
		return nil, storeError(err, "failed to load transfer claim")
	}
	if pending.Status != models.ClaimStatusPendingReview {
		return nil, appErrors.Clone(appErrors.ErrConflict, "transfer claim already decided")
	}
	enrollment, err := loadEnrollment(ctx, s.enrollments, pending.EnrollmentID, reviewer)
	if err != nil {
		return nil, err
	}

	var (
		result models.EvaluationResult
		note   *string
	)
	if n := strings.TrimSpace(req.Note); n != "" {
		note = &n
	}
	reviewedAt := s.now()
	claim, err := s.repo.ResolveClaim(ctx, claimID, func(claim models.TransferClaim, current float64) (repository.ResolveParams, *models.TransferEvaluation, error) {
		if req.Reject {
			result = s.rejection(enrollment.JurisdictionCode, claim.HoursClaimed)
		} else {
			input := models.TransferCreditClaim{
				SourceType:                   claim.SourceType,
				HoursClaimed:                 claim.HoursClaimed,
				HasSupportingDocuments:       true,
				CurrentAcceptedTransferHours: current,
			}
			if claim.SourceJurisdiction != nil {
				input.SourceJurisdiction = *claim.SourceJurisdiction
			}
			result = rules.EvaluateTransfer(s.registry, enrollment.JurisdictionCode, input)
			if result.Decision == models.DecisionRequiresManualReview {
				return repository.ResolveParams{}, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "claim cannot be credited under current rules; reject it instead")
			}
		}
		evaluation, err := s.toEvaluation(result, reviewer)
		if err != nil {
			return repository.ResolveParams{}, nil, err
		}
		return repository.ResolveParams{
			Decision:      result.Decision,
			AcceptedHours: result.AcceptedHours,
			ReviewedBy:    actorID(reviewer),
			ReviewedAt:    reviewedAt,
			Note:          note,
		}, evaluation, nil
	})
	if err != nil {
		return nil, storeError(err, "failed to resolve transfer claim")
	}

	before := map[string]interface{}{"status": pending.Status, "decision": pending.Decision}
	s.metrics.RecordTransferDecision(enrollment.JurisdictionCode, string(result.Decision))
	s.cache.Invalidate(ctx, ProgressKey(enrollment.ID))
	s.recordAudit(ctx, reviewer, models.AuditActionTransferResolved, models.AuditResourceTransferClaim, claim.ID, before, result)

	history, err := s.repo.ListEvaluations(ctx, claim.ID)
	if err != nil {
		s.logger.Warn("failed to load evaluation history", zap.String("claim_id", claim.ID), zap.Error(err))
		history = nil
	}
	return &models.TransferClaimDetail{TransferClaim: *claim, Evaluations: history}, nil
}

// storeError maps repository outcomes of the claim workflow onto API errors.
func storeError(err error, message string) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "transfer claim not found")
	case errors.Is(err, repository.ErrClaimDecided):
		return appErrors.Clone(appErrors.ErrConflict, "transfer claim already decided")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

// List returns an enrollment's claims with their evaluation history.
func (s *TransferService) List(ctx context.Context, enrollmentID string, actor *models.JWTClaims) ([]models.TransferClaimDetail, error) {
	enrollment, err := loadEnrollment(ctx, s.enrollments, enrollmentID, actor)
	if err != nil {
		return nil, err
	}
	claims, err := s.repo.ListClaims(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transfer claims")
	}
	out := make([]models.TransferClaimDetail, 0, len(claims))
	for _, claim := range claims {
		history, err := s.repo.ListEvaluations(ctx, claim.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transfer evaluations")
		}
		out = append(out, models.TransferClaimDetail{TransferClaim: claim, Evaluations: history})
	}
	return out, nil
}

func (s *TransferService) rejection(jurisdictionCode string, claimed float64) models.EvaluationResult {
	result := models.EvaluationResult{
		HoursClaimed: claimed,
		Decision:     models.DecisionRejected,
		ReasonCodes:  []models.ReasonCode{models.ReasonReviewerRejected},
		Explanation:  "Rejected by reviewer after manual review.",
	}
	if current, ok := s.registry.Get(jurisdictionCode); ok {
		result.RuleSetID = current.RuleSetID
		result.RuleHash = s.registry.HashOf(current.RuleSetID)
		if result.RuleHash == "" {
			result.RuleHash = rules.Hash(current)
		}
	}
	return result
}

func (s *TransferService) toEvaluation(result models.EvaluationResult, actor *models.JWTClaims) (*models.TransferEvaluation, error) {
	codes := result.ReasonCodes
	if codes == nil {
		codes = []models.ReasonCode{}
	}
	raw, err := json.Marshal(codes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode reason codes")
	}
	return &models.TransferEvaluation{
		HoursClaimed:  result.HoursClaimed,
		AcceptedHours: result.AcceptedHours,
		Decision:      result.Decision,
		RuleSetID:     result.RuleSetID,
		RuleHash:      result.RuleHash,
		ReasonCodes:   string(raw),
		Explanation:   result.Explanation,
		EvaluatedBy:   actorID(actor),
		EvaluatedAt:   s.now(),
	}, nil
}

func (s *TransferService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resource, resourceID string, before interface{}, result models.EvaluationResult) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:    actorID(actor),
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		OldValues:  before,
		NewValues:  result,
		UserAgent:  "transfer-service",
	})
}
