package models

import "time"

// Decision is the outcome of a transfer evaluation.
type Decision string

// Transfer decisions.
const (
	DecisionAccepted             Decision = "accepted"
	DecisionPartiallyAccepted    Decision = "partially_accepted"
	DecisionRejected             Decision = "rejected"
	DecisionRequiresManualReview Decision = "requires_manual_review"
)

// ReasonCode explains why a decision was reached.
type ReasonCode string

// Reason codes attached to evaluation results.
const (
	ReasonJurisdictionNotSupported ReasonCode = "JURISDICTION_NOT_SUPPORTED"
	ReasonSourceTypeNotAccepted    ReasonCode = "SOURCE_TYPE_NOT_ACCEPTED"
	ReasonCENotCounted             ReasonCode = "CE_NOT_COUNTED"
	ReasonDocumentsMissing         ReasonCode = "DOCUMENTS_MISSING"
	ReasonTransferCapReached       ReasonCode = "TRANSFER_CAP_REACHED"
	ReasonProgramCapReached        ReasonCode = "PROGRAM_CAP_REACHED"
	ReasonInvalidHoursClaimed      ReasonCode = "INVALID_HOURS_CLAIMED"
	ReasonReviewerRejected         ReasonCode = "REVIEWER_REJECTED"
)

// TransferCreditClaim is the input to a transfer evaluation.
type TransferCreditClaim struct {
	SourceType                   SourceType `json:"source_type"`
	SourceJurisdiction           string     `json:"source_jurisdiction,omitempty"`
	HoursClaimed                 float64    `json:"hours_claimed"`
	HasSupportingDocuments       bool       `json:"has_supporting_documents"`
	CurrentAcceptedTransferHours float64    `json:"current_accepted_transfer_hours"`
}

// EvaluationResult is the append-only outcome of evaluating a claim.
type EvaluationResult struct {
	HoursClaimed  float64      `json:"hours_claimed"`
	AcceptedHours float64      `json:"accepted_hours"`
	Decision      Decision     `json:"decision"`
	RuleSetID     string       `json:"rule_set_id"`
	RuleHash      string       `json:"rule_hash"`
	ReasonCodes   []ReasonCode `json:"reason_codes"`
	Explanation   string       `json:"explanation"`
}

// HasReason reports whether code is among the result's reasons.
func (r EvaluationResult) HasReason(code ReasonCode) bool {
	for _, c := range r.ReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}

// ClaimStatus tracks whether a persisted claim still awaits a reviewer.
type ClaimStatus string

// Claim statuses.
const (
	ClaimStatusPendingReview ClaimStatus = "PENDING_REVIEW"
	ClaimStatusDecided       ClaimStatus = "DECIDED"
)

// TransferClaim is a submitted claim and its latest decision.
type TransferClaim struct {
	ID                 string      `db:"id" json:"id"`
	EnrollmentID       string      `db:"enrollment_id" json:"enrollment_id"`
	SourceType         SourceType  `db:"source_type" json:"source_type"`
	SourceJurisdiction *string     `db:"source_jurisdiction" json:"source_jurisdiction,omitempty"`
	HoursClaimed       float64     `db:"hours_claimed" json:"hours_claimed"`
	HasDocuments       bool        `db:"has_documents" json:"has_documents"`
	Status             ClaimStatus `db:"status" json:"status"`
	Decision           Decision    `db:"decision" json:"decision"`
	AcceptedHours      float64     `db:"accepted_hours" json:"accepted_hours"`
	SubmittedBy        string      `db:"submitted_by" json:"submitted_by"`
	ReviewedBy         *string     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time  `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNote         *string     `db:"review_note" json:"review_note,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
}

// TransferEvaluation is a persisted EvaluationResult. Rows are never updated.
type TransferEvaluation struct {
	ID            string    `db:"id" json:"id"`
	ClaimID       *string   `db:"claim_id" json:"claim_id,omitempty"`
	EnrollmentID  *string   `db:"enrollment_id" json:"enrollment_id,omitempty"`
	HoursClaimed  float64   `db:"hours_claimed" json:"hours_claimed"`
	AcceptedHours float64   `db:"accepted_hours" json:"accepted_hours"`
	Decision      Decision  `db:"decision" json:"decision"`
	RuleSetID     string    `db:"rule_set_id" json:"rule_set_id"`
	RuleHash      string    `db:"rule_hash" json:"rule_hash"`
	ReasonCodes   string    `db:"reason_codes" json:"reason_codes"`
	Explanation   string    `db:"explanation" json:"explanation"`
	EvaluatedBy   string    `db:"evaluated_by" json:"evaluated_by"`
	EvaluatedAt   time.Time `db:"evaluated_at" json:"evaluated_at"`
}

// TransferClaimDetail bundles a claim with its evaluation history.
type TransferClaimDetail struct {
	TransferClaim
	Evaluations []TransferEvaluation `json:"evaluations"`
}
