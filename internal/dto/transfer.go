package dto

import "github.com/noah-isme/apprenticeship-hours-api/internal/models"

// EvaluateTransferRequest is the stateless transfer evaluation payload.
type EvaluateTransferRequest struct {
	JurisdictionCode             string            `json:"jurisdiction_code" validate:"required"`
	SourceType                   models.SourceType `json:"source_type" validate:"required"`
	SourceJurisdiction           string            `json:"source_jurisdiction,omitempty"`
	HoursClaimed                 float64           `json:"hours_claimed" validate:"gte=0"`
	HasSupportingDocuments       bool              `json:"has_supporting_documents"`
	CurrentAcceptedTransferHours float64           `json:"current_accepted_transfer_hours" validate:"gte=0"`
}

// SubmitTransferRequest files a claim against an enrollment. The running
// accepted total is read from storage, not trusted from the client.
type SubmitTransferRequest struct {
	SourceType             models.SourceType `json:"source_type" validate:"required"`
	SourceJurisdiction     string            `json:"source_jurisdiction,omitempty"`
	HoursClaimed           float64           `json:"hours_claimed" validate:"gte=0"`
	HasSupportingDocuments bool              `json:"has_supporting_documents"`
}

// ResolveTransferRequest is a reviewer's decision on a claim awaiting manual review.
type ResolveTransferRequest struct {
	DocumentsVerified bool   `json:"documents_verified"`
	Reject            bool   `json:"reject"`
	Note              string `json:"note,omitempty" validate:"max=1000"`
}
