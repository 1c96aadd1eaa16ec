package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/response"
)

type transferService interface {
	Evaluate(ctx context.Context, req dto.EvaluateTransferRequest, actor *models.JWTClaims) (*models.EvaluationResult, error)
	Submit(ctx context.Context, enrollmentID string, req dto.SubmitTransferRequest, actor *models.JWTClaims) (*models.TransferClaimDetail, error)
	Resolve(ctx context.Context, claimID string, req dto.ResolveTransferRequest, reviewer *models.JWTClaims) (*models.TransferClaimDetail, error)
	List(ctx context.Context, enrollmentID string, actor *models.JWTClaims) ([]models.TransferClaimDetail, error)
}

// TransferHandler exposes transfer credit evaluation and claims.
type TransferHandler struct {
	service transferService
}

// NewTransferHandler builds a new handler.
func NewTransferHandler(service transferService) *TransferHandler {
	return &TransferHandler{service: service}
}

// Evaluate godoc
// @Summary Evaluate a transfer credit claim without storing it
// @Tags Transfers
// @Accept json
// @Produce json
// @Param payload body dto.EvaluateTransferRequest true "Claim"
// @Success 200 {object} response.Envelope
// @Router /transfers/evaluate [post]
func (h *TransferHandler) Evaluate(c *gin.Context) {
	var req dto.EvaluateTransferRequest
	if !bindJSON(c, &req, "invalid transfer payload") {
		return
	}
	result, err := h.service.Evaluate(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Submit godoc
// @Summary Submit a transfer credit claim for an enrollment
// @Tags Transfers
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.SubmitTransferRequest true "Claim"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/transfers [post]
func (h *TransferHandler) Submit(c *gin.Context) {
	var req dto.SubmitTransferRequest
	if !bindJSON(c, &req, "invalid transfer payload") {
		return
	}
	detail, err := h.service.Submit(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary List transfer claims of an enrollment
// @Tags Transfers
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/transfers [get]
func (h *TransferHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Resolve godoc
// @Summary Resolve a claim awaiting manual review
// @Tags Transfers
// @Accept json
// @Produce json
// @Param id path string true "Claim ID"
// @Param payload body dto.ResolveTransferRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transfers/{id}/resolve [post]
func (h *TransferHandler) Resolve(c *gin.Context) {
	var req dto.ResolveTransferRequest
	if !bindJSON(c, &req, "invalid review payload") {
		return
	}
	detail, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
