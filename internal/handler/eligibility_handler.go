package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/rules"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/response"
)

type eligibilityService interface {
	Check(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*rules.Eligibility, error)
	CheckDirect(req dto.EligibilityRequest) (*rules.Eligibility, error)
	Remaining(req dto.RemainingHoursRequest) (*rules.Remaining, error)
}

// EligibilityHandler answers exam eligibility and remaining-hours questions.
type EligibilityHandler struct {
	service eligibilityService
}

// NewEligibilityHandler builds a new handler.
func NewEligibilityHandler(service eligibilityService) *EligibilityHandler {
	return &EligibilityHandler{service: service}
}

// Check godoc
// @Summary Check exam eligibility for given totals
// @Tags Eligibility
// @Accept json
// @Produce json
// @Param payload body dto.EligibilityRequest true "Totals"
// @Success 200 {object} response.Envelope
// @Router /eligibility/check [post]
func (h *EligibilityHandler) Check(c *gin.Context) {
	var req dto.EligibilityRequest
	if !bindJSON(c, &req, "invalid eligibility payload") {
		return
	}
	result, err := h.service.CheckDirect(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Remaining godoc
// @Summary Calculate remaining hours toward licensure
// @Tags Eligibility
// @Accept json
// @Produce json
// @Param payload body dto.RemainingHoursRequest true "Totals"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /eligibility/remaining [post]
func (h *EligibilityHandler) Remaining(c *gin.Context) {
	var req dto.RemainingHoursRequest
	if !bindJSON(c, &req, "invalid remaining hours payload") {
		return
	}
	result, err := h.service.Remaining(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ForEnrollment godoc
// @Summary Exam eligibility from an enrollment's recorded hours
// @Tags Eligibility
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/eligibility [get]
func (h *EligibilityHandler) ForEnrollment(c *gin.Context) {
	result, err := h.service.Check(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
