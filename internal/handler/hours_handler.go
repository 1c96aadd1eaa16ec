package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/response"
)

type hourEntryService interface {
	List(ctx context.Context, enrollmentID string, actor *models.JWTClaims) ([]models.HourEntry, error)
	Verify(ctx context.Context, entryID string, verifier *models.JWTClaims) (*models.HourEntry, error)
	Correct(ctx context.Context, entryID string, req dto.CorrectHoursRequest, actor *models.JWTClaims) (*models.HourEntry, error)
}

// HoursHandler exposes hour entries and their verification.
type HoursHandler struct {
	service hourEntryService
}

// NewHoursHandler builds a new handler.
func NewHoursHandler(service hourEntryService) *HoursHandler {
	return &HoursHandler{service: service}
}

// List godoc
// @Summary List hour entries of an enrollment
// @Tags Hours
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/hours [get]
func (h *HoursHandler) List(c *gin.Context) {
	entries, err := h.service.List(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Verify godoc
// @Summary Verify an hour entry
// @Tags Hours
// @Produce json
// @Param id path string true "Hour entry ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /hours/{id}/verify [post]
func (h *HoursHandler) Verify(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	entry, err := h.service.Verify(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Correct godoc
// @Summary Replace an hour entry with a correction
// @Tags Hours
// @Accept json
// @Produce json
// @Param id path string true "Hour entry ID"
// @Param payload body dto.CorrectHoursRequest true "Correction"
// @Success 201 {object} response.Envelope
// @Router /hours/{id}/correct [post]
func (h *HoursHandler) Correct(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CorrectHoursRequest
	if !bindJSON(c, &req, "invalid correction payload") {
		return
	}
	entry, err := h.service.Correct(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}
