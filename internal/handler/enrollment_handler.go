package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/response"
)

type enrollmentService interface {
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ApprenticeEnrollment, error)
	Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.ApprenticeEnrollment, error)
	CreateSite(ctx context.Context, req dto.CreateSiteRequest) (*models.PartnerSite, error)
}

// EnrollmentHandler manages enrollments and partner sites.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler builds a new handler.
func NewEnrollmentHandler(service enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// Create godoc
// @Summary Enrol an apprentice
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.CreateEnrollmentRequest true "Enrollment"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req dto.CreateEnrollmentRequest
	if !bindJSON(c, &req, "invalid enrollment payload") {
		return
	}
	enrollment, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Get godoc
// @Summary Get an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// CreateSite godoc
// @Summary Register a partner site geofence
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.CreateSiteRequest true "Site"
// @Success 201 {object} response.Envelope
// @Router /sites [post]
func (h *EnrollmentHandler) CreateSite(c *gin.Context) {
	var req dto.CreateSiteRequest
	if !bindJSON(c, &req, "invalid site payload") {
		return
	}
	site, err := h.service.CreateSite(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, site)
}
