package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/apprenticeship-hours-api/internal/middleware"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/response"
)

type progressService interface {
	Summary(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.ApprenticeProgressSummary, bool, error)
}

// ProgressHandler serves apprentice progress summaries.
type ProgressHandler struct {
	service progressService
}

// NewProgressHandler builds a new handler.
func NewProgressHandler(service progressService) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// Summary godoc
// @Summary Progress toward licensure for an enrollment
// @Tags Progress
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/progress [get]
func (h *ProgressHandler) Summary(c *gin.Context) {
	summary, cached, err := h.service.Summary(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
