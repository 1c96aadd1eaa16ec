package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/service"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/response"
)

type reportService interface {
	Export(ctx context.Context, enrollmentID string, req dto.ExportProgressRequest, actor *models.JWTClaims) (*models.ProgressReport, error)
	ResolveDownload(token string) (*service.ReportDownload, error)
}

// ReportHandler exports progress reports and serves their downloads.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(service reportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Export godoc
// @Summary Export an enrollment's progress report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.ExportProgressRequest true "Format"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/reports [post]
func (h *ReportHandler) Export(c *gin.Context) {
	var req dto.ExportProgressRequest
	if !bindJSON(c, &req, "invalid export payload") {
		return
	}
	req.Format = models.ReportFormat(strings.ToLower(string(req.Format)))
	report, err := h.service.Export(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// Download godoc
// @Summary Download an exported report by signed token
// @Tags Reports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	file, err := h.service.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
