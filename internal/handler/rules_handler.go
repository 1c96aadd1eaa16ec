package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/response"
)

type rulesService interface {
	List() []dto.RulesSummary
	Get(code string) (*dto.RulesDetail, error)
}

// RulesHandler exposes the jurisdiction rules registry.
type RulesHandler struct {
	service rulesService
}

// NewRulesHandler builds a new handler.
func NewRulesHandler(service rulesService) *RulesHandler {
	return &RulesHandler{service: service}
}

// List godoc
// @Summary List jurisdiction rule sets
// @Tags Rules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rules [get]
func (h *RulesHandler) List(c *gin.Context) {
	items := h.service.List()
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get jurisdiction rules with fingerprint and history
// @Tags Rules
// @Produce json
// @Param code path string true "Jurisdiction code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rules/{code} [get]
func (h *RulesHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(strings.ToUpper(strings.TrimSpace(c.Param("code"))))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
