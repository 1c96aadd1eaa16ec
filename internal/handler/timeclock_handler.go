package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/timeclock"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/response"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

type timeclockService interface {
	Current(ctx context.Context, apprenticeID string) (*models.TimeclockSession, error)
	ClockIn(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error)
	ClockOut(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error)
	StartLunch(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error)
	EndLunch(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error)
	Heartbeat(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error)
	ResetAfterAutoClockOut(ctx context.Context, apprenticeID string) (*models.TimeclockSession, error)
	Alerts(ctx context.Context, limit int) ([]models.AdminAlert, error)
}

type timeclockAction func(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error)

// TimeclockHandler drives the apprentice's geofenced timeclock.
type TimeclockHandler struct {
	service timeclockService
}

// NewTimeclockHandler builds a new handler.
func NewTimeclockHandler(service timeclockService) *TimeclockHandler {
	return &TimeclockHandler{service: service}
}

// Session godoc
// @Summary Current timeclock session of the caller
// @Tags Timeclock
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timeclock/session [get]
func (h *TimeclockHandler) Session(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	session, err := h.service.Current(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// ClockIn godoc
// @Summary Clock in at the partner site
// @Tags Timeclock
// @Accept json
// @Produce json
// @Param payload body dto.TimeclockActionRequest false "Location"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timeclock/clock-in [post]
func (h *TimeclockHandler) ClockIn(c *gin.Context) {
	h.act(c, h.service.ClockIn)
}

// ClockOut godoc
// @Summary Clock out and record the worked hours
// @Tags Timeclock
// @Accept json
// @Produce json
// @Param payload body dto.TimeclockActionRequest false "Location"
// @Success 200 {object} response.Envelope
// @Router /timeclock/clock-out [post]
func (h *TimeclockHandler) ClockOut(c *gin.Context) {
	h.act(c, h.service.ClockOut)
}

// StartLunch godoc
// @Summary Start the lunch break
// @Tags Timeclock
// @Accept json
// @Produce json
// @Param payload body dto.TimeclockActionRequest false "Location"
// @Success 200 {object} response.Envelope
// @Router /timeclock/lunch-start [post]
func (h *TimeclockHandler) StartLunch(c *gin.Context) {
	h.act(c, h.service.StartLunch)
}

// EndLunch godoc
// @Summary End the lunch break
// @Tags Timeclock
// @Accept json
// @Produce json
// @Param payload body dto.TimeclockActionRequest false "Location"
// @Success 200 {object} response.Envelope
// @Router /timeclock/lunch-end [post]
func (h *TimeclockHandler) EndLunch(c *gin.Context) {
	h.act(c, h.service.EndLunch)
}

// Heartbeat godoc
// @Summary Report a location reading while clocked in
// @Tags Timeclock
// @Accept json
// @Produce json
// @Param payload body dto.TimeclockActionRequest true "Location"
// @Success 200 {object} response.Envelope
// @Router /timeclock/heartbeat [post]
func (h *TimeclockHandler) Heartbeat(c *gin.Context) {
	h.act(c, h.service.Heartbeat)
}

// Reset godoc
// @Summary Acknowledge an automatic clock-out
// @Tags Timeclock
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timeclock/reset [post]
func (h *TimeclockHandler) Reset(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	session, err := h.service.ResetAfterAutoClockOut(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Alerts godoc
// @Summary Recent timeclock alerts for administrators
// @Tags Timeclock
// @Produce json
// @Param limit query int false "Maximum alerts" default(50)
// @Success 200 {object} response.Envelope
// @Router /timeclock/alerts [get]
func (h *TimeclockHandler) Alerts(c *gin.Context) {
	limit := defaultAlertLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxAlertLimit {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be between 1 and 500"))
			return
		}
		limit = parsed
	}
	alerts, err := h.service.Alerts(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

func (h *TimeclockHandler) act(c *gin.Context, action timeclockAction) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.TimeclockActionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "invalid timeclock payload") {
		return
	}
	session, err := action(c.Request.Context(), claims.UserID, fixFromPayload(req.Location))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}
