package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/middleware"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/timeclock"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/response"
)

var errIncompleteLocation = errors.New("location reading is missing coordinates or accuracy")

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

// bindJSON decodes the request body and reports a validation error on failure.
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			response.Error(c, appErrors.Validation(err))
		} else {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		}
		return false
	}
	return true
}

// fixFromPayload converts a client location reading. A nil payload means the
// client sent no location at all; an error or partial reading becomes a
// failed fix.
func fixFromPayload(p *dto.LocationPayload) *timeclock.Fix {
	if p == nil {
		return nil
	}
	if msg := strings.TrimSpace(p.Error); msg != "" {
		return &timeclock.Fix{Err: errors.New(msg)}
	}
	if p.Lat == nil || p.Lng == nil || p.AccuracyMeters == nil {
		return &timeclock.Fix{Err: errIncompleteLocation}
	}
	return &timeclock.Fix{Lat: *p.Lat, Lng: *p.Lng, AccuracyMeters: *p.AccuracyMeters}
}
