package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

type enrollmentServiceMock struct {
	created *dto.CreateEnrollmentRequest
	site    *dto.CreateSiteRequest
	getErr  error
}

func (m *enrollmentServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ApprenticeEnrollment, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.ApprenticeEnrollment{ID: id, ApprenticeID: actor.UserID}, nil
}

func (m *enrollmentServiceMock) Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.ApprenticeEnrollment, error) {
	m.created = &req
	return &models.ApprenticeEnrollment{ID: "enr-new", ApprenticeID: req.ApprenticeID, JurisdictionCode: req.JurisdictionCode}, nil
}

func (m *enrollmentServiceMock) CreateSite(ctx context.Context, req dto.CreateSiteRequest) (*models.PartnerSite, error) {
	m.site = &req
	return &models.PartnerSite{ID: "site-new", Name: req.Name}, nil
}

func TestEnrollmentHandlerCreate(t *testing.T) {
	svc := &enrollmentServiceMock{}
	h := NewEnrollmentHandler(svc)
	c, w := newTestContext(t, http.MethodPost, "/enrollments", dto.CreateEnrollmentRequest{ApprenticeID: "appr-1", JurisdictionCode: "IN"})
	withClaims(c, "admin-1", models.RoleAdmin)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "appr-1", svc.created.ApprenticeID)
	assert.Contains(t, string(decodeEnvelope(t, w).Data), `"enr-new"`)
}

func TestEnrollmentHandlerCreateSite(t *testing.T) {
	svc := &enrollmentServiceMock{}
	h := NewEnrollmentHandler(svc)
	c, w := newTestContext(t, http.MethodPost, "/sites", dto.CreateSiteRequest{Name: "Main St Barbers", CenterLat: 39.77, CenterLng: -86.16, RadiusM: 120})

	h.CreateSite(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 120.0, svc.site.RadiusM)
}

func TestEnrollmentHandlerGetForbidden(t *testing.T) {
	h := NewEnrollmentHandler(&enrollmentServiceMock{getErr: appErrors.ErrForbidden})
	c, w := newTestContext(t, http.MethodGet, "/enrollments/enr-2", nil)
	c.Params = gin.Params{{Key: "id", Value: "enr-2"}}
	withClaims(c, "appr-1", models.RoleApprentice)

	h.Get(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
