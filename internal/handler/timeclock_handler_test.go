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
	"github.com/noah-isme/apprenticeship-hours-api/internal/timeclock"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

type timeclockServiceMock struct {
	apprenticeID string
	fix          *timeclock.Fix
	calls        []string
	alertLimit   int
	err          error
}

func (m *timeclockServiceMock) record(name, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error) {
	m.calls = append(m.calls, name)
	m.apprenticeID = apprenticeID
	m.fix = fix
	if m.err != nil {
		return nil, m.err
	}
	return &models.TimeclockSession{ID: "session-1", ApprenticeID: apprenticeID, State: models.StateClockedIn}, nil
}

func (m *timeclockServiceMock) Current(ctx context.Context, apprenticeID string) (*models.TimeclockSession, error) {
	return m.record("current", apprenticeID, nil)
}

func (m *timeclockServiceMock) ClockIn(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error) {
	return m.record("clock_in", apprenticeID, fix)
}

func (m *timeclockServiceMock) ClockOut(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error) {
	return m.record("clock_out", apprenticeID, fix)
}

func (m *timeclockServiceMock) StartLunch(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error) {
	return m.record("lunch_start", apprenticeID, fix)
}

func (m *timeclockServiceMock) EndLunch(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error) {
	return m.record("lunch_end", apprenticeID, fix)
}

func (m *timeclockServiceMock) Heartbeat(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error) {
	return m.record("heartbeat", apprenticeID, fix)
}

func (m *timeclockServiceMock) ResetAfterAutoClockOut(ctx context.Context, apprenticeID string) (*models.TimeclockSession, error) {
	return m.record("reset", apprenticeID, nil)
}

func (m *timeclockServiceMock) Alerts(ctx context.Context, limit int) ([]models.AdminAlert, error) {
	m.alertLimit = limit
	return []models.AdminAlert{}, nil
}

func floatPtr(v float64) *float64 { return &v }

func TestFixFromPayload(t *testing.T) {
	assert.Nil(t, fixFromPayload(nil))

	failed := fixFromPayload(&dto.LocationPayload{Error: "permission denied"})
	require.NotNil(t, failed)
	require.Error(t, failed.Err)
	assert.Equal(t, "permission denied", failed.Err.Error())

	partial := fixFromPayload(&dto.LocationPayload{Lat: floatPtr(39.7), Lng: floatPtr(-86.1)})
	require.NotNil(t, partial)
	assert.ErrorIs(t, partial.Err, errIncompleteLocation)

	full := fixFromPayload(&dto.LocationPayload{Lat: floatPtr(39.7684), Lng: floatPtr(-86.1581), AccuracyMeters: floatPtr(12)})
	require.NotNil(t, full)
	assert.NoError(t, full.Err)
	assert.Equal(t, timeclock.Fix{Lat: 39.7684, Lng: -86.1581, AccuracyMeters: 12}, *full)
}

func TestTimeclockHandlerClockInUsesCallerAndLocation(t *testing.T) {
	svc := &timeclockServiceMock{}
	h := NewTimeclockHandler(svc)
	body := dto.TimeclockActionRequest{Location: &dto.LocationPayload{Lat: floatPtr(39.7684), Lng: floatPtr(-86.1581), AccuracyMeters: floatPtr(8)}}
	c, w := newTestContext(t, http.MethodPost, "/timeclock/clock-in", body)
	withClaims(c, "appr-1", models.RoleApprentice)

	h.ClockIn(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"clock_in"}, svc.calls)
	assert.Equal(t, "appr-1", svc.apprenticeID)
	require.NotNil(t, svc.fix)
	assert.InDelta(t, 39.7684, svc.fix.Lat, 1e-9)
	assert.Contains(t, string(decodeEnvelope(t, w).Data), `"session-1"`)
}

func TestTimeclockHandlerAcceptsEmptyBody(t *testing.T) {
	svc := &timeclockServiceMock{}
	h := NewTimeclockHandler(svc)
	c, w := newTestContext(t, http.MethodPost, "/timeclock/clock-out", nil)
	withClaims(c, "appr-1", models.RoleApprentice)

	h.ClockOut(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.fix)
}

func TestTimeclockHandlerRejectsMalformedBody(t *testing.T) {
	svc := &timeclockServiceMock{}
	h := NewTimeclockHandler(svc)
	c, w := newTestContext(t, http.MethodPost, "/timeclock/lunch-start", "{not json")
	withClaims(c, "appr-1", models.RoleApprentice)

	h.StartLunch(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.calls)
}

func TestTimeclockHandlerRequiresClaims(t *testing.T) {
	svc := &timeclockServiceMock{}
	h := NewTimeclockHandler(svc)
	c, w := newTestContext(t, http.MethodPost, "/timeclock/reset", nil)

	h.Reset(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.calls)
}

func TestTimeclockHandlerMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    *appErrors.Error
		status int
	}{
		{appErrors.ErrOutsideGeofence, http.StatusForbidden},
		{appErrors.ErrLocationUnavailable, http.StatusUnprocessableEntity},
		{appErrors.ErrAcknowledgementRequired, http.StatusConflict},
		{appErrors.ErrInvalidTransition, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.err.Code, func(t *testing.T) {
			h := NewTimeclockHandler(&timeclockServiceMock{err: tc.err})
			c, w := newTestContext(t, http.MethodPost, "/timeclock/clock-in", nil)
			withClaims(c, "appr-1", models.RoleApprentice)

			h.ClockIn(c)

			require.Equal(t, tc.status, w.Code)
			env := decodeEnvelope(t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.err.Code, env.Error.Code)
		})
	}
}

func TestTimeclockHandlerActionsRouteToService(t *testing.T) {
	svc := &timeclockServiceMock{}
	h := NewTimeclockHandler(svc)
	for _, fn := range []gin.HandlerFunc{h.Session, h.StartLunch, h.EndLunch, h.Heartbeat, h.Reset} {
		c, w := newTestContext(t, http.MethodPost, "/timeclock", nil)
		withClaims(c, "appr-2", models.RoleApprentice)
		fn(c)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, []string{"current", "lunch_start", "lunch_end", "heartbeat", "reset"}, svc.calls)
}

func TestTimeclockHandlerAlertsLimit(t *testing.T) {
	svc := &timeclockServiceMock{}
	h := NewTimeclockHandler(svc)

	c, w := newTestContext(t, http.MethodGet, "/timeclock/alerts", nil)
	h.Alerts(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultAlertLimit, svc.alertLimit)

	c, w = newTestContext(t, http.MethodGet, "/timeclock/alerts?limit=10", nil)
	h.Alerts(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, svc.alertLimit)

	c, w = newTestContext(t, http.MethodGet, "/timeclock/alerts?limit=abc", nil)
	h.Alerts(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
