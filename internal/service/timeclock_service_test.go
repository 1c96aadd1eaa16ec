package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/timeclock"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

type sessionStoreStub struct {
	mu       sync.Mutex
	sessions []models.TimeclockSession
	alerts   []models.AdminAlert
}

func (s *sessionStoreStub) Create(ctx context.Context, session *models.TimeclockSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == "" {
		session.ID = fmt.Sprintf("sess-%d", len(s.sessions)+1)
	}
	s.sessions = append(s.sessions, *session)
	return nil
}

func (s *sessionStoreStub) Update(ctx context.Context, session *models.TimeclockSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sessions {
		if s.sessions[i].ID == session.ID {
			s.sessions[i] = *session
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *sessionStoreStub) LatestByApprentice(ctx context.Context, apprenticeID string) (*models.TimeclockSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sessions) - 1; i >= 0; i-- {
		if s.sessions[i].ApprenticeID == apprenticeID {
			copied := s.sessions[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *sessionStoreStub) ListByStates(ctx context.Context, states ...models.SessionState) ([]models.TimeclockSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TimeclockSession
	for _, session := range s.sessions {
		for _, st := range states {
			if session.State == st {
				out = append(out, session)
				break
			}
		}
	}
	return out, nil
}

func (s *sessionStoreStub) CreateAlert(ctx context.Context, alert *models.AdminAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert.ID = fmt.Sprintf("alert-%d", len(s.alerts)+1)
	s.alerts = append(s.alerts, *alert)
	return nil
}

func (s *sessionStoreStub) ListOpenAlerts(ctx context.Context, limit int) ([]models.AdminAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.AdminAlert(nil), s.alerts...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *sessionStoreStub) alertTypes() []models.AlertType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AlertType, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a.AlertType)
	}
	return out
}

type timeclockFixture struct {
	svc      *TimeclockService
	clock    *timeclock.ManualClock
	sessions *sessionStoreStub
	entries  *hourStoreStub
	audit    *auditSpy
	cache    *memCache
}

var (
	onSite  = &timeclock.Fix{Lat: 39.7684, Lng: -86.1581, AccuracyMeters: 10}
	offSite = &timeclock.Fix{Lat: 39.7784, Lng: -86.1581, AccuracyMeters: 10}
	shift   = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
)

func newTimeclockFixture(t *testing.T) *timeclockFixture {
	t.Helper()
	enrollments := newEnrollmentStore(
		models.ApprenticeEnrollment{ID: "enr-1", ApprenticeID: "appr-1", JurisdictionCode: "IN", SiteID: strPtr("site-1"), Status: models.EnrollmentStatusActive},
		models.ApprenticeEnrollment{ID: "enr-2", ApprenticeID: "appr-2", JurisdictionCode: "IN", SiteID: strPtr("site-1"), Status: models.EnrollmentStatusActive},
		models.ApprenticeEnrollment{ID: "enr-3", ApprenticeID: "appr-3", JurisdictionCode: "IN", Status: models.EnrollmentStatusActive},
	)
	enrollments.sites["site-1"] = models.PartnerSite{ID: "site-1", Name: "Main Street Barbers", CenterLat: 39.7684, CenterLng: -86.1581, RadiusM: 100}

	f := &timeclockFixture{
		clock:    timeclock.NewManualClock(shift),
		sessions: &sessionStoreStub{},
		entries:  &hourStoreStub{},
		audit:    &auditSpy{},
		cache:    newMemCache(),
	}
	f.svc = NewTimeclockService(
		f.sessions,
		enrollments,
		f.entries,
		NewCacheService(f.cache, nil, 0, nil, true),
		f.audit,
		nil,
		TimeclockConfig{GraceWindow: 15 * time.Minute},
		nil,
		WithClock(f.clock),
	)
	t.Cleanup(f.svc.Stop)
	return f
}

func TestTimeclockServiceClockInOut(t *testing.T) {
	f := newTimeclockFixture(t)
	ctx := context.Background()

	session, err := f.svc.ClockIn(ctx, "appr-1", onSite)
	require.NoError(t, err)
	assert.Equal(t, models.StateClockedIn, session.State)
	assert.Equal(t, "enr-1", session.EnrollmentID)
	assert.Equal(t, "site-1", session.SiteID)
	assert.NotEmpty(t, session.ID)

	_, err = f.svc.ClockIn(ctx, "appr-1", onSite)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	f.clock.Advance(8 * time.Hour)
	closed, err := f.svc.ClockOut(ctx, "appr-1", onSite)
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, closed.State)
	assert.Equal(t, 8.0, closed.HoursWorked)
	assert.False(t, closed.AutoClosed)

	require.Len(t, f.entries.entries, 1)
	entry := f.entries.entries[0]
	assert.Equal(t, 8.0, entry.Hours)
	assert.Equal(t, models.CategoryOJT, entry.Category)
	assert.Equal(t, models.HourSourceTimeclock, entry.Source)
	assert.Equal(t, day(2025, 3, 3), entry.LoggedDate)
	assert.False(t, entry.Verified)
	require.NotNil(t, entry.TimeclockSessionID)
	assert.Equal(t, session.ID, *entry.TimeclockSessionID)

	assert.Equal(t, []models.AlertType{models.AlertMissingLunch}, f.sessions.alertTypes())
	assert.Equal(t, []string{models.AuditActionSessionClosed}, f.audit.actions())
	assert.Contains(t, f.cache.deleted, ProgressKey("enr-1"))
}

func TestTimeclockServiceLunchIsSubtracted(t *testing.T) {
	f := newTimeclockFixture(t)
	ctx := context.Background()

	_, err := f.svc.ClockIn(ctx, "appr-1", onSite)
	require.NoError(t, err)
	f.clock.Advance(4 * time.Hour)
	_, err = f.svc.StartLunch(ctx, "appr-1", onSite)
	require.NoError(t, err)

	_, err = f.svc.ClockOut(ctx, "appr-1", onSite)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	f.clock.Advance(90 * time.Minute)
	_, err = f.svc.EndLunch(ctx, "appr-1", onSite)
	require.NoError(t, err)
	f.clock.Advance(3 * time.Hour)

	closed, err := f.svc.ClockOut(ctx, "appr-1", onSite)
	require.NoError(t, err)
	assert.Equal(t, 7.0, closed.HoursWorked)
	assert.Equal(t, []models.AlertType{models.AlertExcessiveLunch}, f.sessions.alertTypes())
}

func TestTimeclockServiceAutoClockOut(t *testing.T) {
	f := newTimeclockFixture(t)
	ctx := context.Background()

	_, err := f.svc.ClockIn(ctx, "appr-1", onSite)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	grace, err := f.svc.Heartbeat(ctx, "appr-1", offSite)
	require.NoError(t, err)
	assert.Equal(t, models.StateOffsiteGrace, grace.State)
	require.NotNil(t, grace.GraceDeadline)
	assert.Equal(t, shift.Add(75*time.Minute), *grace.GraceDeadline)
	assert.Equal(t, 1, f.svc.PendingTimers())

	f.clock.Advance(15 * time.Minute)
	assert.Zero(t, f.svc.PendingTimers())

	current, err := f.svc.Current(ctx, "appr-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateAutoClockedOut, current.State)
	assert.True(t, current.AutoClosed)
	assert.Equal(t, 1.0, current.HoursWorked)
	require.NotNil(t, current.ClockOutAt)
	assert.Equal(t, shift.Add(time.Hour), *current.ClockOutAt)

	require.Len(t, f.entries.entries, 1)
	assert.Equal(t, 1.0, f.entries.entries[0].Hours)
	assert.Equal(t, []models.AlertType{models.AlertAutoClockOut}, f.sessions.alertTypes())
	assert.Equal(t, []string{models.AuditActionAutoClockOut}, f.audit.actions())

	_, err = f.svc.ClockIn(ctx, "appr-1", onSite)
	assert.ErrorIs(t, err, appErrors.ErrAcknowledgementRequired)

	reset, err := f.svc.ResetAfterAutoClockOut(ctx, "appr-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, reset.State)
	assert.Equal(t, current.ID, reset.ID)

	again, err := f.svc.ResetAfterAutoClockOut(ctx, "appr-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, again.State)

	next, err := f.svc.ClockIn(ctx, "appr-1", onSite)
	require.NoError(t, err)
	assert.Equal(t, models.StateClockedIn, next.State)
	assert.NotEqual(t, current.ID, next.ID)
	assert.Equal(t, []string{models.AuditActionAutoClockOut, models.AuditActionAutoClockOutAck}, f.audit.actions())
}

func TestTimeclockServiceReturnDuringGraceCancelsTimer(t *testing.T) {
	f := newTimeclockFixture(t)
	ctx := context.Background()

	_, err := f.svc.ClockIn(ctx, "appr-1", onSite)
	require.NoError(t, err)
	_, err = f.svc.Heartbeat(ctx, "appr-1", offSite)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)

	back, err := f.svc.Heartbeat(ctx, "appr-1", onSite)
	require.NoError(t, err)
	assert.Equal(t, models.StateClockedIn, back.State)
	assert.Nil(t, back.GraceDeadline)
	assert.Zero(t, f.svc.PendingTimers())
	assert.Zero(t, f.clock.Pending())

	f.clock.Advance(time.Hour)
	current, err := f.svc.Current(ctx, "appr-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateClockedIn, current.State)
	assert.Empty(t, f.sessions.alertTypes())
	assert.Empty(t, f.entries.entries)
}

func TestTimeclockServiceClockOutDuringGrace(t *testing.T) {
	f := newTimeclockFixture(t)
	ctx := context.Background()

	_, err := f.svc.ClockIn(ctx, "appr-1", onSite)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Heartbeat(ctx, "appr-1", offSite)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)

	closed, err := f.svc.ClockOut(ctx, "appr-1", offSite)
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, closed.State)
	assert.False(t, closed.AutoClosed)
	assert.Zero(t, f.svc.PendingTimers())

	f.clock.Advance(time.Hour)
	assert.Empty(t, f.sessions.alertTypes())
	require.Len(t, f.entries.entries, 1)
	assert.Equal(t, 2.08, f.entries.entries[0].Hours)
}

func TestTimeclockServiceRecoverGraceTimers(t *testing.T) {
	f := newTimeclockFixture(t)
	ctx := context.Background()

	in := shift.Add(-2 * time.Hour)
	leftFuture := shift.Add(-10 * time.Minute)
	futureDeadline := leftFuture.Add(15 * time.Minute)
	leftPast := shift.Add(-time.Hour)
	pastDeadline := leftPast.Add(15 * time.Minute)
	f.sessions.sessions = []models.TimeclockSession{
		{ID: "sess-a", ApprenticeID: "appr-1", EnrollmentID: "enr-1", SiteID: "site-1", State: models.StateOffsiteGrace,
			ClockInAt: &in, OffsiteSince: &leftFuture, GraceDeadline: &futureDeadline, GraceToken: strPtr("tok-future")},
		{ID: "sess-b", ApprenticeID: "appr-2", EnrollmentID: "enr-2", SiteID: "site-1", State: models.StateOffsiteGrace,
			ClockInAt: &in, OffsiteSince: &leftPast, GraceDeadline: &pastDeadline, GraceToken: strPtr("tok-past")},
	}

	recovered, err := f.svc.RecoverGraceTimers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)
	assert.Equal(t, 1, f.svc.PendingTimers())

	expired, err := f.sessions.LatestByApprentice(ctx, "appr-2")
	require.NoError(t, err)
	assert.Equal(t, models.StateAutoClockedOut, expired.State)
	assert.Equal(t, 1.0, expired.HoursWorked)

	f.clock.Advance(5 * time.Minute)
	closed, err := f.sessions.LatestByApprentice(ctx, "appr-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateAutoClockedOut, closed.State)
	assert.Equal(t, 1.83, closed.HoursWorked)
	assert.Len(t, f.entries.entries, 2)
}

func TestTimeclockServiceCurrentExpiresElapsedDeadline(t *testing.T) {
	f := newTimeclockFixture(t)
	ctx := context.Background()

	in := shift.Add(-3 * time.Hour)
	left := shift.Add(-time.Hour)
	deadline := left.Add(15 * time.Minute)
	f.sessions.sessions = []models.TimeclockSession{{
		ID: "sess-a", ApprenticeID: "appr-1", EnrollmentID: "enr-1", SiteID: "site-1", State: models.StateOffsiteGrace,
		ClockInAt: &in, OffsiteSince: &left, GraceDeadline: &deadline, GraceToken: strPtr("tok-1"),
	}}

	current, err := f.svc.Current(ctx, "appr-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateAutoClockedOut, current.State)
	assert.Equal(t, 2.0, current.HoursWorked)

	_, err = f.svc.Current(ctx, "appr-9")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestTimeclockServiceClockInPreconditions(t *testing.T) {
	f := newTimeclockFixture(t)
	ctx := context.Background()

	_, err := f.svc.ClockIn(ctx, "appr-9", onSite)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	_, err = f.svc.ClockIn(ctx, "appr-3", onSite)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	_, err = f.svc.ClockIn(ctx, "", onSite)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Empty(t, f.sessions.sessions)
}

func TestTimeclockServiceGeofenceViolation(t *testing.T) {
	f := newTimeclockFixture(t)

	_, err := f.svc.ClockIn(context.Background(), "appr-1", offSite)
	assert.ErrorIs(t, err, appErrors.ErrOutsideGeofence)
	assert.Empty(t, f.sessions.sessions)

	alerts, err := f.svc.Alerts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertGeofenceViolation, alerts[0].AlertType)
	assert.Equal(t, "appr-1", alerts[0].ApprenticeID)
	require.NotNil(t, alerts[0].SiteID)
	assert.Equal(t, "site-1", *alerts[0].SiteID)
}

func TestTimeclockServiceRetryAfterLocationFailure(t *testing.T) {
	f := newTimeclockFixture(t)
	ctx := context.Background()

	failed, err := f.svc.ClockIn(ctx, "appr-1", &timeclock.Fix{Err: errors.New("gps disabled")})
	assert.ErrorIs(t, err, appErrors.ErrLocationUnavailable)
	assert.Equal(t, models.StateError, failed.State)
	require.Len(t, f.sessions.sessions, 1)

	_, err = f.svc.ClockOut(ctx, "appr-1", onSite)
	assert.ErrorIs(t, err, appErrors.ErrRetryMismatch)

	session, err := f.svc.ClockIn(ctx, "appr-1", onSite)
	require.NoError(t, err)
	assert.Equal(t, models.StateClockedIn, session.State)
	assert.Equal(t, failed.ID, session.ID)
	assert.Len(t, f.sessions.sessions, 1)
}
