package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/timeclock"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

const graceExpiryTimeout = 30 * time.Second

type timeclockStore interface {
	Create(ctx context.Context, session *models.TimeclockSession) error
	Update(ctx context.Context, session *models.TimeclockSession) error
	LatestByApprentice(ctx context.Context, apprenticeID string) (*models.TimeclockSession, error)
	ListByStates(ctx context.Context, states ...models.SessionState) ([]models.TimeclockSession, error)
	CreateAlert(ctx context.Context, alert *models.AdminAlert) error
	ListOpenAlerts(ctx context.Context, limit int) ([]models.AdminAlert, error)
}

type timeclockEnrollments interface {
	FindActiveByApprentice(ctx context.Context, apprenticeID string) (*models.ApprenticeEnrollment, error)
	FindSite(ctx context.Context, id string) (*models.PartnerSite, error)
}

type hourEntryWriter interface {
	Create(ctx context.Context, entry *models.HourEntry) error
}

// TimeclockConfig tunes the timeclock policy.
type TimeclockConfig struct {
	GraceWindow       time.Duration
	MaxAccuracyMeters float64
	LunchStandard     time.Duration
	MissingLunchAfter time.Duration
}

// TimeclockService drives the timeclock state machine for each apprentice.
// Events for one apprentice are serialised; grace timers are tracked by token
// so a timer that fires after the session moved on does nothing.
type TimeclockService struct {
	sessions    timeclockStore
	enrollments timeclockEnrollments
	entries     hourEntryWriter
	cache       *CacheService
	audit       auditRecorder
	metrics     *MetricsService
	clock       timeclock.Clock
	cfg         TimeclockConfig
	logger      *zap.Logger
	newToken    func() string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	timersMu sync.Mutex
	timers   map[string]timeclock.Timer
}

// TimeclockOption customises the service.
type TimeclockOption func(*TimeclockService)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock timeclock.Clock) TimeclockOption {
	return func(s *TimeclockService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTokenSource replaces the grace token generator.
func WithTokenSource(fn func() string) TimeclockOption {
	return func(s *TimeclockService) {
		s.newToken = fn
	}
}

// NewTimeclockService constructs TimeclockService.
func NewTimeclockService(
	sessions timeclockStore,
	enrollments timeclockEnrollments,
	entries hourEntryWriter,
	cache *CacheService,
	audit auditRecorder,
	metrics *MetricsService,
	cfg TimeclockConfig,
	logger *zap.Logger,
	opts ...TimeclockOption,
) *TimeclockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &TimeclockService{
		sessions:    sessions,
		enrollments: enrollments,
		entries:     entries,
		cache:       cache,
		audit:       audit,
		metrics:     metrics,
		clock:       timeclock.SystemClock{},
		cfg:         cfg,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
		timers:      make(map[string]timeclock.Timer),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ClockIn starts a shift. The fix must be usable and inside the site geofence.
func (s *TimeclockService) ClockIn(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error) {
	return s.handle(ctx, apprenticeID, timeclock.Event{Kind: timeclock.EventClockIn, Fix: fix})
}

// ClockOut ends the current shift.
func (s *TimeclockService) ClockOut(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error) {
	return s.handle(ctx, apprenticeID, timeclock.Event{Kind: timeclock.EventClockOut, Fix: fix})
}

// StartLunch begins the shift's lunch break.
func (s *TimeclockService) StartLunch(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error) {
	return s.handle(ctx, apprenticeID, timeclock.Event{Kind: timeclock.EventStartLunch, Fix: fix})
}

// EndLunch ends the lunch break.
func (s *TimeclockService) EndLunch(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error) {
	return s.handle(ctx, apprenticeID, timeclock.Event{Kind: timeclock.EventEndLunch, Fix: fix})
}

// ResetAfterAutoClockOut acknowledges an automatic clock-out.
func (s *TimeclockService) ResetAfterAutoClockOut(ctx context.Context, apprenticeID string) (*models.TimeclockSession, error) {
	return s.handle(ctx, apprenticeID, timeclock.Event{Kind: timeclock.EventAcknowledge})
}

// Heartbeat feeds a background location reading.
func (s *TimeclockService) Heartbeat(ctx context.Context, apprenticeID string, fix *timeclock.Fix) (*models.TimeclockSession, error) {
	return s.handle(ctx, apprenticeID, timeclock.Event{Kind: timeclock.EventLocationCheck, Fix: fix})
}

// Current returns the apprentice's latest session. A grace deadline that has
// already passed is applied before returning.
func (s *TimeclockService) Current(ctx context.Context, apprenticeID string) (*models.TimeclockSession, error) {
	lock := s.lockFor(apprenticeID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := s.latest(ctx, apprenticeID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no timeclock session")
	}
	if inGrace(*latest) && latest.GraceDeadline != nil && !s.clock.Now().Before(*latest.GraceDeadline) {
		ev := timeclock.Event{Kind: timeclock.EventGraceExpired, Token: deref(latest.GraceToken)}
		session, err := s.apply(ctx, *latest, ev)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
	return latest, nil
}

// Alerts lists unresolved admin alerts, newest first.
func (s *TimeclockService) Alerts(ctx context.Context, limit int) ([]models.AdminAlert, error) {
	alerts, err := s.sessions.ListOpenAlerts(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alerts")
	}
	if alerts == nil {
		alerts = []models.AdminAlert{}
	}
	return alerts, nil
}

// RecoverGraceTimers re-arms timers for sessions persisted in offsite grace,
// expiring at once those whose deadline already passed.
func (s *TimeclockService) RecoverGraceTimers(ctx context.Context) (int, error) {
	sessions, err := s.sessions.ListByStates(ctx, models.StateOffsiteGrace, models.StateError)
	if err != nil {
		return 0, fmt.Errorf("load grace sessions: %w", err)
	}
	recovered := 0
	for _, session := range sessions {
		if !inGrace(session) || session.GraceToken == nil || session.GraceDeadline == nil {
			continue
		}
		recovered++
		if !s.clock.Now().Before(*session.GraceDeadline) {
			s.expireGrace(session.ApprenticeID, *session.GraceToken)
			continue
		}
		s.arm(session.ApprenticeID, *session.GraceToken, *session.GraceDeadline)
	}
	if recovered > 0 {
		s.logger.Info("grace timers recovered", zap.Int("sessions", recovered))
	}
	return recovered, nil
}

// Stop cancels every pending grace timer.
func (s *TimeclockService) Stop() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for token, timer := range s.timers {
		timer.Stop()
		delete(s.timers, token)
	}
}

// PendingTimers reports armed grace timers.
func (s *TimeclockService) PendingTimers() int {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	return len(s.timers)
}

func (s *TimeclockService) handle(ctx context.Context, apprenticeID string, ev timeclock.Event) (*models.TimeclockSession, error) {
	if apprenticeID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	lock := s.lockFor(apprenticeID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.latest(ctx, apprenticeID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.State == models.StateIdle {
		current = &models.TimeclockSession{ApprenticeID: apprenticeID, State: models.StateIdle}
		if ev.Kind == timeclock.EventClockIn {
			if err := s.attachEnrollment(ctx, current); err != nil {
				s.metrics.RecordTimeclockEvent(string(ev.Kind), appErrors.FromError(err).Code)
				return nil, err
			}
		}
	}
	return s.apply(ctx, *current, ev)
}

// apply runs one event against the session and carries out its effects. The
// caller holds the apprentice lock.
func (s *TimeclockService) apply(ctx context.Context, current models.TimeclockSession, ev timeclock.Event) (*models.TimeclockSession, error) {
	ev.At = s.clock.Now()
	policy, err := s.policy(ctx, current)
	if err != nil {
		return nil, err
	}

	out, transitionErr := timeclock.Transition(current, ev, policy)
	if out.Changed {
		if err := s.persist(ctx, current, &out.Session); err != nil {
			s.metrics.RecordTimeclockEvent(string(ev.Kind), appErrors.ErrInternal.Code)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save timeclock session")
		}
	}
	s.carryOut(ctx, out)

	result := "ok"
	if transitionErr != nil {
		result = appErrors.FromError(transitionErr).Code
	}
	s.metrics.RecordTimeclockEvent(string(ev.Kind), result)
	session := out.Session
	return &session, transitionErr
}

func (s *TimeclockService) persist(ctx context.Context, prior models.TimeclockSession, next *models.TimeclockSession) error {
	// A failed clock-in from idle leaves an error row with no clock-in time;
	// the retried clock-in reuses that row.
	if next.ID == "" && prior.ID != "" && prior.ClockInAt == nil {
		next.ID = prior.ID
		next.CreatedAt = prior.CreatedAt
	}
	if next.ID == "" {
		return s.sessions.Create(ctx, next)
	}
	return s.sessions.Update(ctx, next)
}

func (s *TimeclockService) carryOut(ctx context.Context, out timeclock.Outcome) {
	session := out.Session
	for _, effect := range out.Effects {
		switch effect.Kind {
		case timeclock.EffectSessionOpened:
			s.logger.Info("clocked in", zap.String("apprentice_id", session.ApprenticeID), zap.String("session_id", session.ID))
		case timeclock.EffectStartGraceTimer:
			s.arm(session.ApprenticeID, effect.Token, effect.Deadline)
		case timeclock.EffectCancelGraceTimer:
			s.disarm(effect.Token)
		case timeclock.EffectSessionClosed:
			s.sessionClosed(ctx, session, effect)
		case timeclock.EffectAlert:
			s.raiseAlert(ctx, session, effect)
		case timeclock.EffectAcknowledged:
			s.recordAudit(ctx, session, models.AuditActionAutoClockOutAck, map[string]interface{}{
				"session_id": session.ID,
				"state":      session.State,
			})
		}
	}
}

func (s *TimeclockService) sessionClosed(ctx context.Context, session models.TimeclockSession, effect timeclock.Effect) {
	action := models.AuditActionSessionClosed
	if effect.Auto {
		action = models.AuditActionAutoClockOut
		s.metrics.RecordAutoClockOut()
	}

	if effect.Hours > 0 && session.EnrollmentID != "" {
		sessionID := session.ID
		entry := &models.HourEntry{
			EnrollmentID:       session.EnrollmentID,
			Hours:              effect.Hours,
			Category:           models.CategoryOJT,
			LoggedDate:         loggedDate(session),
			Source:             models.HourSourceTimeclock,
			TimeclockSessionID: &sessionID,
		}
		if err := s.entries.Create(ctx, entry); err != nil {
			s.logger.Error("failed to record timeclock hours",
				zap.String("session_id", session.ID),
				zap.Float64("hours", effect.Hours),
				zap.Error(err),
			)
		}
		s.cache.Invalidate(ctx, ProgressKey(session.EnrollmentID))
	}

	s.recordAudit(ctx, session, action, map[string]interface{}{
		"session_id":   session.ID,
		"clock_in_at":  session.ClockInAt,
		"clock_out_at": session.ClockOutAt,
		"hours":        effect.Hours,
		"auto":         effect.Auto,
	})
	s.logger.Info("session closed",
		zap.String("apprentice_id", session.ApprenticeID),
		zap.String("session_id", session.ID),
		zap.Float64("hours", effect.Hours),
		zap.Bool("auto", effect.Auto),
	)
}

func (s *TimeclockService) raiseAlert(ctx context.Context, session models.TimeclockSession, effect timeclock.Effect) {
	alert := &models.AdminAlert{
		AlertType:    effect.AlertType,
		ApprenticeID: session.ApprenticeID,
		Message:      effect.Message,
		CreatedAt:    s.clock.Now(),
	}
	if session.EnrollmentID != "" {
		enrollmentID := session.EnrollmentID
		alert.EnrollmentID = &enrollmentID
	}
	if session.ID != "" {
		sessionID := session.ID
		alert.SessionID = &sessionID
	}
	if session.SiteID != "" {
		siteID := session.SiteID
		alert.SiteID = &siteID
	}
	if err := s.sessions.CreateAlert(ctx, alert); err != nil {
		s.logger.Warn("failed to raise admin alert", zap.String("alert_type", string(effect.AlertType)), zap.Error(err))
	}
}

func (s *TimeclockService) arm(apprenticeID, token string, deadline time.Time) {
	if token == "" {
		return
	}
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if existing, ok := s.timers[token]; ok {
		existing.Stop()
	}
	delay := deadline.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.timers[token] = s.clock.AfterFunc(delay, func() {
		s.expireGrace(apprenticeID, token)
	})
}

func (s *TimeclockService) disarm(token string) {
	if token == "" {
		return
	}
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if timer, ok := s.timers[token]; ok {
		timer.Stop()
		delete(s.timers, token)
	}
}

// expireGrace runs when a grace timer fires. The token is checked again under
// the apprentice lock so a late timer cannot close a newer session.
func (s *TimeclockService) expireGrace(apprenticeID, token string) {
	s.timersMu.Lock()
	delete(s.timers, token)
	s.timersMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), graceExpiryTimeout)
	defer cancel()

	lock := s.lockFor(apprenticeID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.latest(ctx, apprenticeID)
	if err != nil {
		s.logger.Error("failed to load session for grace expiry", zap.String("apprentice_id", apprenticeID), zap.Error(err))
		return
	}
	if current == nil || !inGrace(*current) || deref(current.GraceToken) != token {
		return
	}
	if _, err := s.apply(ctx, *current, timeclock.Event{Kind: timeclock.EventGraceExpired, Token: token}); err != nil {
		s.logger.Error("grace expiry failed", zap.String("apprentice_id", apprenticeID), zap.Error(err))
	}
}

func (s *TimeclockService) latest(ctx context.Context, apprenticeID string) (*models.TimeclockSession, error) {
	session, err := s.sessions.LatestByApprentice(ctx, apprenticeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeclock session")
	}
	return session, nil
}

func (s *TimeclockService) attachEnrollment(ctx context.Context, session *models.TimeclockSession) error {
	enrollment, err := s.enrollments.FindActiveByApprentice(ctx, session.ApprenticeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "no active enrollment")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.SiteID == nil || *enrollment.SiteID == "" {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment has no partner site")
	}
	session.EnrollmentID = enrollment.ID
	session.SiteID = *enrollment.SiteID
	return nil
}

func (s *TimeclockService) policy(ctx context.Context, session models.TimeclockSession) (timeclock.Policy, error) {
	p := timeclock.Policy{
		GraceWindow:       s.cfg.GraceWindow,
		MaxAccuracyMeters: s.cfg.MaxAccuracyMeters,
		LunchStandard:     s.cfg.LunchStandard,
		MissingLunchAfter: s.cfg.MissingLunchAfter,
		NewToken:          s.newToken,
	}
	if session.SiteID == "" {
		return p, nil
	}
	site, err := s.enrollments.FindSite(ctx, session.SiteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, appErrors.Clone(appErrors.ErrPreconditionFailed, "partner site not found")
		}
		return p, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load partner site")
	}
	p.Fence = timeclock.Geofence{Lat: site.CenterLat, Lng: site.CenterLng, RadiusM: site.RadiusM}
	return p, nil
}

func (s *TimeclockService) lockFor(apprenticeID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[apprenticeID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[apprenticeID] = lock
	}
	return lock
}

func (s *TimeclockService) recordAudit(ctx context.Context, session models.TimeclockSession, action string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:    session.ApprenticeID,
		Action:     action,
		Resource:   models.AuditResourceTimeclockSession,
		ResourceID: session.ID,
		NewValues:  values,
		UserAgent:  "timeclock-service",
	})
}

func inGrace(s models.TimeclockSession) bool {
	return s.State == models.StateOffsiteGrace ||
		(s.State == models.StateError && s.ErrorFrom != nil && *s.ErrorFrom == models.StateOffsiteGrace)
}

func loggedDate(s models.TimeclockSession) time.Time {
	at := s.ClockInAt
	if at == nil {
		at = s.ClockOutAt
	}
	if at == nil {
		return time.Time{}
	}
	y, m, d := at.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
