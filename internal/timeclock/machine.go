// Package timeclock holds the pure timeclock state machine. It never reads the
// wall clock or starts timers itself; callers feed it events stamped with the
// time they were observed and carry out the effects it returns.
package timeclock

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

// EventKind names an input to the state machine.
type EventKind string

// Events. The first four carry a location fix.
const (
	EventClockIn       EventKind = EventKind(models.ActionClockIn)
	EventClockOut      EventKind = EventKind(models.ActionClockOut)
	EventStartLunch    EventKind = EventKind(models.ActionStartLunch)
	EventEndLunch      EventKind = EventKind(models.ActionEndLunch)
	EventAcknowledge   EventKind = EventKind(models.ActionAcknowledge)
	EventLocationCheck EventKind = "location_check"
	EventGraceExpired  EventKind = "grace_expired"
)

// Fix is one reading from the location sensor. Err is set when no reading
// could be taken.
type Fix struct {
	Lat            float64
	Lng            float64
	AccuracyMeters float64
	Err            error
}

// Event is an observed input at a point in time.
type Event struct {
	Kind  EventKind
	At    time.Time
	Fix   *Fix
	Token string
}

// Policy carries the site and tunables a transition is evaluated against.
type Policy struct {
	Fence             Geofence
	GraceWindow       time.Duration
	MaxAccuracyMeters float64
	LunchStandard     time.Duration
	MissingLunchAfter time.Duration
	NewToken          func() string
}

// Default tunables.
const (
	DefaultGraceWindow       = 15 * time.Minute
	DefaultMaxAccuracyMeters = 50.0
	DefaultLunchStandard     = time.Hour
	DefaultMissingLunchAfter = 6 * time.Hour
)

func (p Policy) withDefaults() Policy {
	if p.GraceWindow <= 0 {
		p.GraceWindow = DefaultGraceWindow
	}
	if p.MaxAccuracyMeters <= 0 {
		p.MaxAccuracyMeters = DefaultMaxAccuracyMeters
	}
	if p.LunchStandard <= 0 {
		p.LunchStandard = DefaultLunchStandard
	}
	if p.MissingLunchAfter <= 0 {
		p.MissingLunchAfter = DefaultMissingLunchAfter
	}
	return p
}

// EffectKind names a side effect the caller must carry out.
type EffectKind string

// Effects.
const (
	EffectSessionOpened    EffectKind = "session_opened"
	EffectStartGraceTimer  EffectKind = "start_grace_timer"
	EffectCancelGraceTimer EffectKind = "cancel_grace_timer"
	EffectSessionClosed    EffectKind = "session_closed"
	EffectAlert            EffectKind = "alert"
	EffectAcknowledged     EffectKind = "acknowledged"
)

// Effect describes one side effect of a transition.
type Effect struct {
	Kind      EffectKind
	Token     string
	Deadline  time.Time
	Hours     float64
	Auto      bool
	AlertType models.AlertType
	Message   string
}

// Outcome is the result of applying an event. Effects must be carried out even
// when Transition also returns an error: a rejected action can still have
// expired a grace period or raised an alert first.
type Outcome struct {
	Session models.TimeclockSession
	Effects []Effect
	Changed bool
}

// Transition applies ev to s under p.
func Transition(s models.TimeclockSession, ev Event, p Policy) (Outcome, error) {
	p = p.withDefaults()
	if s.State == "" {
		s.State = models.StateIdle
	}
	out := Outcome{Session: s}

	// A deadline observed in the past counts as elapsed, whatever the event.
	if deadlinePassed(out.Session, ev.At) {
		expire(&out, p)
	}

	if out.Session.State == models.StateError {
		return retry(out, ev, p)
	}
	return apply(out, ev, p)
}

func apply(out Outcome, ev Event, p Policy) (Outcome, error) {
	s := out.Session
	switch ev.Kind {
	case EventClockIn:
		return clockIn(out, ev, p)
	case EventClockOut:
		switch s.State {
		case models.StateClockedIn, models.StateOffsiteGrace:
		case models.StateOnLunch:
			return out, invalid("end lunch before clocking out")
		case models.StateAutoClockedOut:
			return out, appErrors.ErrAcknowledgementRequired
		default:
			return out, invalid("not clocked in")
		}
		if err := checkFix(&out, ev, p); err != nil {
			return out, err
		}
		wasGrace := s.State == models.StateOffsiteGrace
		if wasGrace {
			out.Effects = append(out.Effects, Effect{Kind: EffectCancelGraceTimer, Token: deref(s.GraceToken)})
		}
		closeSession(&out, ev.At, false, p)
		return out, nil
	case EventStartLunch:
		switch {
		case s.State == models.StateAutoClockedOut:
			return out, appErrors.ErrAcknowledgementRequired
		case s.State != models.StateClockedIn:
			return out, invalid("lunch can only start while clocked in on site")
		case s.LunchStartAt != nil:
			return out, invalid("lunch already taken this shift")
		}
		if err := checkFix(&out, ev, p); err != nil {
			return out, err
		}
		at := ev.At
		out.Session.State = models.StateOnLunch
		out.Session.LunchStartAt = &at
		out.Changed = true
		return out, nil
	case EventEndLunch:
		if s.State != models.StateOnLunch {
			return out, invalid("not on lunch")
		}
		if err := checkFix(&out, ev, p); err != nil {
			return out, err
		}
		at := ev.At
		out.Session.State = models.StateClockedIn
		out.Session.LunchEndAt = &at
		out.Changed = true
		if s.LunchStartAt != nil {
			if took := at.Sub(*s.LunchStartAt); took > p.LunchStandard {
				out.Effects = append(out.Effects, Effect{
					Kind:      EffectAlert,
					AlertType: models.AlertExcessiveLunch,
					Message:   fmt.Sprintf("Lunch lasted %d minutes (standard %d).", int(took.Minutes()), int(p.LunchStandard.Minutes())),
				})
			}
		}
		return out, nil
	case EventAcknowledge:
		switch s.State {
		case models.StateAutoClockedOut:
			out.Session = models.TimeclockSession{
				ID:           s.ID,
				ApprenticeID: s.ApprenticeID,
				EnrollmentID: s.EnrollmentID,
				SiteID:       s.SiteID,
				State:        models.StateIdle,
				ClockInAt:    s.ClockInAt,
				ClockOutAt:   s.ClockOutAt,
				LunchStartAt: s.LunchStartAt,
				LunchEndAt:   s.LunchEndAt,
				HoursWorked:  s.HoursWorked,
				AutoClosed:   true,
				CreatedAt:    s.CreatedAt,
			}
			out.Changed = true
			out.Effects = append(out.Effects, Effect{Kind: EffectAcknowledged})
			return out, nil
		case models.StateIdle:
			return out, nil
		default:
			return out, invalid("nothing to acknowledge")
		}
	case EventLocationCheck:
		return locationCheck(out, ev, p), nil
	case EventGraceExpired:
		if s.State == models.StateOffsiteGrace && ev.Token != "" && ev.Token == deref(s.GraceToken) {
			expire(&out, p)
		}
		return out, nil
	default:
		return out, invalid(fmt.Sprintf("unknown event %q", ev.Kind))
	}
}

func clockIn(out Outcome, ev Event, p Policy) (Outcome, error) {
	s := out.Session
	switch s.State {
	case models.StateIdle:
	case models.StateAutoClockedOut:
		return out, appErrors.ErrAcknowledgementRequired
	default:
		return out, invalid("already clocked in")
	}
	if err := checkFix(&out, ev, p); err != nil {
		return out, err
	}
	fix := ev.Fix
	if !p.Fence.Contains(fix.Lat, fix.Lng) {
		distance := DistanceMeters(p.Fence.Lat, p.Fence.Lng, fix.Lat, fix.Lng)
		out.Effects = append(out.Effects, Effect{
			Kind:      EffectAlert,
			AlertType: models.AlertGeofenceViolation,
			Message:   fmt.Sprintf("Clock-in attempted %.0fm from site (radius %.0fm).", distance, p.Fence.RadiusM),
		})
		return out, appErrors.Clone(appErrors.ErrOutsideGeofence,
			fmt.Sprintf("you are %.0fm from the site; clock-in requires being within %.0fm", distance, p.Fence.RadiusM))
	}

	at := ev.At
	accuracy := fix.AccuracyMeters
	out.Session = models.TimeclockSession{
		ApprenticeID:            s.ApprenticeID,
		EnrollmentID:            s.EnrollmentID,
		SiteID:                  s.SiteID,
		State:                   models.StateClockedIn,
		ClockInAt:               &at,
		LastKnownAccuracyMeters: &accuracy,
	}
	out.Changed = true
	out.Effects = append(out.Effects, Effect{Kind: EffectSessionOpened})
	return out, nil
}

func locationCheck(out Outcome, ev Event, p Policy) Outcome {
	s := out.Session
	fix := ev.Fix
	if fix == nil || fix.Err != nil {
		return out
	}
	if usable(fix, p) {
		switch s.State {
		case models.StateClockedIn:
			if !p.Fence.Contains(fix.Lat, fix.Lng) {
				at := ev.At
				deadline := at.Add(p.GraceWindow)
				token := newToken(p)
				out.Session.State = models.StateOffsiteGrace
				out.Session.OffsiteSince = &at
				out.Session.GraceDeadline = &deadline
				out.Session.GraceToken = &token
				out.Effects = append(out.Effects, Effect{Kind: EffectStartGraceTimer, Token: token, Deadline: deadline})
			}
		case models.StateOffsiteGrace:
			if p.Fence.Contains(fix.Lat, fix.Lng) {
				out.Effects = append(out.Effects, Effect{Kind: EffectCancelGraceTimer, Token: deref(s.GraceToken)})
				out.Session.State = models.StateClockedIn
				out.Session.OffsiteSince = nil
				out.Session.GraceDeadline = nil
				out.Session.GraceToken = nil
			}
		}
	}
	switch s.State {
	case models.StateClockedIn, models.StateOnLunch, models.StateOffsiteGrace:
		if !math.IsNaN(fix.AccuracyMeters) && !math.IsInf(fix.AccuracyMeters, 0) {
			accuracy := fix.AccuracyMeters
			out.Session.LastKnownAccuracyMeters = &accuracy
		}
		out.Changed = true
	}
	return out
}

// retry handles events while the session is in the error state. Only the
// action that failed may be retried; it is evaluated against the state the
// session was in when it failed.
func retry(out Outcome, ev Event, p Policy) (Outcome, error) {
	s := out.Session
	switch ev.Kind {
	case EventLocationCheck, EventGraceExpired:
		if s.ErrorFrom != nil && *s.ErrorFrom == models.StateOffsiteGrace && ev.Kind == EventGraceExpired &&
			ev.Token != "" && ev.Token == deref(s.GraceToken) {
			expire(&out, p)
		}
		return out, nil
	}
	if s.FailedAction == nil || EventKind(*s.FailedAction) != ev.Kind {
		failed := "the failed action"
		if s.FailedAction != nil {
			failed = string(*s.FailedAction)
		}
		return out, appErrors.Clone(appErrors.ErrRetryMismatch, fmt.Sprintf("retry %s first", failed))
	}

	restored := s
	if s.ErrorFrom != nil {
		restored.State = *s.ErrorFrom
	} else {
		restored.State = models.StateIdle
	}
	restored.ErrorMessage = nil
	restored.ErrorFrom = nil
	restored.FailedAction = nil

	// Either the retry succeeds, fails for a new reason from the restored
	// state, or lands back in error with the original pre-error state.
	res, err := apply(Outcome{Session: restored, Effects: out.Effects}, ev, p)
	res.Changed = true
	return res, err
}

func checkFix(out *Outcome, ev Event, p Policy) error {
	fix := ev.Fix
	var cause string
	switch {
	case fix == nil:
		cause = "location unavailable"
	case fix.Err != nil:
		cause = fmt.Sprintf("location unavailable: %v", fix.Err)
	case !usable(fix, p):
		cause = fmt.Sprintf("location accuracy %.0fm is worse than the %.0fm limit", fix.AccuracyMeters, p.MaxAccuracyMeters)
	default:
		return nil
	}

	s := out.Session
	from := s.State
	action := models.TimeclockAction(ev.Kind)
	out.Session.State = models.StateError
	out.Session.ErrorMessage = &cause
	out.Session.ErrorFrom = &from
	out.Session.FailedAction = &action
	if fix != nil && fix.Err == nil && !math.IsNaN(fix.AccuracyMeters) {
		accuracy := fix.AccuracyMeters
		out.Session.LastKnownAccuracyMeters = &accuracy
	}
	out.Changed = true
	return appErrors.Clone(appErrors.ErrLocationUnavailable, cause)
}

func usable(fix *Fix, p Policy) bool {
	if fix == nil || fix.Err != nil {
		return false
	}
	for _, v := range []float64{fix.Lat, fix.Lng, fix.AccuracyMeters} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return fix.AccuracyMeters >= 0 && fix.AccuracyMeters <= p.MaxAccuracyMeters
}

func deadlinePassed(s models.TimeclockSession, at time.Time) bool {
	graceState := s.State == models.StateOffsiteGrace ||
		(s.State == models.StateError && s.ErrorFrom != nil && *s.ErrorFrom == models.StateOffsiteGrace)
	return graceState && s.GraceDeadline != nil && !at.Before(*s.GraceDeadline)
}

// expire performs the automatic clock-out. The session is closed at the moment
// the apprentice left the site.
func expire(out *Outcome, p Policy) {
	s := out.Session
	closedAt := s.ClockInAt
	if s.OffsiteSince != nil {
		closedAt = s.OffsiteSince
	}
	if closedAt == nil {
		return
	}
	out.Effects = append(out.Effects, Effect{Kind: EffectCancelGraceTimer, Token: deref(s.GraceToken)})
	out.Session.ErrorMessage = nil
	out.Session.ErrorFrom = nil
	out.Session.FailedAction = nil
	closeSession(out, *closedAt, true, p)
	out.Effects = append(out.Effects, Effect{
		Kind:      EffectAlert,
		AlertType: models.AlertAutoClockOut,
		Message:   fmt.Sprintf("Automatically clocked out after leaving the site for %d minutes.", int(p.GraceWindow.Minutes())),
	})
}

func closeSession(out *Outcome, at time.Time, auto bool, p Policy) {
	s := &out.Session
	clockOut := at
	s.ClockOutAt = &clockOut
	s.OffsiteSince = nil
	s.GraceDeadline = nil
	s.GraceToken = nil
	s.HoursWorked = HoursWorked(*s)
	s.AutoClosed = auto
	if auto {
		s.State = models.StateAutoClockedOut
	} else {
		s.State = models.StateIdle
	}
	out.Changed = true
	out.Effects = append(out.Effects, Effect{Kind: EffectSessionClosed, Hours: s.HoursWorked, Auto: auto})

	if s.ClockInAt != nil && s.LunchStartAt == nil && clockOut.Sub(*s.ClockInAt) >= p.MissingLunchAfter {
		out.Effects = append(out.Effects, Effect{
			Kind:      EffectAlert,
			AlertType: models.AlertMissingLunch,
			Message:   fmt.Sprintf("Shift of %.1f hours closed without a lunch break.", clockOut.Sub(*s.ClockInAt).Hours()),
		})
	}
}

// HoursWorked is elapsed time between clock-in and clock-out minus a completed
// lunch, in hours rounded to two decimals.
func HoursWorked(s models.TimeclockSession) float64 {
	if s.ClockInAt == nil || s.ClockOutAt == nil {
		return 0
	}
	worked := s.ClockOutAt.Sub(*s.ClockInAt)
	if s.LunchStartAt != nil && s.LunchEndAt != nil {
		worked -= s.LunchEndAt.Sub(*s.LunchStartAt)
	}
	if worked < 0 {
		return 0
	}
	return math.Round(worked.Hours()*100) / 100
}

func invalid(message string) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, message)
}

func newToken(p Policy) string {
	if p.NewToken != nil {
		return p.NewToken()
	}
	return uuid.NewString()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
