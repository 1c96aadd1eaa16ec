package models

import "time"

// SessionState is a timeclock state.
type SessionState string

// Timeclock states.
const (
	StateIdle           SessionState = "idle"
	StateClockedIn      SessionState = "clocked_in"
	StateOnLunch        SessionState = "on_lunch"
	StateOffsiteGrace   SessionState = "offsite_grace"
	StateAutoClockedOut SessionState = "auto_clocked_out"
	StateError          SessionState = "error"
)

// TimeclockAction names a user-triggered timeclock action.
type TimeclockAction string

// Timeclock actions.
const (
	ActionClockIn     TimeclockAction = "clock_in"
	ActionClockOut    TimeclockAction = "clock_out"
	ActionStartLunch  TimeclockAction = "start_lunch"
	ActionEndLunch    TimeclockAction = "end_lunch"
	ActionAcknowledge TimeclockAction = "acknowledge"
)

// TimeclockSession is one site visit for an apprentice.
type TimeclockSession struct {
	ID                      string           `db:"id" json:"id"`
	ApprenticeID            string           `db:"apprentice_id" json:"apprentice_id"`
	EnrollmentID            string           `db:"enrollment_id" json:"enrollment_id"`
	SiteID                  string           `db:"site_id" json:"site_id"`
	State                   SessionState     `db:"state" json:"state"`
	ClockInAt               *time.Time       `db:"clock_in_at" json:"clock_in_at,omitempty"`
	ClockOutAt              *time.Time       `db:"clock_out_at" json:"clock_out_at,omitempty"`
	LunchStartAt            *time.Time       `db:"lunch_start_at" json:"lunch_start_at,omitempty"`
	LunchEndAt              *time.Time       `db:"lunch_end_at" json:"lunch_end_at,omitempty"`
	OffsiteSince            *time.Time       `db:"offsite_since" json:"offsite_since,omitempty"`
	GraceDeadline           *time.Time       `db:"grace_deadline" json:"grace_deadline,omitempty"`
	GraceToken              *string          `db:"grace_token" json:"-"`
	LastKnownAccuracyMeters *float64         `db:"last_accuracy_m" json:"last_known_accuracy_meters,omitempty"`
	ErrorMessage            *string          `db:"error_message" json:"error_message,omitempty"`
	ErrorFrom               *SessionState    `db:"error_from" json:"error_from,omitempty"`
	FailedAction            *TimeclockAction `db:"failed_action" json:"failed_action,omitempty"`
	HoursWorked             float64          `db:"hours_worked" json:"hours_worked"`
	AutoClosed              bool             `db:"auto_closed" json:"auto_closed"`
	CreatedAt               time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time        `db:"updated_at" json:"updated_at"`
}

// Open reports whether the session still counts as the apprentice's active session.
func (s TimeclockSession) Open() bool {
	switch s.State {
	case StateClockedIn, StateOnLunch, StateOffsiteGrace, StateAutoClockedOut:
		return true
	case StateError:
		return s.ErrorFrom != nil && *s.ErrorFrom != StateIdle
	default:
		return false
	}
}

// AlertType classifies admin alerts raised by the timeclock.
type AlertType string

// Alert types.
const (
	AlertGeofenceViolation AlertType = "geofence_violation"
	AlertExcessiveLunch    AlertType = "excessive_lunch"
	AlertMissingLunch      AlertType = "missing_lunch"
	AlertAutoClockOut      AlertType = "auto_clock_out"
)

// AdminAlert notifies administrators of attendance anomalies.
type AdminAlert struct {
	ID           string    `db:"id" json:"id"`
	AlertType    AlertType `db:"alert_type" json:"alert_type"`
	ApprenticeID string    `db:"apprentice_id" json:"apprentice_id"`
	EnrollmentID *string   `db:"enrollment_id" json:"enrollment_id,omitempty"`
	SessionID    *string   `db:"session_id" json:"session_id,omitempty"`
	SiteID       *string   `db:"site_id" json:"site_id,omitempty"`
	Message      string    `db:"message" json:"message"`
	Details      *string   `db:"details" json:"details,omitempty"`
	Resolved     bool      `db:"resolved" json:"resolved"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
