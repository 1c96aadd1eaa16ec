package models

import "time"

// HourCategory separates classroom from practical hours.
type HourCategory string

// Hour categories.
const (
	CategoryRTI HourCategory = "RTI"
	CategoryOJT HourCategory = "OJT"
)

// HourSource records how an entry reached the ledger.
type HourSource string

// Hour entry sources.
const (
	HourSourceManual     HourSource = "manual"
	HourSourceTimeclock  HourSource = "timeclock"
	HourSourceCorrection HourSource = "correction"
)

// HourEntry is one logged block of time for an enrollment. Entries are
// never deleted; corrections append a new entry that supersedes the old one.
type HourEntry struct {
	ID                 string       `db:"id" json:"id"`
	EnrollmentID       string       `db:"enrollment_id" json:"enrollment_id"`
	Hours              float64      `db:"hours" json:"hours"`
	Category           HourCategory `db:"category" json:"category"`
	LoggedDate         time.Time    `db:"logged_date" json:"logged_date"`
	Source             HourSource   `db:"source" json:"source"`
	Verified           bool         `db:"verified" json:"verified"`
	VerifiedBy         *string      `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt         *time.Time   `db:"verified_at" json:"verified_at,omitempty"`
	SupersedesID       *string      `db:"supersedes_id" json:"supersedes_id,omitempty"`
	TimeclockSessionID *string      `db:"timeclock_session_id" json:"timeclock_session_id,omitempty"`
	Note               *string      `db:"note" json:"note,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
}
