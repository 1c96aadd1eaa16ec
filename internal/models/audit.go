package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionTransferEvaluated = "TRANSFER_EVALUATED"
	AuditActionTransferSubmitted = "TRANSFER_SUBMITTED"
	AuditActionTransferResolved  = "TRANSFER_RESOLVED"
	AuditActionHoursVerified     = "HOURS_VERIFIED"
	AuditActionHoursCorrected    = "HOURS_CORRECTED"
	AuditActionSessionClosed     = "TIMECLOCK_SESSION_CLOSED"
	AuditActionAutoClockOut      = "TIMECLOCK_AUTO_CLOCK_OUT"
	AuditActionAutoClockOutAck   = "TIMECLOCK_AUTO_CLOCK_OUT_ACK"
	AuditActionReportExported    = "PROGRESS_REPORT_EXPORTED"
)

// Audit resources.
const (
	AuditResourceTransferClaim    = "transfer_claim"
	AuditResourceEvaluation       = "transfer_evaluation"
	AuditResourceHourEntry        = "hour_entry"
	AuditResourceTimeclockSession = "timeclock_session"
	AuditResourceEnrollment       = "enrollment"
)

// SystemActor is recorded when no human triggered the event.
const SystemActor = "system"

// AuditLog represents an append-only audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  *string   `db:"old_values" json:"old_values,omitempty"`
	NewValues  *string   `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
