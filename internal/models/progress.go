package models

import "time"

// CategoryProgress summarises hours for one training category.
type CategoryProgress struct {
	Category      HourCategory `json:"category"`
	VerifiedHours float64      `json:"verified_hours"`
	PendingHours  float64      `json:"pending_hours"`
	MinHours      int          `json:"min_hours,omitempty"`
	Met           bool         `json:"met"`
}

// Milestone marks a fraction of the required hours.
type Milestone struct {
	Percent   int        `json:"percent"`
	Hours     float64    `json:"hours"`
	Reached   bool       `json:"reached"`
	ReachedOn *time.Time `json:"reached_on,omitempty"`
}

// WeeklyHours holds verified hours logged in one ISO week.
type WeeklyHours struct {
	Week  string  `json:"week"`
	Hours float64 `json:"hours"`
}

// LedgerStanding is an enrollment's exact credited total, read straight from
// the ledger. Eligibility is decided on it; summaries only round it for display.
type LedgerStanding struct {
	EnrollmentID      string
	JurisdictionCode  string
	EffectiveHours    float64
	HasPendingReviews bool
}

// ApprenticeProgressSummary is derived on demand from hour entries and transfers.
type ApprenticeProgressSummary struct {
	EnrollmentID            string             `json:"enrollment_id"`
	JurisdictionCode        string             `json:"jurisdiction_code"`
	RuleSetID               string             `json:"rule_set_id"`
	VerifiedTotalHours      float64            `json:"verified_total_hours"`
	PendingTotalHours       float64            `json:"pending_total_hours"`
	TransferHours           float64            `json:"transfer_hours"`
	EffectiveTotalHours     float64            `json:"effective_total_hours"`
	RequiredHours           int                `json:"required_hours"`
	RemainingHours          float64            `json:"remaining_hours"`
	ProgressPercentage      float64            `json:"progress_percentage"`
	ReadyForExam            bool               `json:"ready_for_exam"`
	ExamReason              string             `json:"exam_reason"`
	HasPendingReviews       bool               `json:"has_pending_reviews"`
	CategoryBreakdown       []CategoryProgress `json:"category_breakdown"`
	Milestones              []Milestone        `json:"milestones"`
	WeeklyHours             []WeeklyHours      `json:"weekly_hours"`
	AverageWeeklyHours      float64            `json:"average_weekly_hours"`
	ProjectedWeeksRemaining *float64           `json:"projected_weeks_remaining,omitempty"`
	GeneratedAt             time.Time          `json:"generated_at"`
}
