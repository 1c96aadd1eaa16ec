package dto

// EligibilityRequest asks whether an apprentice may sit the exam.
type EligibilityRequest struct {
	JurisdictionCode   string  `json:"jurisdiction_code" validate:"required"`
	TotalAcceptedHours float64 `json:"total_accepted_hours" validate:"gte=0"`
	HasPendingReviews  bool    `json:"has_pending_reviews"`
}

// RemainingHoursRequest asks how many hours are left.
type RemainingHoursRequest struct {
	JurisdictionCode   string  `json:"jurisdiction_code" validate:"required"`
	TotalAcceptedHours float64 `json:"total_accepted_hours" validate:"gte=0"`
}

// RulesSummary lists a jurisdiction's current rule set and fingerprint.
type RulesSummary struct {
	JurisdictionCode string `json:"jurisdiction_code"`
	Name             string `json:"name"`
	RuleSetID        string `json:"rule_set_id"`
	Version          int    `json:"version"`
	EffectiveDate    string `json:"effective_date"`
	RuleHash         string `json:"rule_hash"`
}
