package rules

import (
	"fmt"
	"math"
	"strconv"
)

// Eligibility reasons that callers may match on.
const (
	ReasonRulesNotFound  = "rules not found"
	ReasonPendingReviews = "pending reviews must clear first"
	ReasonEligible       = "eligible to sit the licensing exam"
	ReasonExamNotNeeded  = "hour requirement met; exam not required"
)

// Eligibility is the outcome of an exam eligibility check.
type Eligibility struct {
	Eligible       bool    `json:"eligible"`
	Reason         string  `json:"reason"`
	Shortfall      float64 `json:"shortfall,omitempty"`
	RuleSetID      string  `json:"rule_set_id,omitempty"`
	RequiredHours  int     `json:"required_hours,omitempty"`
	ExamIsRequired bool    `json:"exam_required"`
}

// CheckExamEligibility decides whether an apprentice may sit the licensing exam.
func CheckExamEligibility(reg Lookup, jurisdictionCode string, totalAcceptedHours float64, hasPendingReviews bool) Eligibility {
	rules, ok := lookup(reg, jurisdictionCode)
	if !ok {
		return Eligibility{Reason: ReasonRulesNotFound}
	}

	out := Eligibility{
		RuleSetID:      rules.RuleSetID,
		RequiredHours:  rules.ExamEligibilityHours,
		ExamIsRequired: rules.ExamRequired,
	}
	if hasPendingReviews {
		out.Reason = ReasonPendingReviews
		return out
	}

	threshold := float64(rules.ExamEligibilityHours)
	if threshold <= 0 {
		threshold = float64(rules.RequiredTotalHours)
		out.RequiredHours = rules.RequiredTotalHours
	}
	if totalAcceptedHours < threshold {
		// Any real shortfall shows as at least 0.01 hours.
		out.Shortfall = math.Max(0.01, Round2(threshold-totalAcceptedHours))
		out.Reason = fmt.Sprintf("%s more hour(s) required.", FormatHours(out.Shortfall))
		return out
	}

	out.Eligible = true
	out.Reason = ReasonEligible
	if !rules.ExamRequired {
		out.Reason = ReasonExamNotNeeded
	}
	return out
}

// Remaining is the consumer view of progress toward the required total.
type Remaining struct {
	Remaining          float64 `json:"remaining"`
	TotalRequired      int     `json:"total_required"`
	PercentageComplete float64 `json:"percentage_complete"`
	RuleSetID          string  `json:"rule_set_id"`
}

// CalculateRemainingHours reports hours left for the jurisdiction's required total.
// The boolean is false when the jurisdiction is unknown.
func CalculateRemainingHours(reg Lookup, jurisdictionCode string, totalAcceptedHours float64) (Remaining, bool) {
	rules, ok := lookup(reg, jurisdictionCode)
	if !ok {
		return Remaining{}, false
	}
	required := float64(rules.RequiredTotalHours)
	total := math.Max(0, totalAcceptedHours)
	return Remaining{
		Remaining:          Round2(math.Max(0, required-total)),
		TotalRequired:      rules.RequiredTotalHours,
		PercentageComplete: Percentage(total, required),
		RuleSetID:          rules.RuleSetID,
	}, true
}

// Percentage is min(100, part/whole*100) rounded to two decimals.
func Percentage(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return Round2(math.Min(100, part/whole*100))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatHours renders hours without trailing zeros, e.g. 1, 7.5, 12.25.
func FormatHours(v float64) string {
	return strconv.FormatFloat(Round2(v), 'f', -1, 64)
}
