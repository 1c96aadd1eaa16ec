package models

import "time"

// SourceType identifies where claimed hours were earned.
type SourceType string

// Recognised transfer sources.
const (
	SourceHostSite            SourceType = "host_site"
	SourceInStateSchool       SourceType = "in_state_barber_school"
	SourceOutOfStateSchool    SourceType = "out_of_state_school"
	SourceOutOfStateLicense   SourceType = "out_of_state_license"
	SourceContinuingEducation SourceType = "continuing_education"
)

// SourceTypes lists every known source type in canonical order.
var SourceTypes = []SourceType{
	SourceHostSite,
	SourceInStateSchool,
	SourceOutOfStateSchool,
	SourceOutOfStateLicense,
	SourceContinuingEducation,
}

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	for _, known := range SourceTypes {
		if s == known {
			return true
		}
	}
	return false
}

// CategoryRequirement constrains hours for a single training category.
type CategoryRequirement struct {
	MinHours         int `json:"min_hours" yaml:"min_hours"`
	MaxTransferHours int `json:"max_transfer_hours" yaml:"max_transfer_hours"`
}

// JurisdictionRules is one immutable version of a jurisdiction's licensure rules.
type JurisdictionRules struct {
	RuleSetID                                string                         `json:"rule_set_id" yaml:"rule_set_id"`
	JurisdictionCode                         string                         `json:"jurisdiction_code" yaml:"jurisdiction_code"`
	Name                                     string                         `json:"name,omitempty" yaml:"name"`
	Version                                  int                            `json:"version" yaml:"version"`
	EffectiveDate                            time.Time                      `json:"effective_date" yaml:"-"`
	RequiredTotalHours                       int                            `json:"required_total_hours" yaml:"required_total_hours"`
	MaxTransferHours                         int                            `json:"max_transfer_hours" yaml:"max_transfer_hours"`
	MinInStatePercentage                     float64                        `json:"min_in_state_percentage" yaml:"min_in_state_percentage"`
	AcceptedSourceTypes                      []SourceType                   `json:"accepted_source_types" yaml:"accepted_source_types"`
	ContinuingEducationCountsTowardLicensure bool                           `json:"continuing_education_counts_toward_licensure" yaml:"continuing_education_counts_toward_licensure"`
	ExamRequired                             bool                           `json:"exam_required" yaml:"exam_required"`
	ExamEligibilityHours                     int                            `json:"exam_eligibility_hours" yaml:"exam_eligibility_hours"`
	CategoryRequirements                     map[string]CategoryRequirement `json:"category_requirements,omitempty" yaml:"category_requirements"`
}

// Accepts reports whether the source type is accepted by this rule set.
func (r JurisdictionRules) Accepts(source SourceType) bool {
	for _, accepted := range r.AcceptedSourceTypes {
		if accepted == source {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate shared registry state.
func (r JurisdictionRules) Clone() JurisdictionRules {
	out := r
	out.AcceptedSourceTypes = append([]SourceType(nil), r.AcceptedSourceTypes...)
	if r.CategoryRequirements != nil {
		out.CategoryRequirements = make(map[string]CategoryRequirement, len(r.CategoryRequirements))
		for k, v := range r.CategoryRequirements {
			out.CategoryRequirements[k] = v
		}
	}
	return out
}
