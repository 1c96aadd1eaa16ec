package dto

// CorrectHoursRequest replaces an entry with a correcting entry.
type CorrectHoursRequest struct {
	Hours    float64 `json:"hours" validate:"gt=0,lte=24"`
	Category string  `json:"category,omitempty" validate:"omitempty,oneof=RTI OJT"`
	Reason   string  `json:"reason" validate:"required,max=500"`
}
