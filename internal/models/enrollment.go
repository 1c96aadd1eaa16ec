package models

import "time"

// EnrollmentStatus represents the lifecycle of an apprenticeship enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// ApprenticeEnrollment ties an apprentice to a jurisdiction's program and a host site.
type ApprenticeEnrollment struct {
	ID               string           `db:"id" json:"id"`
	ApprenticeID     string           `db:"apprentice_id" json:"apprentice_id"`
	JurisdictionCode string           `db:"jurisdiction_code" json:"jurisdiction_code"`
	SiteID           *string          `db:"site_id" json:"site_id,omitempty"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	StartedAt        time.Time        `db:"started_at" json:"started_at"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// PartnerSite is a host shop with a circular geofence.
type PartnerSite struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CenterLat float64   `db:"center_lat" json:"center_lat"`
	CenterLng float64   `db:"center_lng" json:"center_lng"`
	RadiusM   float64   `db:"radius_m" json:"radius_m"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
