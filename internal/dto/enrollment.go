package dto

import "time"

// CreateEnrollmentRequest enrols an apprentice in a jurisdiction's program.
type CreateEnrollmentRequest struct {
	ApprenticeID     string     `json:"apprentice_id" validate:"required"`
	JurisdictionCode string     `json:"jurisdiction_code" validate:"required"`
	SiteID           string     `json:"site_id,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
}

// CreateSiteRequest registers a partner shop and its geofence.
type CreateSiteRequest struct {
	Name      string  `json:"name" validate:"required,max=200"`
	CenterLat float64 `json:"center_lat" validate:"gte=-90,lte=90"`
	CenterLng float64 `json:"center_lng" validate:"gte=-180,lte=180"`
	RadiusM   float64 `json:"radius_m" validate:"gt=0,lte=5000"`
}
