package dto

import "github.com/noah-isme/apprenticeship-hours-api/internal/models"

// ExportProgressRequest selects the format of a progress report export.
type ExportProgressRequest struct {
	Format models.ReportFormat `json:"format" validate:"required,oneof=csv pdf xlsx"`
}
