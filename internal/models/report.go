package models

import "time"

// ReportFormat enumerates progress report outputs.
type ReportFormat string

// Supported report formats.
const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatPDF  ReportFormat = "pdf"
	ReportFormatXLSX ReportFormat = "xlsx"
)

// ProgressReport describes a generated export file.
type ProgressReport struct {
	ID           string       `json:"id"`
	EnrollmentID string       `json:"enrollment_id"`
	Format       ReportFormat `json:"format"`
	FilePath     string       `json:"-"`
	DownloadURL  string       `json:"download_url"`
	ExpiresAt    time.Time    `json:"expires_at"`
	CreatedAt    time.Time    `json:"created_at"`
}
