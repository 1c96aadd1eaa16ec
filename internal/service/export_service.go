package service

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/export"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type renderer interface {
	ContentType() string
	Extension() string
	Render(data export.Dataset) ([]byte, error)
}

var entryHeaders = []string{"Date", "Category", "Hours", "Source", "Verified", "Verified By", "Note"}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders progress reports and stores them behind signed links.
type ExportService struct {
	storage   fileStorage
	signer    *storage.SignedURLSigner
	renderers map[models.ReportFormat]renderer
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService with the CSV, PDF and XLSX renderers.
func NewExportService(store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		storage: store,
		signer:  signer,
		renderers: map[models.ReportFormat]renderer{
			models.ReportFormatCSV:  export.NewCSVExporter(),
			models.ReportFormatPDF:  export.NewPDFExporter(),
			models.ReportFormatXLSX: export.NewXLSXExporter(),
		},
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Generate renders the summary in the requested format and stores it.
func (s *ExportService) Generate(reportID string, summary *models.ApprenticeProgressSummary, entries []models.HourEntry, format models.ReportFormat) (*models.ProgressReport, error) {
	if summary == nil {
		return nil, fmt.Errorf("summary nil")
	}
	r, ok := s.renderers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", format)
	}
	payload, err := r.Render(ProgressDataset(summary, entries))
	if err != nil {
		return nil, fmt.Errorf("render %s report: %w", format, err)
	}

	createdAt := s.now()
	filename := fmt.Sprintf("progress_%s_%s.%s", sanitizeFilename(summary.EnrollmentID), createdAt.Format("20060102_150405"), r.Extension())
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(reportID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &models.ProgressReport{
		ID:           reportID,
		EnrollmentID: summary.EnrollmentID,
		Format:       format,
		FilePath:     relPath,
		DownloadURL:  fmt.Sprintf("%s/reports/download?token=%s", prefix, token),
		ExpiresAt:    expiresAt,
		CreatedAt:    createdAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string) (reportID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, false)
}

// Read loads a stored export.
func (s *ExportService) Read(relPath string) ([]byte, error) {
	return s.storage.Read(relPath)
}

// ContentType maps a stored file name to its MIME type.
func (s *ExportService) ContentType(relPath string) string {
	ext := strings.TrimPrefix(filepath.Ext(relPath), ".")
	for _, r := range s.renderers {
		if r.Extension() == ext {
			return r.ContentType()
		}
	}
	return "application/octet-stream"
}

// Cleanup removes files older than ttl, defaulting to the configured ResultTTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// ProgressDataset lays out a summary and its ledger for export.
func ProgressDataset(summary *models.ApprenticeProgressSummary, entries []models.HourEntry) export.Dataset {
	ds := export.Dataset{
		Title:   fmt.Sprintf("Apprenticeship Progress %s (%s)", summary.EnrollmentID, summary.JurisdictionCode),
		Headers: entryHeaders,
		Summary: []export.SummaryLine{
			{Label: "Rule set", Value: summary.RuleSetID},
			{Label: "Required hours", Value: fmt.Sprintf("%d", summary.RequiredHours)},
			{Label: "Verified hours", Value: formatHours(summary.VerifiedTotalHours)},
			{Label: "Pending hours", Value: formatHours(summary.PendingTotalHours)},
			{Label: "Transfer hours", Value: formatHours(summary.TransferHours)},
			{Label: "Effective hours", Value: formatHours(summary.EffectiveTotalHours)},
			{Label: "Remaining hours", Value: formatHours(summary.RemainingHours)},
			{Label: "Progress", Value: fmt.Sprintf("%.2f%%", summary.ProgressPercentage)},
			{Label: "Exam", Value: summary.ExamReason},
		},
	}
	for _, cat := range summary.CategoryBreakdown {
		ds.Summary = append(ds.Summary, export.SummaryLine{
			Label: fmt.Sprintf("%s hours", cat.Category),
			Value: fmt.Sprintf("%s verified, %s pending", formatHours(cat.VerifiedHours), formatHours(cat.PendingHours)),
		})
	}

	sorted := append([]models.HourEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].LoggedDate.Before(sorted[j].LoggedDate) })
	ds.Rows = make([]map[string]string, 0, len(sorted))
	for _, e := range sorted {
		verified := "no"
		if e.Verified {
			verified = "yes"
		}
		ds.Rows = append(ds.Rows, map[string]string{
			"Date":        e.LoggedDate.Format("2006-01-02"),
			"Category":    string(e.Category),
			"Hours":       formatHours(e.Hours),
			"Source":      string(e.Source),
			"Verified":    verified,
			"Verified By": deref(e.VerifiedBy),
			"Note":        deref(e.Note),
		})
	}
	return ds
}

func formatHours(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
