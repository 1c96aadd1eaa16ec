package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/storage"
)

type hourListerStub struct {
	entries []models.HourEntry
}

func (h hourListerStub) List(ctx context.Context, enrollmentID string, actor *models.JWTClaims) ([]models.HourEntry, error) {
	return h.entries, nil
}

func newReportServiceForTest(t *testing.T, progress progressSource) (*ReportService, *auditSpy, *storage.LocalStorage) {
	t.Helper()
	exporter, store := newExportServiceForTest(t)
	audit := &auditSpy{}
	svc := NewReportService(progress, hourListerStub{}, exporter, audit, nil, nil, ReportServiceConfig{})
	return svc, audit, store
}

func TestReportServiceExportAndDownload(t *testing.T) {
	svc, audit, _ := newReportServiceForTest(t, progressSourceStub{summary: sampleSummary()})

	report, err := svc.Export(context.Background(), "enr-1", dto.ExportProgressRequest{Format: models.ReportFormatCSV}, supervisorClaims)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatCSV, report.Format)
	assert.Equal(t, []string{models.AuditActionReportExported}, audit.actions())

	token := report.DownloadURL[strings.Index(report.DownloadURL, "token=")+len("token="):]
	download, err := svc.ResolveDownload(token)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", download.ContentType)
	assert.Equal(t, filepath.Base(report.FilePath), download.Filename)
	assert.Contains(t, string(download.Data), "IN-BARBER-2023-07")
}

func TestReportServiceExportValidation(t *testing.T) {
	svc, _, _ := newReportServiceForTest(t, progressSourceStub{summary: sampleSummary()})

	_, err := svc.Export(context.Background(), "enr-1", dto.ExportProgressRequest{Format: "docx"}, supervisorClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	svc, _, _ = newReportServiceForTest(t, progressSourceStub{err: appErrors.ErrForbidden})
	_, err = svc.Export(context.Background(), "enr-1", dto.ExportProgressRequest{Format: models.ReportFormatPDF}, apprenticeClaims)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestReportServiceResolveDownloadErrors(t *testing.T) {
	svc, _, store := newReportServiceForTest(t, progressSourceStub{summary: sampleSummary()})

	_, err := svc.ResolveDownload("garbage")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	report, err := svc.Export(context.Background(), "enr-1", dto.ExportProgressRequest{Format: models.ReportFormatCSV}, adminClaims)
	require.NoError(t, err)
	token := report.DownloadURL[strings.Index(report.DownloadURL, "token=")+len("token="):]

	require.NoError(t, store.Delete(report.FilePath))
	_, err = svc.ResolveDownload(token)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
