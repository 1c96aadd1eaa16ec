package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
)

var hourEntryRowColumns = []string{"id", "enrollment_id", "hours", "category", "logged_date", "source", "verified", "verified_by",
	"verified_at", "supersedes_id", "timeclock_session_id", "note", "created_at"}

func TestHourEntryRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewHourEntryRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(hourEntryRowColumns).
		AddRow("h-1", "enr-1", 8.0, "OJT", now, "timeclock", true, "sup-1", now, nil, "sess-1", nil, now).
		AddRow("h-2", "enr-1", 3.5, "RTI", now, "manual", false, nil, nil, nil, nil, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE enrollment_id = ? ORDER BY logged_date ASC")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	entries, err := repo.ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Verified)
	assert.Equal(t, models.CategoryRTI, entries[1].Category)
	assert.Nil(t, entries[1].VerifiedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHourEntryRepositoryVerifyIsSingleUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewHourEntryRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE hour_entries SET verified = ?, verified_by = ?, verified_at = ? WHERE id = ?")).
		WithArgs(true, "sup-1", at, "h-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Verify(context.Background(), "h-1", "sup-1", at))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE hour_entries SET verified")).
		WithArgs(true, "sup-1", at, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Verify(context.Background(), "missing", "sup-1", at), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHourEntryRepositoryCreateAndSuperseded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewHourEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO hour_entries")).WillReturnResult(sqlmock.NewResult(1, 1))
	entry := &models.HourEntry{EnrollmentID: "enr-1", Hours: 4, Category: models.CategoryOJT, LoggedDate: time.Now()}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, models.HourSourceManual, entry.Source)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM hour_entries WHERE supersedes_id = ?")).
		WithArgs("h-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	superseded, err := repo.IsSuperseded(context.Background(), "h-1")
	require.NoError(t, err)
	assert.True(t, superseded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHourEntryRepositoryAllowsOneCorrectionPerEntry(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewHourEntryRepository(db)
	ctx := context.Background()

	logged := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	original := &models.HourEntry{EnrollmentID: "enr-1", Hours: 8, Category: models.CategoryOJT, LoggedDate: logged}
	require.NoError(t, repo.Create(ctx, original))

	const writers = 4
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(ctx, &models.HourEntry{
				EnrollmentID: "enr-1",
				Hours:        6,
				Category:     models.CategoryOJT,
				LoggedDate:   logged,
				Source:       models.HourSourceCorrection,
				SupersedesID: &original.ID,
			})
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadySuperseded):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, conflicts)

	entries, err := repo.ListByEnrollment(ctx, "enr-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: hour_entries.supersedes_id (2067)")))
	assert.False(t, isUniqueViolation(sql.ErrConnDone))
	assert.False(t, isUniqueViolation(nil))
}
