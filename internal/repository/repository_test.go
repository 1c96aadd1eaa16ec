package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/database"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

// newSQLiteDB returns a migrated in-memory database holding one IN enrollment, enr-1.
func newSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = database.Migrate(ctx, db)
	require.NoError(t, err)

	started := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	require.NoError(t, NewEnrollmentRepository(db).Create(ctx, &models.ApprenticeEnrollment{
		ID:               "enr-1",
		ApprenticeID:     "app-1",
		JurisdictionCode: "IN",
		Status:           models.EnrollmentStatusActive,
		StartedAt:        started,
	}))
	return db
}
