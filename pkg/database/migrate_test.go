package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/apprenticeship-hours-api/pkg/config"
)

func TestMigrateAppliesPendingVersions(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM schema_migrations WHERE version = ?")).
		WithArgs("0001_init").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS partner_sites").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)")).
		WithArgs("0001_init", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM schema_migrations WHERE version = ?")).
		WithArgs("0002_unique_corrections").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS uq_hour_entries_supersedes").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)")).
		WithArgs("0002_unique_corrections", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := Migrate(context.Background(), sqlxDB)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init", "0002_unique_corrections"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateSkipsAppliedVersions(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM schema_migrations WHERE version = ?")).
		WithArgs("0001_init").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM schema_migrations WHERE version = ?")).
		WithArgs("0002_unique_corrections").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	applied, err := Migrate(context.Background(), sqlxDB)
	require.NoError(t, err)
	assert.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(configFor("mysql"))
	require.Error(t, err)
}

func configFor(driver string) config.DatabaseConfig {
	return config.DatabaseConfig{Driver: driver}
}
