package repository

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// ErrAlreadySuperseded is returned when a correction targets an entry that
// another correction already replaced.
var ErrAlreadySuperseded = errors.New("hour entry already superseded")

// ErrClaimDecided is returned when a transfer claim is no longer pending review.
var ErrClaimDecided = errors.New("transfer claim already decided")

// isUniqueViolation recognises unique-key failures from Postgres and SQLite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
