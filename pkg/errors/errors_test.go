package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesOnCode(t *testing.T) {
	clone := Clone(ErrOutsideGeofence, "412m from site")
	wrapped := fmt.Errorf("clock in: %w", clone)

	assert.True(t, errors.Is(wrapped, ErrOutsideGeofence))
	assert.False(t, errors.Is(wrapped, ErrLocationUnavailable))
	assert.Equal(t, "location is outside the partner site geofence", ErrOutsideGeofence.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	assert.Nil(t, FromError(nil))

	got := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.Status)

	got = FromError(fmt.Errorf("ctx: %w", ErrRetryMismatch))
	assert.Same(t, ErrRetryMismatch, got)
}

type claimInput struct {
	JurisdictionCode string  `validate:"required"`
	HoursClaimed     float64 `validate:"gte=0"`
}

func TestValidationListsFields(t *testing.T) {
	err := validator.New().Struct(claimInput{HoursClaimed: -1})
	require.Error(t, err)

	got := Validation(err)
	assert.True(t, errors.Is(got, ErrValidation))
	assert.Equal(t, http.StatusBadRequest, got.Status)
	assert.Equal(t, map[string]string{
		"jurisdiction_code": "required",
		"hours_claimed":     "gte=0",
	}, got.Details)
	assert.Equal(t, "invalid jurisdiction_code, hours_claimed", got.Message)
}

func TestValidationWithPlainError(t *testing.T) {
	got := Validation(errors.New("start date after end date"))
	assert.Equal(t, "start date after end date", got.Message)
	assert.Nil(t, got.Details)
}

func TestCloneCopiesDetails(t *testing.T) {
	orig := &Error{Code: "X", Details: map[string]string{"a": "required"}}
	clone := Clone(orig, "")
	clone.Details["a"] = "changed"
	assert.Equal(t, "required", orig.Details["a"])
}
