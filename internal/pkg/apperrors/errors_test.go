package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/GoPolymarket/fundgate/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Sentinels(t *testing.T) {
	cases := []struct {
		err    error
		typ    ErrorType
		status int
	}{
		{model.ErrInvalidAddress, ErrInvalidRequest, http.StatusBadRequest},
		{model.ErrAddressMismatch, ErrInvalidRequest, http.StatusBadRequest},
		{model.ErrSignatureRequired, ErrAuthFailed, http.StatusUnauthorized},
		{model.ErrSignatureInvalid, ErrSignatureInvalid, http.StatusUnauthorized},
		{fmt.Errorf("lookup: %w", model.ErrFundNotFound), ErrNotFound, http.StatusNotFound},
		{model.ErrFundExists, ErrConflict, http.StatusConflict},
		{model.ErrRevisionConflict, ErrConflict, http.StatusConflict},
		{errors.New("disk on fire"), ErrInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got := Wrap(tc.err)
		assert.Equal(t, tc.typ, got.Type, tc.err.Error())
		assert.Equal(t, tc.status, got.HTTPStatus, tc.err.Error())
		assert.ErrorIs(t, got, tc.err)
	}
	assert.Nil(t, Wrap(nil))
}

func TestWrap_ValidationCarriesFieldReport(t *testing.T) {
	_, err := validate.JSON([]byte(`{"fundName":"x"}`))
	require.Error(t, err)

	got := Wrap(err)
	assert.Equal(t, ErrValidation, got.Type)
	assert.Equal(t, http.StatusUnprocessableEntity, got.HTTPStatus)
	details, ok := got.Details.([]validate.FieldError)
	require.True(t, ok)
	assert.NotEmpty(t, details)
}

func TestWrap_KeepsAppError(t *testing.T) {
	orig := New(ErrRateLimited, "slow down", nil)
	assert.Same(t, orig, Wrap(fmt.Errorf("wrapped: %w", orig)))
	assert.Equal(t, http.StatusTooManyRequests, orig.HTTPStatus)
	assert.NotEmpty(t, orig.Suggestion)
}
