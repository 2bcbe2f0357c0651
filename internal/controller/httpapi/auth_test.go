package httpapi

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&service.ValidationError{Field: "date", Reason: "bad"}, http.StatusBadRequest},
		{service.ErrRoleNotPermitted, http.StatusForbidden},
		{service.ErrOnboardingIncomplete, http.StatusForbidden},
		{service.ErrSlotNotAvailable, http.StatusNotFound},
		{service.ErrAdvisorNotBookable, http.StatusBadRequest},
		{service.ErrTooSoon, http.StatusBadRequest},
		{service.ErrDailyLimitExceeded, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", service.ErrSlotAlreadyBooked), http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}

func TestParseToken(t *testing.T) {
	secret := []byte("s3cret")
	now := time.Now()

	token, err := IssueToken(secret, 42, time.Hour, now)
	require.NoError(t, err)
	id, err := parseToken(secret, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = parseToken(secret, token)
	assert.ErrorIs(t, err, errNoToken)

	_, err = parseToken([]byte("other"), "Bearer "+token)
	assert.Error(t, err)

	expired, err := IssueToken(secret, 42, time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = parseToken(secret, "Bearer "+expired)
	assert.Error(t, err)

	anonymous, err := IssueToken(secret, 0, time.Hour, now)
	require.NoError(t, err)
	_, err = parseToken(secret, "Bearer "+anonymous)
	assert.Error(t, err)
}
