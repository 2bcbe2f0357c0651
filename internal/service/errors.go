package service

import (
	"errors"
	"fmt"
)

// Client-facing rejections. Every one of them leaves state unchanged.
var (
	ErrOnboardingIncomplete = errors.New("student has not completed onboarding")
	ErrSlotNotAvailable     = errors.New("slot is not available")
	ErrAdvisorNotBookable   = errors.New("advisor is not accepting bookings")
	ErrTooSoon              = errors.New("slot starts too soon")
	ErrDailyLimitExceeded   = errors.New("student already has a reservation on this date")
	ErrSlotAlreadyBooked    = errors.New("slot is already booked")
	ErrRoleNotPermitted     = errors.New("role not permitted for this operation")
	ErrUserNotFound         = errors.New("user not found")
)

// ValidationError reports malformed input, caught before any transaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
