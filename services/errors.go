package services

import (
	"errors"
	"fmt"
)

var (
	ErrBidNotFound          = errors.New("bid not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrVehicleNotFound      = errors.New("vehicle not found")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrPaymentNotFound      = errors.New("payment not found")
)

// ValidationError is bad input. Shown to the user as is, never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError means the caller may not perform this action on this
// entity.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

func forbidden(format string, args ...interface{}) error {
	return &AuthorizationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidStateError is a transition attempted from the wrong status,
// including a lost race. Retrying only makes sense after re-reading state.
type InvalidStateError struct {
	Entity  string
	Current string
	Message string
}

func (e *InvalidStateError) Error() string {
	if e.Current == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (current status: %s)", e.Message, e.Current)
}

// IsValidation, IsAuthorization and IsInvalidState unwrap err.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsAuthorization(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

// IsNotFound reports whether err wraps one of the not-found sentinels.
func IsNotFound(err error) bool {
	for _, s := range []error{
		ErrBidNotFound, ErrProductNotFound, ErrUserNotFound, ErrNotificationNotFound,
		ErrVehicleNotFound, ErrBookingNotFound, ErrPaymentNotFound,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
