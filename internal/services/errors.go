package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/payments"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

var (
	// ErrValidationFailed indicates the request payload failed validation; never retried.
	ErrValidationFailed = errors.New("checkout: validation failed")
	// ErrProviderRejected indicates the payment provider declined the payment or it did not match the order.
	ErrProviderRejected = errors.New("checkout: provider rejected payment")
	// ErrProviderError indicates the payment provider could not be reached or answered with an error.
	ErrProviderError = errors.New("checkout: provider error")
	// ErrConfirmationFailed indicates a verified payment could not be recorded as an order.
	ErrConfirmationFailed = errors.New("checkout: confirmation failed")
	// ErrNotificationFailed marks a failed notification channel. It is logged, never returned to callers.
	ErrNotificationFailed = errors.New("checkout: notification failed")
	// ErrNotFound indicates the requested order does not exist.
	ErrNotFound = errors.New("checkout: not found")
	// ErrInvalidState indicates the requested change conflicts with the current order state.
	ErrInvalidState = errors.New("checkout: invalid state")
	// ErrUnavailable indicates a backing store could not serve the request.
	ErrUnavailable = errors.New("checkout: unavailable")
)

// ValidationError lists the offending request fields.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := ErrValidationFailed.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(e.Fields) > 0 {
		msg += " (" + strings.Join(e.Fields, ", ") + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

func newValidationError(reason string, fields ...string) error {
	return &ValidationError{Fields: fields, Reason: reason}
}

// ValidationFields returns the field list carried by err, if any.
func ValidationFields(err error) []string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return append([]string(nil), verr.Fields...)
	}
	return nil
}

// ConfirmationError carries the payment identifiers of a verified payment that was not recorded.
// Operators reconcile these manually.
type ConfirmationError struct {
	Provider  string
	Reference string
	Err       error
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("%s: provider=%s reference=%s: %v", ErrConfirmationFailed, e.Provider, e.Reference, e.Err)
}

func (e *ConfirmationError) Unwrap() []error {
	return []error{ErrConfirmationFailed, e.Err}
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}

func translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// RejectionError is a provider rejection that names the method the client should fall back to.
type RejectionError struct {
	Reason   string
	Fallback string
}

func (e *RejectionError) Error() string {
	if e.Fallback == "" {
		return fmt.Sprintf("%s: %s", ErrProviderRejected, e.Reason)
	}
	return fmt.Sprintf("%s: %s (fallback %s)", ErrProviderRejected, e.Reason, e.Fallback)
}

func (e *RejectionError) Unwrap() error { return ErrProviderRejected }

// translatePaymentError maps payments package errors onto the checkout taxonomy.
func translatePaymentError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, payments.ErrPaymentRejected):
		return fmt.Errorf("%w: %v", ErrProviderRejected, err)
	default:
		return fmt.Errorf("%w: %v", ErrProviderError, err)
	}
}
