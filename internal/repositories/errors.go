package repositories

import (
	"errors"
	"fmt"
)

// ErrPreparedOrderPaid marks an insert rejected because another payment already turned the same
// prepared order into an order. It is wrapped in a KindConflict StoreError.
var ErrPreparedOrderPaid = errors.New("prepared order already paid")

// Kind classifies a StoreError.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindUnavailable
)

// StoreError is the RepositoryError implementation shared by the SQL and Redis stores.
type StoreError struct {
	Op   string
	Kind Kind
	Err  error
}

var _ RepositoryError = (*StoreError)(nil)

// NewStoreError wraps err for op.
func NewStoreError(op string, kind Kind, err error) *StoreError {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return &StoreError{Op: op, Kind: kind, Err: err}
}

// NotFound builds a KindNotFound error.
func NotFound(op, format string, args ...any) *StoreError {
	return NewStoreError(op, KindNotFound, fmt.Errorf(format, args...))
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap exposes the underlying error.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StoreError) IsNotFound() bool    { return e != nil && e.Kind == KindNotFound }
func (e *StoreError) IsConflict() bool    { return e != nil && e.Kind == KindConflict }
func (e *StoreError) IsUnavailable() bool { return e != nil && e.Kind == KindUnavailable }

// IsNotFound reports whether err carries a not-found classification.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err carries a conflict classification.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err carries an unavailable classification.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}
