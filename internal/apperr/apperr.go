package apperr

import (
	"errors"
	"fmt"
)

// Sentinel categories. Services wrap these with fmt.Errorf("%w: ...") so
// handlers can map them onto HTTP statuses with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOwnership         = errors.New("ownership error")
	ErrAlreadyRunning    = errors.New("processor already running")
	ErrNoCandidates      = errors.New("no selection candidates")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func InvalidTransition(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func Ownership(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOwnership, fmt.Sprintf(format, args...))
}

// PublishError classifies a single account's publish failure. Retryable
// failures re-queue the item with backoff, fatal ones finish it.
type PublishError struct {
	AccountID int64
	Retryable bool
	Err       error
}

func (e *PublishError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("account %d: %s publish error: %v", e.AccountID, kind, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

func Retryable(accountID int64, err error) error {
	return &PublishError{AccountID: accountID, Retryable: true, Err: err}
}

func Fatal(accountID int64, err error) error {
	return &PublishError{AccountID: accountID, Retryable: false, Err: err}
}

// IsRetryable reports whether err is a publish error that is safe to retry.
func IsRetryable(err error) bool {
	var pe *PublishError
	return errors.As(err, &pe) && pe.Retryable
}
