package apperr

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	// ErrInconsistent marks a value that cannot be derived from the data,
	// typically a zero denominator.
	ErrInconsistent = errors.New("inconsistent")
)

// reasonError carries a human readable reason on top of a sentinel.
type reasonError struct {
	kind   error
	reason string
}

func (e *reasonError) Error() string { return e.kind.Error() + ": " + e.reason }
func (e *reasonError) Unwrap() error { return e.kind }

func Invalid(format string, args ...any) error {
	return &reasonError{kind: ErrInvalidInput, reason: fmt.Sprintf(format, args...)}
}

func Inconsistent(format string, args ...any) error {
	return &reasonError{kind: ErrInconsistent, reason: fmt.Sprintf(format, args...)}
}

func NotFound(what string) error {
	return &reasonError{kind: ErrNotFound, reason: what}
}

// Reason returns the reason attached by Invalid, Inconsistent or NotFound,
// or the error text otherwise.
func Reason(err error) string {
	var re *reasonError
	if errors.As(err, &re) {
		return re.reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// FromStore maps gorm errors onto the taxonomy. what names the missing entity.
func FromStore(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound(what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s already exists: %w", what, ErrConflict)
	default:
		return err
	}
}
