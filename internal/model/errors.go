package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by explicit lookups of unknown ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalidImport is returned when an import payload is rejected.
	// Nothing is mutated when it is returned.
	ErrInvalidImport = errors.New("invalid import")

	// ErrStaleAssociation marks a tab-node link whose tab no longer exists.
	// It is healed internally and never returned to callers.
	ErrStaleAssociation = errors.New("stale tab association")
)

// PersistenceError reports a failed storage read or write. The in-memory
// state that triggered the write is kept; a later save carries it.
type PersistenceError struct {
	Op  string // "load" or "save"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is or wraps a *PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// NotFoundf returns an error wrapping ErrNotFound with a formatted subject.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// InvalidImportf returns an error wrapping ErrInvalidImport.
func InvalidImportf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidImport, fmt.Sprintf(format, args...))
}
