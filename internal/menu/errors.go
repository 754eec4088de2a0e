package menu

import (
	"errors"
	"fmt"
)

// ErrNoSnapshot is returned by reads and loads before the first successful
// cycle has published anything.
var ErrNoSnapshot = errors.New("no snapshot published yet")

// AdapterErrorKind classifies why an adapter failed.
type AdapterErrorKind string

// Adapter failure classes. "Hall has no menu today" is never one of these;
// that is a hall status, not an error.
const (
	AdapterErrNetwork AdapterErrorKind = "network"
	AdapterErrParse   AdapterErrorKind = "parse"
	AdapterErrTimeout AdapterErrorKind = "timeout"
)

// AdapterError scopes a fetch or parse failure to a single university.
type AdapterError struct {
	University string
	Kind       AdapterErrorKind
	Err        error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %s: %v", e.University, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError wraps err with the university tag and failure class.
func NewAdapterError(university string, kind AdapterErrorKind, err error) *AdapterError {
	return &AdapterError{University: university, Kind: kind, Err: err}
}

// StoreCorruptionError marks a violated publish invariant. It indicates a
// programming error and halts the scheduler.
type StoreCorruptionError struct {
	Reason string
}

func (e *StoreCorruptionError) Error() string {
	return "snapshot store corruption: " + e.Reason
}

// IsStoreCorruption reports whether err is a StoreCorruptionError.
func IsStoreCorruption(err error) bool {
	var sc *StoreCorruptionError
	return errors.As(err, &sc)
}
