package cacheinfra

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when the store cannot be reached. Callers are
	// expected to treat it as a cache miss, not as a defect.
	ErrUnavailable = errors.New("cache: store unavailable")

	// ErrCorruptValue is returned when a stored payload cannot be decoded.
	ErrCorruptValue = errors.New("cache: corrupt value")

	// ErrNotFound is returned by fetch functions to signal that the source of
	// truth has no record for a key.
	ErrNotFound = errors.New("cache: record not found")

	// ErrInvalidResultType is returned when a cached value does not have the
	// type the caller asked for.
	ErrInvalidResultType = errors.New("cache: invalid result type")

	// ErrLockNotHeld is returned when releasing a lock whose token no longer matches.
	ErrLockNotHeld = errors.New("cache: lock not held")
)

// OpError describes a failed store operation.
type OpError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s [%s]: %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
