package fass

import "errors"

var (
	// ErrLockTimeout is returned when the index write lock could not be
	// acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for index lock")

	// ErrRecordNotFound is returned when no record matches a path.
	ErrRecordNotFound = errors.New("no backup record for path")

	// ErrInvalidFrequency is returned for an unknown auto-backup unit.
	ErrInvalidFrequency = errors.New("invalid backup frequency")

	// ErrInvalidInterval is returned for a zero or out of range interval.
	ErrInvalidInterval = errors.New("invalid backup interval")
)
