package proxy

import "errors"

// Registry and engine errors. All are returned to the caller; none abort
// the process, and a rejected operation leaves prior state untouched.
var (
	// ErrDuplicateID indicates the identifier is already registered.
	ErrDuplicateID = errors.New("channel id already registered")

	// ErrCapacityExceeded indicates the identifier is outside the
	// registry's slot range.
	ErrCapacityExceeded = errors.New("channel id exceeds registry capacity")

	// ErrInvalidSchema indicates the schema validator rejected the
	// registration.
	ErrInvalidSchema = errors.New("invalid channel schema")

	// ErrInvalidConfig indicates the event configuration was rejected.
	ErrInvalidConfig = errors.New("invalid channel config")

	// ErrUnknownChannel indicates no channel occupies the identifier.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrTypeMismatch indicates a value's kind does not match the
	// channel's registered kind.
	ErrTypeMismatch = errors.New("value kind does not match channel")
)
