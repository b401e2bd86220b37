package domain

import "errors"

var (
	// ErrNotFound reports a sensor or controller id that does not resolve
	// in the current hardware tree.
	ErrNotFound = errors.New("not found")
	// ErrMalformedData reports a persisted curve document that cannot be parsed.
	ErrMalformedData = errors.New("malformed data")
	// ErrIOFailure reports an underlying read or write failure.
	ErrIOFailure = errors.New("io failure")
	// ErrInvalidBreakpoint reports a non-finite key or value.
	ErrInvalidBreakpoint = errors.New("invalid breakpoint")
)
