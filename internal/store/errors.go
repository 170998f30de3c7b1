package store

import "errors"

var (
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	// ErrUnknownService is returned by capability writes that name a service
	// which does not exist when the write commits.
	ErrUnknownService = errors.New("unknown service")
)
