package errors

import "errors"

// Shared application errors. Repositories translate driver-level errors
// into these at the boundary so services never inspect vendor error codes.
var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is returned for failed authentication (bad session, bad credentials).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation is returned for malformed input, rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate is returned when a create violates a uniqueness constraint
	// (account email, provider user id).
	ErrDuplicate = errors.New("duplicate record")

	// ErrConflict is returned for state conflicts, e.g. registering an email
	// that already belongs to a confirmed account.
	ErrConflict = errors.New("resource state conflict")
)
