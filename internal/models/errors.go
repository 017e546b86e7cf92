package models

import "errors"

// Procedure error taxonomy. Services wrap these with context; handlers map them to status codes.
var (
	// ErrBadRequest marks invalid input or a missing prerequisite state
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound marks a row that is absent or not owned by the caller
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized marks a callback whose signature could not be verified
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInternal marks a downstream failure that is not the caller's fault
	ErrInternal = errors.New("internal server error")
)
