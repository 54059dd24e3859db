package domain

import "errors"

var (
	// ErrAuthentication signals bad credentials or an invalid, expired, or tampered token.
	// Callers must not distinguish the cause to avoid user enumeration.
	ErrAuthentication = errors.New("authentication failed")
	// ErrValidation signals rejected request input.
	ErrValidation = errors.New("validation failed")
	// ErrUpstream signals a vector index failure.
	ErrUpstream = errors.New("vector index error")
	// ErrProcessing signals an image decode or embedding failure on the search path.
	ErrProcessing = errors.New("processing failed")
)
