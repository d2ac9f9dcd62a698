package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound        = errors.New("not found")
	ErrMalformedInput  = errors.New("malformed input")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrExternalService = errors.New("external service unavailable")
	ErrFatalIO         = errors.New("fatal I/O error")
)
