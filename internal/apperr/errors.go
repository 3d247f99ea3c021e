// Package apperr holds the error kinds shared across domains. Domain packages
// wrap these with context and the HTTP layer maps them to status codes.
package apperr

import "errors"

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)
