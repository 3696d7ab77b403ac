package models

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
)

var (
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation error")
)

// ErrExternalService marks a calendar provider failure. It never undoes a
// local decision.
var ErrExternalService = errors.New("external service error")
