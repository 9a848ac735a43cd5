package services

import "errors"

// Errors callers can map to client-facing statuses. Anything else returned
// by the services is an upstream or internal failure.
var (
	ErrEmptyMessage   = errors.New("message must not be empty")
	ErrInvalidImage   = errors.New("invalid image payload")
	ErrVisionDisabled = errors.New("image input is not enabled on this server")
)
