package library

import "errors"

// Error taxonomy shared by every component. Callers wrap these with context
// and match with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidFormat        = errors.New("invalid format")
	ErrStorageFailure       = errors.New("storage failure")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrConfirmationRequired = errors.New("confirmation required")
)
