package app

import (
	"errors"
	"fmt"
	"net/http"

	"lexshelf/api/internal/auth"
	"lexshelf/api/internal/blob"
	"lexshelf/api/internal/export"
	"lexshelf/api/internal/library"
	"lexshelf/api/internal/snapshot"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func confirmationRequired(action string) error {
	return fmt.Errorf("%w: %s", library.ErrConfirmationRequired, action)
}

// mapError turns an error from the service into the HTTP error envelope.
// Client errors carry the wrapped message; server errors do not.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, library.ErrConfirmationRequired):
		return http.StatusPreconditionRequired, "CONFIRMATION_REQUIRED", err.Error(), map[string]any{"confirm": true}
	case errors.Is(err, library.ErrNotFound),
		errors.Is(err, blob.ErrNotFound),
		errors.Is(err, snapshot.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error(), nil
	case errors.Is(err, library.ErrInvalidInput),
		errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "INVALID_INPUT", err.Error(), nil
	case errors.Is(err, library.ErrInvalidFormat):
		return http.StatusBadRequest, "INVALID_FORMAT", err.Error(), nil
	case errors.Is(err, library.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, export.ErrPDFDependencyMissing),
		errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusNotImplemented, "EXPORT_UNAVAILABLE", err.Error(), nil
	case errors.Is(err, library.ErrStorageFailure):
		return http.StatusServiceUnavailable, "STORAGE_FAILURE", "Storage unavailable", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
