// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	// ErrUnauthorized covers missing, invalid, and expired credentials alike so
	// callers cannot distinguish the cases.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates an authenticated caller lacks a permission or
	// violates the role hierarchy.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates a referenced role, permission, or user is absent.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation indicates malformed request parameters.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
)

// RespondError maps domain errors to HTTP responses using RFC7807. Unmatched
// errors become a generic 500 without leaking internals.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
