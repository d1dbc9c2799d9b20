package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates a token that failed verification for any
	// reason; callers must not be able to tell which.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoRoles indicates the user holds no roles at all.
	ErrNoRoles = errors.New("no roles held")
)
