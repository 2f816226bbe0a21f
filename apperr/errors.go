// Package apperr defines the sentinel errors shared across the data layer.
// Repositories and the credential gateway wrap these with context so callers
// can branch with errors.Is without parsing messages.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionPersist   = errors.New("failed to persist session")
	ErrEmailTaken       = errors.New("email already registered")
	ErrHandleTaken      = errors.New("handle already taken")
)
