package auth

import "errors"

var (
	// ErrMissingToken is returned when no bearer credential is present.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned when the credential fails validation.
	ErrInvalidToken = errors.New("invalid bearer token")
)
