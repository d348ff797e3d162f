package model

import "errors"

var (
	// ErrNotFound is terminal for primary-entity lookups; enrichment lookups
	// translate it to omission instead of surfacing it.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks an unreachable upstream collaborator. Distinct
	// from ErrNotFound so callers can answer 502 rather than 404.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrInvalidCursor is returned when a pagination cursor fails to parse.
	ErrInvalidCursor = errors.New("invalid cursor")

	ErrValidation = errors.New("validation error")
)
