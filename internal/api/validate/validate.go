// Package validate holds request parameter validation shared by the XRPC
// handlers.
package validate

import (
	"fmt"
	"strconv"
	"strings"
)

// Limit parses a limit query parameter. Empty means def; values outside
// [1, max] are rejected rather than silently clamped.
func Limit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer")
	}
	if n < 1 || n > max {
		return 0, fmt.Errorf("limit must be between 1 and %d", max)
	}
	return n, nil
}

// Depth parses a thread depth parameter with the same rules as Limit.
func Depth(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("depth must be an integer")
	}
	if n < 0 || n > max {
		return 0, fmt.Errorf("depth must be between 0 and %d", max)
	}
	return n, nil
}

// AtURI checks that v looks like an AT-URI record reference.
func AtURI(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !strings.HasPrefix(v, "at://") {
		return fmt.Errorf("%s must be an at:// uri", field)
	}
	return nil
}

// ActorRef checks that v is a plausible actor reference: a DID or a handle.
func ActorRef(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	if strings.HasPrefix(v, "did:") {
		if strings.Count(v, ":") < 2 {
			return fmt.Errorf("%s is not a valid did", field)
		}
		return nil
	}
	if strings.ContainsAny(v, " /") {
		return fmt.Errorf("%s is not a valid handle", field)
	}
	return nil
}

// NonEmpty rejects an empty required parameter.
func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}
