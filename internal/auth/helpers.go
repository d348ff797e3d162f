package auth

import (
	"net/http"
	"strings"
)

// ExtractBearer extracts the bearer token from the Authorization header.
// Returns ErrMissingToken when the header is absent; requests without a
// credential proceed as anonymous reads.
func ExtractBearer(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}
