package auth

import (
	"context"
	"strings"
)

// MockAuthorizer provides a trivial authorizer for local development: a
// token of the form "dev:<did>" authenticates as that DID. It must never be
// wired in production builds.
type MockAuthorizer struct{}

// NewMockAuthorizer creates a new MockAuthorizer for local development.
func NewMockAuthorizer() *MockAuthorizer {
	return &MockAuthorizer{}
}

// Authorize accepts dev tokens and resolves them to the embedded DID.
func (m *MockAuthorizer) Authorize(ctx context.Context, token string) (*ViewerInfo, error) {
	did, ok := strings.CutPrefix(token, "dev:")
	if !ok || !strings.HasPrefix(did, "did:") {
		return nil, ErrInvalidToken
	}
	return &ViewerInfo{DID: did}, nil
}
