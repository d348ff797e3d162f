package auth

import (
	"context"
)

// ViewerInfo identifies an authenticated viewer.
type ViewerInfo struct {
	// DID is the viewer's stable identifier; every viewer-relative dataset
	// is keyed off it.
	DID string `json:"did"`
}

// Authorizer validates a bearer credential and resolves the viewer it
// belongs to.
type Authorizer interface {
	// Authorize validates token and returns the viewer it authenticates.
	// Returns ErrInvalidToken when the credential does not verify.
	Authorize(ctx context.Context, token string) (*ViewerInfo, error)
}
