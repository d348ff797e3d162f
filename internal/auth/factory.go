package auth

import (
	"github.com/halcyon-social/halcyon/appview/internal/config"
)

// AuthorizerFactory creates the appropriate Authorizer for the build target.
type AuthorizerFactory struct {
	config *config.Config
}

// NewAuthorizerFactory creates a new AuthorizerFactory.
func NewAuthorizerFactory(cfg *config.Config) *AuthorizerFactory {
	return &AuthorizerFactory{config: cfg}
}

// CreateAuthorizer returns the mock authorizer for local builds and the
// service-token authorizer otherwise.
func (f *AuthorizerFactory) CreateAuthorizer() Authorizer {
	if f.config.BuildTarget == "local" {
		return NewMockAuthorizer()
	}
	return NewServiceAuthorizer()
}
