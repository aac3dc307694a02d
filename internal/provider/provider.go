// Package provider talks to the external OAuth2 fitness provider. It returns
// token material and profile facts only; account decisions happen in the
// service layer.
package provider

import (
	"context"

	"github.com/bikedataproject/identity-api/internal/domain/entity"
)

// Profile is the subset of the provider profile used to provision accounts.
type Profile struct {
	UserID      string
	DisplayName string
}

// Client is the contract against the provider's token and profile endpoints.
type Client interface {
	// AuthCodeURL builds the provider authorization URL for the given
	// callback. The redirect URL must already be validated by the caller.
	AuthCodeURL(redirectURL string) string

	// ExchangeCode trades an authorization code for a token bundle and the
	// provider's user identifier. The redirect URL must match the one used
	// to obtain the code.
	ExchangeCode(ctx context.Context, code, redirectURL string) (entity.TokenBundle, string, error)

	// Refresh performs the refresh-token grant, returning a replacement bundle.
	Refresh(ctx context.Context, refreshToken string) (entity.TokenBundle, error)

	// FetchProfile reads the provider profile for the bundle's owner.
	FetchProfile(ctx context.Context, bundle entity.TokenBundle) (*Profile, error)
}
