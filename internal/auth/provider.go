// Package auth supplies bearer credentials for the remote feed. The
// credential is an opaque capability: callers never inspect it, only attach
// it to requests. Signed-assertion generation is out of scope; the provider
// only exchanges configured client credentials for short-lived tokens.
package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials refreshes bearer tokens through an OAuth2
// client-credentials exchange. The underlying token source caches the token
// and refreshes it transparently once it expires.
type ClientCredentials struct {
	ts oauth2.TokenSource
}

// NewClientCredentials configures a token provider against the given token
// endpoint. The token source is built on a background context so it outlives
// individual request contexts; a request-scoped context would cancel later
// refreshes.
func NewClientCredentials(tokenURL, clientID, clientSecret string, scopes []string) *ClientCredentials {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return &ClientCredentials{ts: cfg.TokenSource(context.Background())}
}

// GetValid returns a currently valid bearer token, refreshing if needed.
func (p *ClientCredentials) GetValid(ctx context.Context) (string, error) {
	token, err := p.ts.Token()
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	return token.AccessToken, nil
}

// Static is a fixed-token provider for development and tests.
type Static string

// GetValid returns the fixed token.
func (s Static) GetValid(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no static token configured")
	}
	return string(s), nil
}
