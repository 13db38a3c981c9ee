// Package auth authenticates the API callers with OIDC bearer tokens.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Identity is the verified caller of a request.
type Identity struct {
	Subject  string
	Username string
	Expiry   time.Time
}

// TokenVerifier verifies a raw bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// OIDCVerifier verifies tokens signed by an OIDC issuer.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer keys. An empty clientID skips the
// audience check, access tokens don't carry one.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("could not create OIDC provider for issuer %s: %w", issuer, err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(verifierConfig(clientID)),
	}, nil
}

func verifierConfig(clientID string) *oidc.Config {
	return &oidc.Config{
		ClientID:          clientID,
		SkipClientIDCheck: clientID == "",
	}
}

// Verify checks the signature, the issuer, the expiry and the audience of the token.
func (o *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	token, err := o.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	var claims struct {
		Username          string `json:"username"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("could not decode claims: %w", err)
	}

	username := claims.Username
	if username == "" {
		username = claims.PreferredUsername
	}

	return &Identity{
		Subject:  token.Subject,
		Username: username,
		Expiry:   token.Expiry,
	}, nil
}

type contextKey int

const identityKey contextKey = iota

// WithIdentity returns a copy of ctx carrying the caller identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller identity set by the middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}
