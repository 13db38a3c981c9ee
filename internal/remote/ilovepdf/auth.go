package ilovepdf

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stefando/pdf2img/internal/model"
)

// Authenticator obtains the bearer token of a task.
type Authenticator interface {
	Authenticate(ctx context.Context) (string, error)
}

// APIKeyAuthenticator exchanges the project public key for a token on the
// remote auth endpoint.
type APIKeyAuthenticator struct {
	t         transport
	authURL   string
	publicKey string
}

// Authenticate asks the remote service for a new token.
func (a APIKeyAuthenticator) Authenticate(ctx context.Context) (string, error) {
	form := url.Values{"public_key": {a.publicKey}}

	var resp struct {
		Token string `json:"token"`
	}
	err := a.t.doJSON(ctx, http.MethodPost, a.authURL, "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &resp)
	if err != nil {
		return "", fmt.Errorf("could not authenticate: %w", err)
	}

	if resp.Token == "" {
		return "", model.UpstreamError(errDetail, fmt.Errorf("auth response without token"))
	}

	return resp.Token, nil
}

// DefaultTokenTTL is the lifetime of self signed tokens.
const DefaultTokenTTL = 2 * time.Hour

const tokenIssuer = "api.ilovepdf.com"

// SelfSignedAuthenticator signs the tokens locally with the project secret
// key instead of calling the auth endpoint.
type SelfSignedAuthenticator struct {
	publicKey string
	secretKey []byte
	ttl       time.Duration
	timeNow   func() time.Time
}

// NewSelfSignedAuthenticator returns a new self signed token authenticator.
func NewSelfSignedAuthenticator(publicKey, secretKey string, ttl time.Duration) (*SelfSignedAuthenticator, error) {
	if publicKey == "" || secretKey == "" {
		return nil, fmt.Errorf("public and secret keys are required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &SelfSignedAuthenticator{
		publicKey: publicKey,
		secretKey: []byte(secretKey),
		ttl:       ttl,
		timeNow:   time.Now,
	}, nil
}

// Authenticate signs a new token, the token ID is the project public key.
func (a *SelfSignedAuthenticator) Authenticate(_ context.Context) (string, error) {
	now := a.timeNow()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		ID:        a.publicKey,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("could not sign token: %w", err)
	}

	return token, nil
}
