package doclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenClaims are the claims the backend embeds in its access tokens. They
// are decoded without signature verification: the client only reads them to
// anticipate expiry, the backend stays the authority.
type TokenClaims struct {
	jwt.RegisteredClaims
	Role     string `json:"role,omitempty"`
	Username string `json:"username,omitempty"`
}

// ParseTokenClaims decodes the claims of a bearer token.
func ParseTokenClaims(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to decode token claims").
			WithTextCode(TextCodeMalformedToken)
	}
	return claims, nil
}

// Expires returns the expiration time, zero when the token has none
func (c *TokenClaims) Expires() time.Time {
	if c == nil || c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// ExpiredAt reports whether the token is expired at now. Tokens without an
// exp claim never expire client side.
func (c *TokenClaims) ExpiredAt(now time.Time) bool {
	exp := c.Expires()
	if exp.IsZero() {
		return false
	}
	return !now.Before(exp)
}
