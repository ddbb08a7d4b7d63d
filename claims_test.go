package doclient

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signClaims(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-key"))
	require.NoError(t, err)
	return token
}

func TestParseTokenClaims(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	token := signClaims(t, jwt.MapClaims{
		"sub":      "2",
		"username": "alice",
		"role":     "user",
		"exp":      exp.Unix(),
	})

	claims, err := ParseTokenClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "2", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.True(t, exp.Equal(claims.Expires()))

	assert.False(t, claims.ExpiredAt(exp.Add(-time.Second)))
	assert.True(t, claims.ExpiredAt(exp))
}

func TestTokenClaimsWithoutExpiryNeverExpire(t *testing.T) {
	claims, err := ParseTokenClaims(signClaims(t, jwt.MapClaims{"sub": "1"}))
	require.NoError(t, err)
	assert.True(t, claims.Expires().IsZero())
	assert.False(t, claims.ExpiredAt(time.Now().Add(100*365*24*time.Hour)))

	var nilClaims *TokenClaims
	assert.True(t, nilClaims.Expires().IsZero())
}

func TestParseTokenClaimsRejectsOpaqueTokens(t *testing.T) {
	_, err := ParseTokenClaims("t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), TextCodeMalformedToken)
}

func TestSessionExpiredIgnoresOpaqueTokens(t *testing.T) {
	s := NewSession(nil, Options{})
	assert.False(t, s.Expired())

	s.token = "t1"
	assert.False(t, s.Expired())

	_, err := s.Claims()
	assert.Error(t, err)
}
