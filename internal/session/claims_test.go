package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestParseClaims(t *testing.T) {
	issuedAt := time.Now().Truncate(time.Second)
	expiresAt := issuedAt.Add(time.Hour)

	idToken := signedToken(t, jwt.MapClaims{
		"sub":            "user-42",
		"email":          "dev@example.com",
		"cognito:groups": []string{"admins"},
		"iss":            "https://issuer.example",
		"aud":            "client-123",
		"iat":            issuedAt.Unix(),
		"exp":            expiresAt.Unix(),
	})

	claims, err := ParseClaims(idToken)
	require.NoError(t, err)

	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "dev@example.com", claims.Email)
	assert.Equal(t, []string{"admins"}, claims.Groups)
	assert.Equal(t, "https://issuer.example", claims.Issuer)
	assert.Equal(t, []string{"client-123"}, claims.Audience)
	assert.True(t, claims.IssuedAt.Equal(issuedAt))
	assert.True(t, claims.ExpiresAt.Equal(expiresAt))
}

func TestParseClaims_PlainGroupsFallback(t *testing.T) {
	idToken := signedToken(t, jwt.MapClaims{
		"sub":    "user-42",
		"groups": []string{"team-a", "team-b"},
	})

	claims, err := ParseClaims(idToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"team-a", "team-b"}, claims.Groups)
}

func TestParseClaims_MinimalToken(t *testing.T) {
	idToken := signedToken(t, jwt.MapClaims{"sub": "user-42"})

	claims, err := ParseClaims(idToken)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Empty(t, claims.Email)
	assert.Empty(t, claims.Groups)
	assert.True(t, claims.ExpiresAt.IsZero())
}

func TestParseClaims_Malformed(t *testing.T) {
	_, err := ParseClaims("not-a-jwt")
	assert.Error(t, err)

	_, err = ParseClaims("")
	assert.Error(t, err)
}
