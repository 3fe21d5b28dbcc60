package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims is the read-only identity view extracted from the ID token
// payload. It is recomputed from the current token set on demand and never
// persisted independently.
//
// The token payload is decoded, not verified: signature validation is the
// backend's responsibility, and these claims are used for display and expiry
// estimation only.
type IdentityClaims struct {
	// Subject is the provider's stable user identifier.
	Subject string

	// Email is the user's email address, if the provider includes it.
	Email string

	// Groups lists the user's group memberships.
	Groups []string

	// Issuer identifies the provider that issued the token.
	Issuer string

	// Audience lists the client IDs the token was issued for.
	Audience []string

	// IssuedAt is when the token was issued.
	IssuedAt time.Time

	// ExpiresAt is when the token expires.
	ExpiresAt time.Time
}

// ParseClaims decodes the identity claims from an ID token without verifying
// its signature. Group memberships are read from "cognito:groups" with a
// fallback to the plain "groups" claim.
func ParseClaims(idToken string) (*IdentityClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("failed to decode ID token: %w", err)
	}

	identity := &IdentityClaims{}

	if subject, err := claims.GetSubject(); err == nil {
		identity.Subject = subject
	}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	if issuer, err := claims.GetIssuer(); err == nil {
		identity.Issuer = issuer
	}
	if audience, err := claims.GetAudience(); err == nil {
		identity.Audience = audience
	}
	if issuedAt, err := claims.GetIssuedAt(); err == nil && issuedAt != nil {
		identity.IssuedAt = issuedAt.Time
	}
	if expiresAt, err := claims.GetExpirationTime(); err == nil && expiresAt != nil {
		identity.ExpiresAt = expiresAt.Time
	}

	identity.Groups = stringSlice(claims["cognito:groups"])
	if len(identity.Groups) == 0 {
		identity.Groups = stringSlice(claims["groups"])
	}

	return identity, nil
}

func stringSlice(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
