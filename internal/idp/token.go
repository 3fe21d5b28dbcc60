package idp

import (
	"time"

	"golang.org/x/oauth2"
)

// TokenSet is the set of credentials returned by the provider's token
// endpoint. The in-memory copy held by the session manager is the source of
// truth; the persisted copy is a cache of it.
type TokenSet struct {
	// AccessToken is the short-lived credential for calling protected APIs.
	AccessToken string `json:"access_token"`

	// IDToken is the OIDC identity assertion (JWT). Decoded for claims and
	// expiry estimation only; signature verification is the backend's job.
	IDToken string `json:"id_token,omitempty"`

	// RefreshToken is the long-lived credential carried forward across
	// refresh exchanges unless the provider issues a new one.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`

	// Expiry is when the access token expires, computed from expires_in
	// at the time the token set was received.
	Expiry time.Time `json:"expiry,omitempty"`

	// ObtainedAt is when this token set was received from the provider.
	ObtainedAt time.Time `json:"obtained_at"`
}

// ExpiresWithin reports whether the access token expires within the given
// margin from now. A zero Expiry means the provider did not communicate a
// lifetime; such tokens are treated as non-expiring.
func (t *TokenSet) ExpiresWithin(margin time.Duration) bool {
	if t == nil {
		return true
	}
	if t.Expiry.IsZero() {
		return false
	}
	return !time.Now().Add(margin).Before(t.Expiry)
}

// Expired reports whether the access token has already expired.
func (t *TokenSet) Expired() bool {
	return t.ExpiresWithin(0)
}

// ToOAuth2Token converts the token set to an oauth2.Token, with the ID token
// carried in the extra data under "id_token". This is the interop point for
// embedding hallpass sessions into clients built on golang.org/x/oauth2.
func (t *TokenSet) ToOAuth2Token() *oauth2.Token {
	if t == nil {
		return nil
	}

	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}

	if t.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": t.IDToken,
		})
	}

	return token
}
