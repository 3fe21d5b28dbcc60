package idp

import (
	"net/url"
	"strings"

	"hallpass/pkg/pkce"
)

// AuthCodeURL constructs the provider's authorization URL for the
// Authorization Code flow with PKCE. It has no network or storage side
// effects; the caller persists the verifier/state pair before navigating.
func AuthCodeURL(metadata *Metadata, clientID, redirectURI string, scopes []string, state string, pair *pkce.Pair) (string, error) {
	authURL, err := url.Parse(metadata.AuthorizationEndpoint)
	if err != nil {
		return "", err
	}

	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {clientID},
		"scope":                 {strings.Join(scopes, " ")},
		"redirect_uri":          {redirectURI},
		"state":                 {state},
		"code_challenge":        {pair.Challenge},
		"code_challenge_method": {pair.Method},
	}

	authURL.RawQuery = params.Encode()
	return authURL.String(), nil
}

// LogoutURL constructs the provider's logout URL. logoutURI is the
// post-logout redirect target. Returns "" if the provider has no logout
// endpoint.
func LogoutURL(metadata *Metadata, clientID, logoutURI string) (string, error) {
	if metadata.EndSessionEndpoint == "" {
		return "", nil
	}

	logoutURL, err := url.Parse(metadata.EndSessionEndpoint)
	if err != nil {
		return "", err
	}

	params := url.Values{"client_id": {clientID}}
	if logoutURI != "" {
		params.Set("logout_uri", logoutURI)
	}

	logoutURL.RawQuery = params.Encode()
	return logoutURL.String(), nil
}
