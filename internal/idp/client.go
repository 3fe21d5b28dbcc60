package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"hallpass/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for requests to the provider.
const DefaultHTTPTimeout = 30 * time.Second

// Client speaks the provider's OAuth2 endpoints: metadata discovery,
// authorization code exchange, and refresh grants.
type Client struct {
	httpClient *http.Client
	clientID   string

	metaMu        sync.Mutex
	metadataCache map[string]*cachedMetadata
}

// ClientConfig configures the provider client.
type ClientConfig struct {
	// ClientID is the OAuth2 client identifier registered with the provider.
	ClientID string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

// NewClient creates a provider client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return &Client{
		httpClient:    httpClient,
		clientID:      cfg.ClientID,
		metadataCache: make(map[string]*cachedMetadata),
	}
}

// ExchangeError is returned when the token endpoint answers a code exchange
// with a non-success status.
type ExchangeError struct {
	Status int
	Body   string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.Status, e.Body)
}

// ExchangeCode trades an authorization code plus its PKCE verifier for a
// token set. redirectURI must match the one used in the authorization
// request. Fails with *ExchangeError on a non-success provider response.
func (c *Client) ExchangeCode(ctx context.Context, metadata *Metadata, code, verifier, redirectURI string) (*TokenSet, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"redirect_uri":  {redirectURI},
		"code":          {code},
		"code_verifier": {verifier},
	}

	body, status, err := c.postForm(ctx, metadata.TokenEndpoint, data)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, &ExchangeError{Status: status, Body: string(body)}
	}

	tokens, err := parseTokenResponse(body)
	if err != nil {
		return nil, err
	}

	logging.Debug("IdP", "Authorization code exchanged at %s", metadata.TokenEndpoint)
	return tokens, nil
}

// Refresh performs a refresh-grant exchange. A provider rejection (non-2xx)
// is an expected, recoverable-by-logout condition and yields (nil, nil);
// only transport failures return an error. If the provider omits a new
// refresh token, the previous one is carried forward in the result.
func (c *Client) Refresh(ctx context.Context, metadata *Metadata, refreshToken string) (*TokenSet, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"refresh_token": {refreshToken},
	}

	body, status, err := c.postForm(ctx, metadata.TokenEndpoint, data)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		logging.Warn("IdP", "Refresh grant rejected with status %d", status)
		return nil, nil
	}

	tokens, err := parseTokenResponse(body)
	if err != nil {
		logging.Warn("IdP", "Refresh response could not be parsed: %v", err)
		return nil, nil
	}

	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}

	logging.Debug("IdP", "Token set refreshed at %s", metadata.TokenEndpoint)
	return tokens, nil
}

// postForm sends a form-encoded POST to the token endpoint and returns the
// raw response body and status.
func (c *Client) postForm(ctx context.Context, endpoint string, data url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	return body, resp.StatusCode, nil
}

func parseTokenResponse(body []byte) (*TokenSet, error) {
	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}

	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response contains no access token")
	}

	now := time.Now()
	tokens := &TokenSet{
		AccessToken:  tokenResp.AccessToken,
		IDToken:      tokenResp.IDToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		ObtainedAt:   now,
	}

	if tokenResp.ExpiresIn > 0 {
		tokens.Expiry = now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	return tokens, nil
}
