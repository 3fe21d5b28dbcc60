package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hallpass/pkg/logging"
)

// MetadataCacheTTL is the TTL for cached provider metadata.
// This allows the cache to refresh periodically in case the provider
// configuration changes.
const MetadataCacheTTL = 1 * time.Hour

// Metadata represents OAuth/OIDC provider metadata, discovered from the
// issuer's .well-known endpoint or assembled from explicit configuration.
type Metadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	EndSessionEndpoint            string   `json:"end_session_endpoint,omitempty"`
	UserinfoEndpoint              string   `json:"userinfo_endpoint,omitempty"`
	JwksURI                       string   `json:"jwks_uri,omitempty"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported        []string `json:"response_types_supported,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// StaticMetadata assembles Metadata from explicitly configured endpoints,
// bypassing discovery. Used with providers whose issuer does not serve a
// discovery document, or to override individual endpoints.
func StaticMetadata(issuer, authorizeEndpoint, tokenEndpoint, logoutEndpoint string) *Metadata {
	return &Metadata{
		Issuer:                issuer,
		AuthorizationEndpoint: authorizeEndpoint,
		TokenEndpoint:         tokenEndpoint,
		EndSessionEndpoint:    logoutEndpoint,
	}
}

type cachedMetadata struct {
	metadata *Metadata
	cachedAt time.Time
}

// DiscoverMetadata fetches provider metadata from the issuer's
// .well-known/openid-configuration endpoint. Results are cached per issuer
// for MetadataCacheTTL.
func (c *Client) DiscoverMetadata(ctx context.Context, issuerURL string) (*Metadata, error) {
	c.metaMu.Lock()
	if cached, ok := c.metadataCache[issuerURL]; ok && time.Since(cached.cachedAt) < MetadataCacheTTL {
		c.metaMu.Unlock()
		return cached.metadata, nil
	}
	c.metaMu.Unlock()

	wellKnownURL := strings.TrimSuffix(issuerURL, "/") + "/.well-known/openid-configuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnownURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata discovery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata discovery failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var metadata Metadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse provider metadata: %w", err)
	}

	if metadata.AuthorizationEndpoint == "" || metadata.TokenEndpoint == "" {
		return nil, fmt.Errorf("provider metadata from %s is missing required endpoints", wellKnownURL)
	}

	c.metaMu.Lock()
	c.metadataCache[issuerURL] = &cachedMetadata{metadata: &metadata, cachedAt: time.Now()}
	c.metaMu.Unlock()

	logging.Debug("IdP", "Discovered provider metadata for issuer %s", issuerURL)
	return &metadata, nil
}
