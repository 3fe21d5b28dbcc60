package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultScopes, cfg.Provider.Scopes)
	assert.Equal(t, DefaultCallbackPort, cfg.Callback.Port)
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
provider:
  issuer: https://auth.example.com
  clientId: my-client
  scopes: [openid, email, profile]
callback:
  port: 9100
storage:
  dir: /var/lib/hallpass
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://auth.example.com", cfg.Provider.Issuer)
	assert.Equal(t, "my-client", cfg.Provider.ClientID)
	assert.Equal(t, []string{"openid", "email", "profile"}, cfg.Provider.Scopes)
	assert.Equal(t, 9100, cfg.Callback.Port)
	assert.Equal(t, "/var/lib/hallpass", cfg.Storage.Dir)
}

func TestLoad_MalformedConfigFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("provider: ["), 0o600))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_FillsDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	content := `
provider:
  issuer: https://auth.example.com
  clientId: my-client
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultScopes, cfg.Provider.Scopes)
	assert.Equal(t, DefaultCallbackPort, cfg.Callback.Port)
	assert.Equal(t, dir, cfg.Storage.Dir)
}

func TestLoad_ExplicitZeroPortIsKept(t *testing.T) {
	dir := t.TempDir()
	content := `
provider:
  issuer: https://auth.example.com
  clientId: my-client
callback:
  port: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	// An explicit 0 requests a random loopback port from the callback server.
	assert.Equal(t, 0, cfg.Callback.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "issuer and client id",
			cfg: Config{Provider: ProviderConfig{
				Issuer:   "https://auth.example.com",
				ClientID: "abc",
			}},
		},
		{
			name: "explicit endpoints without issuer",
			cfg: Config{Provider: ProviderConfig{
				ClientID:          "abc",
				AuthorizeEndpoint: "https://auth.example.com/oauth2/authorize",
				TokenEndpoint:     "https://auth.example.com/oauth2/token",
			}},
		},
		{
			name:    "missing client id",
			cfg:     Config{Provider: ProviderConfig{Issuer: "https://auth.example.com"}},
			wantErr: true,
		},
		{
			name:    "no issuer and incomplete endpoints",
			cfg:     Config{Provider: ProviderConfig{ClientID: "abc", TokenEndpoint: "https://x/token"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
