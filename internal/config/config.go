package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hallpass/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/hallpass"
	configFileName = "config.yaml"
)

// Config is the top-level hallpass configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Callback CallbackConfig `yaml:"callback"`
	Storage  StorageConfig  `yaml:"storage"`
}

// ProviderConfig describes the identity provider to authenticate against.
// If Issuer is set, the authorize/token endpoints are discovered from
// {issuer}/.well-known/openid-configuration; explicit endpoint values
// override discovery for providers with fixed endpoints.
type ProviderConfig struct {
	Issuer   string   `yaml:"issuer"`
	ClientID string   `yaml:"clientId"`
	Scopes   []string `yaml:"scopes"`

	// Endpoint overrides. Usually left empty in favor of discovery.
	AuthorizeEndpoint string `yaml:"authorizeEndpoint,omitempty"`
	TokenEndpoint     string `yaml:"tokenEndpoint,omitempty"`
	LogoutEndpoint    string `yaml:"logoutEndpoint,omitempty"`

	// LogoutRedirectURI is the post-logout redirect target passed to the
	// provider's logout endpoint as logout_uri.
	LogoutRedirectURI string `yaml:"logoutRedirectUri,omitempty"`
}

// CallbackConfig configures the local loopback redirect receiver.
type CallbackConfig struct {
	// Port for the callback server. Omitted, it defaults to
	// DefaultCallbackPort; an explicit 0 binds a random free port, which
	// only works with providers that allow wildcard loopback redirect URIs.
	Port int `yaml:"port"`
}

// StorageConfig configures where session state is persisted.
type StorageConfig struct {
	// Dir holds the token file and the in-flight login attempt file.
	// Defaults to ~/.config/hallpass.
	Dir string `yaml:"dir"`
}

// DefaultCallbackPort is the port registered as the redirect URI with most
// providers used with hallpass.
const DefaultCallbackPort = 8925

// DefaultScopes are requested when the config does not name any.
var DefaultScopes = []string{"openid", "email"}

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			Scopes: append([]string(nil), DefaultScopes...),
		},
		Callback: CallbackConfig{
			Port: DefaultCallbackPort,
		},
	}
}

// DefaultConfigPath returns ~/.config/hallpass, or an error if the home
// directory cannot be determined.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// Load loads configuration from the specified directory. A missing
// config.yaml yields the defaults; a malformed one is an error.
func Load(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	cfg := Default()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
			return cfg, nil
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	if len(cfg.Provider.Scopes) == 0 {
		cfg.Provider.Scopes = append([]string(nil), DefaultScopes...)
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = configPath
	}

	logging.Info("Config", "Loaded configuration from %s", configFilePath)
	return cfg, nil
}

// Validate checks that the configuration names a usable provider.
func (c *Config) Validate() error {
	if c.Provider.ClientID == "" {
		return errors.New("provider.clientId is required")
	}
	if c.Provider.Issuer == "" && (c.Provider.AuthorizeEndpoint == "" || c.Provider.TokenEndpoint == "") {
		return errors.New("either provider.issuer or explicit authorize/token endpoints are required")
	}
	return nil
}
