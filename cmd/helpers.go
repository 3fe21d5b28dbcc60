package cmd

import (
	"context"
	"fmt"
	"time"

	"hallpass/internal/config"
	"hallpass/internal/idp"
	"hallpass/internal/session"
	"hallpass/internal/store"

	"github.com/jedib0t/go-pretty/v6/text"
)

// uiPrint prints output only if the --quiet flag is not set.
// Use this for progress messages and non-essential output.
func uiPrint(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf(format, args...)
	}
}

// uiPrintln prints a line only if the --quiet flag is not set.
func uiPrintln(a ...interface{}) {
	if !quiet {
		fmt.Println(a...)
	}
}

// loadConfig loads and validates the hallpass configuration.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w (edit %s/config.yaml)", err, configPath)
	}
	return cfg, nil
}

// resolveMetadata resolves the provider's endpoints: explicit config values
// win, anything missing is filled in from OIDC discovery against the issuer.
func resolveMetadata(ctx context.Context, client *idp.Client, cfg *config.Config) (*idp.Metadata, error) {
	p := cfg.Provider

	if p.AuthorizeEndpoint != "" && p.TokenEndpoint != "" {
		return idp.StaticMetadata(p.Issuer, p.AuthorizeEndpoint, p.TokenEndpoint, p.LogoutEndpoint), nil
	}

	metadata, err := client.DiscoverMetadata(ctx, p.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover provider endpoints: %w", err)
	}

	if p.AuthorizeEndpoint != "" {
		metadata.AuthorizationEndpoint = p.AuthorizeEndpoint
	}
	if p.TokenEndpoint != "" {
		metadata.TokenEndpoint = p.TokenEndpoint
	}
	if p.LogoutEndpoint != "" {
		metadata.EndSessionEndpoint = p.LogoutEndpoint
	}

	return metadata, nil
}

// newSessionManager builds a session manager from the configuration,
// resolving provider metadata on the way.
func newSessionManager(ctx context.Context, autoRefresh bool) (*session.Manager, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, config.Config{}, err
	}

	client := idp.NewClient(idp.ClientConfig{ClientID: cfg.Provider.ClientID})

	metadata, err := resolveMetadata(ctx, client, &cfg)
	if err != nil {
		return nil, config.Config{}, err
	}

	tokens, err := store.NewTokenStore(cfg.Storage.Dir)
	if err != nil {
		return nil, config.Config{}, err
	}
	attempts, err := store.NewExchangeStore(cfg.Storage.Dir)
	if err != nil {
		return nil, config.Config{}, err
	}

	manager := session.NewManager(session.Config{
		Client:            client,
		Metadata:          metadata,
		ClientID:          cfg.Provider.ClientID,
		Scopes:            cfg.Provider.Scopes,
		TokenStore:        tokens,
		ExchangeStore:     attempts,
		LogoutRedirectURI: cfg.Provider.LogoutRedirectURI,
		AutoRefresh:       autoRefresh,
	})

	return manager, cfg, nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "expired"
	}
	if d < time.Minute {
		return "< 1 minute"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// formatExpiryWithDirection formats a time as "in X" or "expired X ago".
func formatExpiryWithDirection(expiresAt time.Time) string {
	remaining := time.Until(expiresAt)
	if remaining > 0 {
		return "in " + formatDuration(remaining)
	}
	return text.FgYellow.Sprintf("expired %s ago", formatDuration(-remaining))
}
