package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hallpass/internal/config"
	"hallpass/internal/session"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// Status-specific flags
var (
	statusWatch bool
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session status",
	Long: `Show the current authentication session status.

This command displays whether a session is established, when the access
token expires, and whether it can be refreshed without signing in again.
A persisted session whose access token has expired gets one refresh
attempt before the status is reported.

Examples:
  hallpass status           # Show the current status
  hallpass status --watch   # Keep showing status as other processes sign in/out`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Watch the token store and reprint status on external changes")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Watch mode is long-lived, so it also keeps the session refreshed
	// instead of letting the access token lapse mid-watch.
	manager, cfg, err := newSessionManager(ctx, statusWatch)
	if err != nil {
		return err
	}
	defer manager.Close()

	manager.Resume(ctx)
	printSessionStatus(manager, &cfg)

	if !statusWatch {
		return nil
	}

	stop, err := manager.WatchStore(func() {
		uiPrintln()
		printSessionStatus(manager, &cfg)
	})
	if err != nil {
		return fmt.Errorf("failed to watch token store: %w", err)
	}
	defer stop()

	uiPrintln("\nWatching for session changes. Press Ctrl-C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	return nil
}

// printSessionStatus prints the session state with colors.
func printSessionStatus(manager *session.Manager, cfg *config.Config) {
	uiPrintln("Session")
	if cfg.Provider.Issuer != "" {
		uiPrint("  Issuer:    %s\n", cfg.Provider.Issuer)
	}

	if !manager.IsAuthenticated() {
		printUnauthenticatedStatus(manager)
		return
	}

	tokenSet := manager.TokenSet()
	uiPrint("  Status:    %s\n", text.FgGreen.Sprint("Authenticated"))
	if !tokenSet.Expiry.IsZero() {
		uiPrint("  Expires:   %s\n", formatExpiryWithDirection(tokenSet.Expiry))
	}
	if tokenSet.RefreshToken != "" {
		uiPrint("  Refresh:   %s\n", text.FgGreen.Sprint("Available"))
	} else {
		uiPrint("  Refresh:   %s\n", text.FgYellow.Sprint("Not available (sign in again on expiry)"))
	}

	if claims, err := manager.Claims(); err == nil && claims.Email != "" {
		uiPrint("  Identity:  %s\n", claims.Email)
	}
}

// printUnauthenticatedStatus reports why no session is active.
func printUnauthenticatedStatus(manager *session.Manager) {
	if reason := manager.LastError(); reason != "" {
		uiPrint("  Status:    %s\n", text.FgRed.Sprint("Session ended"))
		uiPrint("             %s\n", reason)
	} else {
		uiPrint("  Status:    %s\n", text.FgYellow.Sprint("Not authenticated"))
	}
	uiPrint("             Run: hallpass login\n")
}
