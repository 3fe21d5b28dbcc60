package cmd

import (
	"context"
	"fmt"
	"time"

	"hallpass/internal/callback"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// Login-specific flags
var (
	loginNoBrowser bool
	loginForce     bool
	loginTimeout   time.Duration
	loginTarget    string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the configured identity provider",
	Long: `Sign in to the configured identity provider using a browser-based
OAuth2 Authorization Code flow with PKCE.

The command starts a local loopback server for the provider's redirect,
opens the sign-in page in your browser, and waits for the flow to
complete. The resulting token set is stored for later commands.

Examples:
  hallpass login                 # Sign in via the default browser
  hallpass login --no-browser    # Print the sign-in URL instead of opening it
  hallpass login --force         # Sign in again even with an active session`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the sign-in URL instead of opening a browser")
	loginCmd.Flags().BoolVar(&loginForce, "force", false, "Sign in even if a valid session already exists")
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", 5*time.Minute, "How long to wait for the provider callback")
	loginCmd.Flags().StringVar(&loginTarget, "redirect-target", "", "Post-login destination embedded in the request state")

	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	manager, cfg, err := newSessionManager(ctx, false)
	if err != nil {
		return err
	}
	defer manager.Close()

	manager.Resume(ctx)
	if manager.IsAuthenticated() && !loginForce {
		uiPrintln("Already signed in. Use --force to sign in again.")
		if claims, err := manager.Claims(); err == nil && claims.Email != "" {
			uiPrint("  Identity:  %s\n", claims.Email)
		}
		return nil
	}

	server := callback.NewServer(cfg.Callback.Port)
	redirectURI, err := server.Start(ctx)
	if err != nil {
		return err
	}
	defer server.Stop()

	authURL, err := manager.BeginLogin(redirectURI, loginTarget)
	if err != nil {
		return err
	}

	if loginNoBrowser {
		uiPrintln("Open this URL in your browser to sign in:")
		fmt.Printf("  %s\n", authURL)
	} else {
		uiPrintln("Opening browser for sign-in...")
		if err := callback.OpenBrowser(authURL); err != nil {
			uiPrintln("Could not open browser automatically.")
			uiPrint("\nPlease open this URL in your browser:\n  %s\n\n", authURL)
		}
	}

	result, err := waitForCallback(ctx, server)
	if err != nil {
		return err
	}

	target, err := manager.CompleteLogin(ctx, result.Query)
	if err != nil {
		return err
	}

	uiPrint("%s Signed in successfully.\n", text.FgGreen.Sprint("✓"))
	if claims, err := manager.Claims(); err == nil {
		if claims.Email != "" {
			uiPrint("  Identity:  %s\n", claims.Email)
		}
		if !claims.ExpiresAt.IsZero() {
			uiPrint("  Expires:   %s\n", formatExpiryWithDirection(claims.ExpiresAt))
		}
	}
	if target != "" {
		uiPrint("  Continue at: %s\n", target)
	}

	return nil
}

// waitForCallback blocks on the loopback server with a spinner until the
// provider redirects back or the timeout elapses.
func waitForCallback(ctx context.Context, server *callback.Server) (*callback.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	if !quiet {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Waiting for sign-in to complete in the browser..."
		s.Start()
		defer s.Stop()
	}

	result, err := server.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("timed out waiting for the provider callback after %s", loginTimeout)
		}
		return nil, err
	}
	return result, nil
}
