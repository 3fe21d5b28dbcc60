package cmd

import (
	"hallpass/internal/callback"

	"github.com/spf13/cobra"
)

// Logout-specific flags
var (
	logoutLocal bool
)

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear stored tokens",
	Long: `Sign out of the current session.

Stored tokens are cleared locally and the provider's logout page is
opened to end the provider-side session as well.

Examples:
  hallpass logout           # Clear tokens and end the provider session
  hallpass logout --local   # Clear tokens only, skip the provider logout`,
	RunE: runLogout,
}

func init() {
	logoutCmd.Flags().BoolVar(&logoutLocal, "local", false, "Clear local tokens without opening the provider's logout page")

	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	manager, _, err := newSessionManager(ctx, false)
	if err != nil {
		return err
	}
	defer manager.Close()

	logoutURL, err := manager.Logout()
	if err != nil {
		return err
	}

	uiPrintln("Signed out. Stored tokens cleared.")

	if logoutLocal || logoutURL == "" {
		return nil
	}

	if err := callback.OpenBrowser(logoutURL); err != nil {
		uiPrintln("Could not open browser to end the provider session.")
		uiPrint("To sign out of the provider as well, open:\n  %s\n", logoutURL)
	}

	return nil
}
