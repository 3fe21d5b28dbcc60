package cmd

import (
	"errors"
	"os"

	"hallpass/internal/config"
	"hallpass/internal/session"
	"hallpass/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
// These follow common conventions so scripts can branch on the failure mode.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// Flags shared across commands.
var (
	configPath string
	quiet      bool
	debug      bool
)

// rootCmd represents the base command for the hallpass application.
var rootCmd = &cobra.Command{
	Use:   "hallpass",
	Short: "Sign in to an OAuth2/OIDC identity provider from the terminal",
	Long: `hallpass manages a user session against an OAuth2/OIDC identity
provider using the Authorization Code flow with PKCE. It opens the
provider's sign-in page in a browser, receives the redirect on a local
loopback server, and keeps the resulting token set refreshed until
logout.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelWarn
		if debug {
			level = logging.LevelDebug
		}
		logging.Init(level, os.Stderr)
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the
// application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "hallpass version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if errors.Is(err, session.ErrNotAuthenticated) {
		return ExitCodeAuthRequired
	}

	var callbackErr *session.CallbackError
	if errors.As(err, &callbackErr) {
		return ExitCodeAuthFailed
	}

	if errors.Is(err, session.ErrRefreshRejected) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	defaultConfigPath, err := config.DefaultConfigPath()
	if err != nil {
		defaultConfigPath = ""
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", defaultConfigPath, "Configuration directory")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
}
