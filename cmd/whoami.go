package cmd

import (
	"fmt"
	"strings"
	"time"

	"hallpass/internal/session"

	"github.com/spf13/cobra"
)

// whoamiCmd represents the whoami command
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current authenticated identity",
	Long: `Show the identity claims of the current session, decoded from the
ID token: subject, email, group memberships, issuer, and validity.

The claims are decoded for display only; their signature is not verified
here.`,
	RunE: runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	manager, _, err := newSessionManager(ctx, false)
	if err != nil {
		return err
	}
	defer manager.Close()

	manager.Resume(ctx)

	if !manager.IsAuthenticated() {
		uiPrintln("Not authenticated.")
		uiPrintln("\nTo sign in, run:")
		uiPrintln("  hallpass login")
		return session.ErrNotAuthenticated
	}

	claims, err := manager.Claims()
	if err != nil {
		return fmt.Errorf("session has no identity information: %w", err)
	}

	if claims.Email != "" {
		fmt.Printf("Identity:  %s\n", claims.Email)
	} else if claims.Subject != "" {
		fmt.Printf("Identity:  %s\n", claims.Subject)
	}
	if claims.Subject != "" && claims.Email != "" {
		fmt.Printf("Subject:   %s\n", claims.Subject)
	}
	if len(claims.Groups) > 0 {
		fmt.Printf("Groups:    %s\n", strings.Join(claims.Groups, ", "))
	}
	if claims.Issuer != "" {
		fmt.Printf("Issuer:    %s\n", claims.Issuer)
	}
	if len(claims.Audience) > 0 {
		fmt.Printf("Audience:  %s\n", strings.Join(claims.Audience, ", "))
	}
	if !claims.IssuedAt.IsZero() {
		fmt.Printf("Issued:    %s\n", claims.IssuedAt.Format(time.RFC3339))
	}
	if !claims.ExpiresAt.IsZero() {
		fmt.Printf("Expires:   %s\n", formatExpiryWithDirection(claims.ExpiresAt))
	}

	return nil
}
