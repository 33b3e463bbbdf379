package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atelier-commerce/atelier/internal/session"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the local session",
		Long: `Discard the locally stored credentials.

The refresh token is not revoked server-side; it simply ages out on the
identity provider. Running logout when not logged in is harmless.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout()
		},
	}
}

func runLogout() error {
	manager := newSessionManager(session.DefaultStore())
	manager.Logout()

	fmt.Println("✓ Logged out.")
	return nil
}
