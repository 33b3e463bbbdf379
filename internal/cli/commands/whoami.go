package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atelier-commerce/atelier/internal/session"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami()
		},
	}
}

func runWhoami() error {
	manager := newSessionManager(session.DefaultStore())

	id, ok := manager.Identity()
	if !ok {
		fmt.Println("Not logged in. Run 'atelier login' first.")
		return nil
	}

	fmt.Printf("User:  %s (%s)\n", id.Name, id.Email)
	if len(id.Roles) > 0 {
		fmt.Printf("Roles: %s\n", strings.Join(id.Roles, ", "))
	}
	if id.IsAdmin {
		fmt.Println("Admin: yes")
	}

	return nil
}
