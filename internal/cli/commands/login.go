package commands

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/atelier-commerce/atelier/internal/session"
	"github.com/atelier-commerce/atelier/internal/token"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var envName, email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a storefront environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(envName, email, password)
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "Environment name (uses selected environment if not specified)")
	cmd.Flags().StringVar(&email, "email", "", "Email address (or set ATELIER_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set ATELIER_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(envName, email, password string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("ATELIER_EMAIL")
	}
	if password == "" {
		password = os.Getenv("ATELIER_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or ATELIER_EMAIL env var)")
	}

	env, err := getEnvironment(envName)
	if err != nil {
		return err
	}

	// Prompt for password if not provided via flag or env var
	if password == "" {
		if term.IsTerminal(int(syscall.Stdin)) {
			fmt.Print("Password: ")
			bytePassword, err := term.ReadPassword(int(syscall.Stdin))
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = string(bytePassword)
			fmt.Println() // New line after password input
		} else {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or ATELIER_PASSWORD env var)")
		}
	}

	store := session.DefaultStore()
	apiClient := newAPIClient(env, store)

	fmt.Printf("Logging in to %s (%s)...\n", env.Name, env.URL)

	creds, err := apiClient.Login(email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	manager := session.NewManager(store)
	if err := manager.Login(*creds); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Println("✓ Login successful!")
	fmt.Printf("  User: %s (%s)\n", creds.User.Name, creds.User.Email)
	if manager.HasRole(token.RoleAdmin) {
		fmt.Println("  Role: Admin")
	}

	return nil
}
