package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atelier-commerce/atelier/internal/cli/commands"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "atelier",
	Short: "Atelier - storefront back-office tooling",
	Long: `Atelier CLI - Operate your storefront from the terminal.

Authenticate once, then browse the catalog, inspect orders, and launch the
local back-office console. Sessions are stored in the OS keychain and
refreshed automatically when they expire.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("atelier version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewWhoamiCmd())
	rootCmd.AddCommand(commands.NewProductsCmd())
	rootCmd.AddCommand(commands.NewOrdersCmd())
	rootCmd.AddCommand(commands.NewSelectEnvCmd())
	rootCmd.AddCommand(commands.NewConsoleCmd(version))
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
