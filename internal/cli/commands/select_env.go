package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atelier-commerce/atelier/internal/cli/config"
	"github.com/atelier-commerce/atelier/internal/cli/envselect"
	"github.com/atelier-commerce/atelier/internal/cli/userconfig"
)

// NewSelectEnvCmd creates the select-env command
func NewSelectEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select-env",
		Short: "Choose which environment subsequent commands use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelectEnv()
		},
	}
}

func runSelectEnv() error {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'atelier init' to create a configuration file", err)
	}

	env, err := envselect.PromptEnvironmentSelection(cfg)
	if err != nil {
		return err
	}

	if err := userconfig.SetSelectedEnvironment(env.Name); err != nil {
		return fmt.Errorf("failed to save selected environment: %w", err)
	}

	fmt.Printf("✓ Selected environment: %s (%s)\n", env.Name, env.URL)
	return nil
}
