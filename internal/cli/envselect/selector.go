package envselect

import (
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/atelier-commerce/atelier/internal/cli/config"
	"github.com/atelier-commerce/atelier/internal/cli/userconfig"
)

// ResolveEnvironment determines which environment to use:
// 1. If the name flag is provided, use that environment
// 2. If the user has a selected environment in their local config, use that
// 3. If only one environment is configured, use that
// 4. Otherwise, prompt the user interactively
func ResolveEnvironment(projectConfig *config.Config, name string) (*config.Environment, error) {
	if name != "" {
		env, err := projectConfig.GetEnvironmentByName(name)
		if err != nil {
			return nil, err
		}
		return env, nil
	}

	selected, err := userconfig.GetSelectedEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	if selected != "" {
		env, err := projectConfig.GetEnvironmentByName(selected)
		if err != nil {
			// Selected environment no longer exists, clear it and continue
			_ = userconfig.SetSelectedEnvironment("")
		} else {
			return env, nil
		}
	}

	if len(projectConfig.Environments) == 1 {
		env := &projectConfig.Environments[0]
		if err := userconfig.SetSelectedEnvironment(env.Name); err != nil {
			fmt.Printf("Warning: failed to save selected environment: %v\n", err)
		}
		return env, nil
	}

	env, err := PromptEnvironmentSelection(projectConfig)
	if err != nil {
		return nil, err
	}

	if err := userconfig.SetSelectedEnvironment(env.Name); err != nil {
		fmt.Printf("Warning: failed to save selected environment: %v\n", err)
	}

	return env, nil
}

// PromptEnvironmentSelection shows an interactive environment picker
func PromptEnvironmentSelection(projectConfig *config.Config) (*config.Environment, error) {
	if len(projectConfig.Environments) == 0 {
		return nil, fmt.Errorf("no environments configured in %s", config.ConfigFileName)
	}

	type envOption struct {
		Label       string
		Environment *config.Environment
	}

	options := make([]envOption, len(projectConfig.Environments))
	for i := range projectConfig.Environments {
		env := &projectConfig.Environments[i]
		options[i] = envOption{
			Label:       fmt.Sprintf("%s (%s)", env.Name, env.URL),
			Environment: env,
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select an environment",
		Items:     options,
		Templates: templates,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("environment selection cancelled: %w", err)
	}

	return options[index].Environment, nil
}
