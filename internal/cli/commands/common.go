package commands

import (
	"fmt"

	"github.com/atelier-commerce/atelier/internal/api"
	"github.com/atelier-commerce/atelier/internal/cli/config"
	"github.com/atelier-commerce/atelier/internal/cli/envselect"
	"github.com/atelier-commerce/atelier/internal/session"
)

// getEnvironment loads the project config and resolves the environment to
// use. This is common logic shared by most commands.
func getEnvironment(name string) (*config.Environment, error) {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'atelier init' to create a configuration file", err)
	}

	env, err := envselect.ResolveEnvironment(cfg, name)
	if err != nil {
		return nil, err
	}

	if env.URL == "" {
		return nil, fmt.Errorf("environment URL is empty. Please edit %s and add a valid URL", config.ConfigFileName)
	}

	return env, nil
}

// newSessionManager builds the session manager over the default store
func newSessionManager(store session.Store) *session.Manager {
	manager := session.NewManager(store)
	manager.Initialize()
	return manager
}

// newAPIClient builds an API client for the environment, sharing the store
// with the session manager. When the transport tears the session down it
// prints the re-login hint before the failed command returns its error.
func newAPIClient(env *config.Environment, store session.Store) *api.Client {
	return api.New(env.URL, store,
		api.WithSessionEndHook(func() {
			fmt.Println("Session expired. Run 'atelier login' to authenticate again.")
		}),
	)
}
