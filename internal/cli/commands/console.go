package commands

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/atelier-commerce/atelier/internal/config"
	"github.com/atelier-commerce/atelier/internal/console"
	"github.com/atelier-commerce/atelier/internal/logger"
)

// NewConsoleCmd creates the console command
func NewConsoleCmd(version string) *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Serve the back-office console locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(version, noBrowser)
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the console in a browser")

	return cmd
}

func runConsole(version string, noBrowser bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	srv, err := console.New(cfg, log, version)
	if err != nil {
		return fmt.Errorf("failed to create console server: %w", err)
	}

	consoleURL := fmt.Sprintf("http://%s/dashboard", cfg.Console.Addr)
	fmt.Printf("Console running at %s\n", consoleURL)

	if !noBrowser {
		if err := openBrowser(consoleURL); err != nil {
			fmt.Printf("Failed to open browser: %v\nPlease visit: %s\n", err, consoleURL)
		}
	}

	return srv.Start()
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
