package main

import (
	"fmt"
	"os"

	"github.com/atelier-commerce/atelier/internal/config"
	"github.com/atelier-commerce/atelier/internal/console"
	"github.com/atelier-commerce/atelier/internal/logger"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	// Create console server
	srv, err := console.New(cfg, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create console server")
	}

	log.Info().Str("version", version).Msg("Starting Atelier console...")

	// Start HTTP server (this blocks)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Console failed to start")
	}
}
