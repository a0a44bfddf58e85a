package main

import (
	"fmt"
	"os"

	"github.com/vidflow-dev/vidflow/internal/config"
	"github.com/vidflow-dev/vidflow/internal/logger"
	"github.com/vidflow-dev/vidflow/internal/server"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vidflow-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	srv, err := server.New(cfg, log, version)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info().
		Str("version", version).
		Str("database", cfg.Database.URL).
		Str("media_dir", cfg.Media.Dir).
		Strs("cors_origins", cfg.HTTP.CORSOrigins).
		Msg("Starting vidflow API")

	// Blocks until SIGINT/SIGTERM
	return srv.Start()
}
