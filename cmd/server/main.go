// Package main is the entry point for the audio2midi API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/audio2midi/pkg/api"
	"github.com/james-see/audio2midi/pkg/config"
	"github.com/james-see/audio2midi/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	flag.IntVar(&cfg.Port, "port", cfg.Port, "Server port")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	fmt.Printf("Starting audio2midi API server on port %d...\n", cfg.Port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Port)

	return api.StartServer(cfg, logger)
}
