// Package main is the entry point for the Co_Lab accounts server.
//
// MAIN PACKAGE IN GO:
// main stays minimal. Its job is to:
// 1. Read configuration (internal/config, from env vars)
// 2. Create the logger
// 3. Build and start the server (internal/server)
//
// All actual logic lives in the imported packages, which keeps it testable
// without running a process.
//
// WHY cmd/server/?
// cmd/ holds one directory per executable. This repo has two:
// cmd/server (this one) and cmd/colab (the terminal client).
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/colab/internal/config"
	"github.com/sakif/colab/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Every setting has a default; see internal/config for the variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_LEVEL picks the minimum level (debug, info, warn, error).
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if cfg.GeneratedSecret {
		// Tokens signed with a per-process secret stop validating on restart.
		logger.Warn("JWT_SECRET not set, using a random secret: sessions end when the server restarts")
	}
	if !cfg.PicturesEnabled() {
		logger.Info("S3_BUCKET not set, picture uploads are disabled")
	}

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
