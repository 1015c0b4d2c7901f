// agenda serves the council agenda calendar to the portal front-end.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cpuguy83/agenda/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (default: ~/.config/agenda/config.yaml)")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	// Setup logging
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting agenda",
		"backend", cfg.Backend.URL,
		"listen", cfg.Server.Listen,
		"refresh", cfg.Sync.Refresh,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := NewApp(cfg)
	if err := app.Run(ctx); err != nil {
		slog.Error("app failed", "error", err)
		os.Exit(1)
	}
	slog.Info("agenda stopped")
}
