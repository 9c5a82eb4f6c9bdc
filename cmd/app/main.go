package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"OmniSpectrum/internal/di"
	"OmniSpectrum/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s store=%s inference=%s", cfg.Environment, cfg.Store.Backend, cfg.Inference.WorkDir)

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run blocks until a signal arrives or a component fails.
	if err := app.Run(ctx); err != nil {
		log.Printf("app error: %v", err)
		cleanup()
		os.Exit(1)
	}
}
