package main

import (
	"flag"
	"log"
	"os"

	"StockSentinel/internal/di"
	"StockSentinel/internal/usecase"
	"StockSentinel/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", "", "run one cycle (midday|close) and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s storage=%s sources=%v", cfg.Environment, cfg.Storage.Backend, cfg.Sources.Priority)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if *mode != "" {
		if *mode != usecase.ModeMidday && *mode != usecase.ModeClose {
			log.Fatalf("unknown mode %q, want midday or close", *mode)
		}
		if err := app.RunOnce(*mode); err != nil {
			log.Printf("cycle failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
