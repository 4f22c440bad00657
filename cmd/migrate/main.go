package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"ubertool-reminder-dispatch/internal/config"
	"ubertool-reminder-dispatch/internal/database"
	"ubertool-reminder-dispatch/internal/logger"
	"ubertool-reminder-dispatch/internal/repository/postgres"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	down := flag.Bool("down", false, "Roll back instead of applying migrations")
	steps := flag.Int("steps", 1, "Number of migrations to roll back with -down (0 for all)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Connect(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if *down {
		n, err := postgres.Rollback(db, *steps)
		if err != nil {
			log.Fatalf("Error migrating down: %v", err)
		}
		fmt.Printf("Rolled back %d migrations!\n", n)
		return
	}

	n, err := postgres.Migrate(db)
	if err != nil {
		log.Fatalf("Error migrating up: %v", err)
	}
	fmt.Printf("Applied %d migrations!\n", n)
}
