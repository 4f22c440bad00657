package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ubertool-reminder-dispatch/internal/config"
	"ubertool-reminder-dispatch/internal/database"
	"ubertool-reminder-dispatch/internal/domain"
	"ubertool-reminder-dispatch/internal/jobs"
	"ubertool-reminder-dispatch/internal/logger"
	"ubertool-reminder-dispatch/internal/reminder"
	"ubertool-reminder-dispatch/internal/repository/postgres"
	"ubertool-reminder-dispatch/internal/scheduler"
	"ubertool-reminder-dispatch/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run the reminder dispatch once for a scope and exit ('due_today', 'overdue', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Ubertool Reminder Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	db, err := database.Connect(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Services
	mailer, err := service.NewMailDeliveryService(cfg)
	if err != nil {
		logger.Error("Failed to initialize mail delivery", "error", err)
		log.Fatalf("Failed to initialize mail delivery: %v", err)
	}

	dispatcher := reminder.NewDispatcher(
		store.RentalLineRepository,
		store.BookingRecipientRepository,
		store.ReminderLogRepository,
		mailer,
		reminder.OptionsFromConfig(cfg.Reminders),
	)

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(dispatcher, cfg)

	// Check if running a single dispatch
	if *runOnce != "" {
		scope, err := domain.ParseScope(*runOnce)
		if err != nil {
			logger.Error("Unknown scope", "scope", *runOnce)
			fmt.Printf("Available scopes:\n")
			fmt.Printf("  - due_today\n")
			fmt.Printf("  - overdue\n")
			fmt.Printf("  - all\n")
			os.Exit(1)
		}
		logger.Info("Running reminder dispatch once", "scope", scope)
		if jobRunner.RunReminders(scope) == nil {
			os.Exit(1)
		}
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		logger.Error("Failed to initialize scheduler", "error", err)
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.", "next_run", cronScheduler.NextRun())

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}
