package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "ubertool-reminder-dispatch/internal/api/http"
	"ubertool-reminder-dispatch/internal/config"
	"ubertool-reminder-dispatch/internal/database"
	"ubertool-reminder-dispatch/internal/logger"
	"ubertool-reminder-dispatch/internal/reminder"
	"ubertool-reminder-dispatch/internal/repository/postgres"
	"ubertool-reminder-dispatch/internal/service"

	"github.com/gorilla/mux"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	migrate := flag.Bool("migrate", false, "Apply pending reminder_logs migrations before serving")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Ubertool Reminder Dispatch...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	logger.Info("Reminder configuration", "timezone", cfg.Reminders.Timezone, "active_statuses", cfg.Reminders.ActiveStatuses, "workers", cfg.Reminders.Workers, "mail_provider", cfg.Mail.Provider)
	if cfg.Reminders.CronSecret == "" {
		logger.Warn("No cron secret configured; every trigger call will be rejected")
	}

	// Initialize Database
	db, err := database.Connect(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if *migrate {
		n, err := postgres.Migrate(db)
		if err != nil {
			logger.Error("Failed to apply schema", "error", err)
			log.Fatalf("Failed to apply schema: %v", err)
		}
		logger.Info("Schema is up to date", "applied", n)
	}

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Mail Delivery
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

	// Set up HTTP server
	router := mux.NewRouter()
	httpapi.RegisterReminderRoutes(
		router,
		httpapi.NewReminderHandler(dispatcher, cfg.Reminders.CronSecret),
		httpapi.NewTriggerLimiter(cfg.Server.TriggerRateLimit, cfg.Server.TriggerBurst),
	)

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown lets an in-flight run finish its current items
	logger.Info("Shutting down HTTP server...", "timeout_seconds", cfg.Server.ShutdownTimeoutSecs)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("HTTP server stopped. Goodbye!")
}
