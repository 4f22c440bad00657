package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ubertool-reminder-dispatch/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Mail      MailConfig      `yaml:"mail"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	SendGrid  SendGridConfig  `yaml:"sendgrid"`
	Log       LogConfig       `yaml:"log"`
	Reminders ReminderConfig  `yaml:"reminders"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ShutdownTimeoutSecs int    `yaml:"shutdown_timeout_seconds"`
	// TriggerRateLimit caps trigger calls per second and client IP. Zero disables it.
	TriggerRateLimit float64 `yaml:"trigger_rate_limit"`
	TriggerBurst     int     `yaml:"trigger_burst"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	// ConnectRetrySecs bounds how long startup keeps retrying the first ping.
	ConnectRetrySecs int `yaml:"connect_retry_seconds"`
}

const (
	MailProviderSMTP     = "smtp"
	MailProviderSendGrid = "sendgrid"
	MailProviderLog      = "log"
)

// MailConfig selects the mail delivery provider
type MailConfig struct {
	Provider string `yaml:"provider"` // "smtp", "sendgrid" or "log"
	FromName string `yaml:"from_name"`
}

// SMTPConfig contains email service settings
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SendGridConfig contains SendGrid API settings
type SendGridConfig struct {
	APIKey string `yaml:"api_key"`
	From   string `yaml:"from"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// ReminderConfig contains due-date reminder settings
type ReminderConfig struct {
	CronSecret        string   `yaml:"cron_secret"`
	Timezone          string   `yaml:"timezone"`
	ActiveStatuses    []string `yaml:"active_statuses"`
	ClaimLeaseMinutes int      `yaml:"claim_lease_minutes"`
	Workers           int      `yaml:"workers"`
	Bcc               []string `yaml:"bcc"`
	DateFormat        string   `yaml:"date_format"`
	AppURL            string   `yaml:"app_url"`
}

// SchedulerConfig contains cron schedule settings for the trigger process
type SchedulerConfig struct {
	Timezone      string `yaml:"timezone"`
	SendReminders string `yaml:"send_reminders"`
	Scope         string `yaml:"scope"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// A .env file next to the binary is optional and never overrides the real environment
	_ = godotenv.Load()

	// Override with environment variables if present
	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Mail
	if val := os.Getenv("MAIL_PROVIDER"); val != "" {
		c.Mail.Provider = val
	}
	if val := os.Getenv("SMTP_HOST"); val != "" {
		c.SMTP.Host = val
	}
	if val := os.Getenv("SMTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.SMTP.Port)
	}
	if val := os.Getenv("SMTP_USER"); val != "" {
		c.SMTP.User = val
	}
	if val := os.Getenv("SMTP_PASSWORD"); val != "" {
		c.SMTP.Password = val
	}
	if val := os.Getenv("SMTP_FROM"); val != "" {
		c.SMTP.From = val
	}
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Reminders
	if val := os.Getenv("CRON_SECRET"); val != "" {
		c.Reminders.CronSecret = val
	}
	if val := os.Getenv("REMINDER_TIMEZONE"); val != "" {
		c.Reminders.Timezone = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeoutSecs == 0 {
		c.Server.ShutdownTimeoutSecs = 30
	}
	if c.Server.TriggerRateLimit < 0 {
		return fmt.Errorf("invalid trigger rate limit: %v", c.Server.TriggerRateLimit)
	}
	if c.Server.TriggerRateLimit > 0 && c.Server.TriggerBurst <= 0 {
		c.Server.TriggerBurst = 1
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.ConnectRetrySecs <= 0 {
		c.Database.ConnectRetrySecs = 30
	}

	// Mail validation
	if c.Mail.Provider == "" {
		c.Mail.Provider = MailProviderSMTP
	}
	switch c.Mail.Provider {
	case MailProviderSMTP:
		if c.SMTP.Host == "" {
			return fmt.Errorf("SMTP host is required")
		}
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", c.SMTP.Port)
		}
		if c.SMTP.From == "" {
			return fmt.Errorf("SMTP from address is required")
		}
	case MailProviderSendGrid:
		if c.SendGrid.APIKey == "" {
			return fmt.Errorf("SendGrid API key is required")
		}
		if c.SendGrid.From == "" {
			return fmt.Errorf("SendGrid from address is required")
		}
	case MailProviderLog:
	default:
		return fmt.Errorf("unsupported mail provider: %s", c.Mail.Provider)
	}
	if c.Mail.FromName == "" {
		c.Mail.FromName = "Ubertool"
	}

	// Reminder defaults
	if c.Reminders.Timezone == "" {
		c.Reminders.Timezone = "America/Los_Angeles"
	}
	if _, err := time.LoadLocation(c.Reminders.Timezone); err != nil {
		return fmt.Errorf("invalid reminder timezone %q: %w", c.Reminders.Timezone, err)
	}
	if len(c.Reminders.ActiveStatuses) == 0 {
		for _, s := range domain.DefaultActiveStatuses {
			c.Reminders.ActiveStatuses = append(c.Reminders.ActiveStatuses, string(s))
		}
	}
	if c.Reminders.ClaimLeaseMinutes <= 0 {
		c.Reminders.ClaimLeaseMinutes = 15
	}
	if c.Reminders.Workers <= 0 {
		c.Reminders.Workers = 1
	}
	if c.Reminders.DateFormat == "" {
		c.Reminders.DateFormat = "Monday, January 2, 2006"
	}

	// Scheduler defaults
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = c.Reminders.Timezone
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if c.Scheduler.SendReminders == "" {
		c.Scheduler.SendReminders = "0 0 * * * *" // hourly, on the hour
	}
	if _, err := domain.ParseScope(c.Scheduler.Scope); err != nil {
		return fmt.Errorf("invalid scheduler scope: %w", err)
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location returns the business timezone. Validate has already checked it loads.
func (r ReminderConfig) Location() *time.Location {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (r ReminderConfig) ClaimLease() time.Duration {
	return time.Duration(r.ClaimLeaseMinutes) * time.Minute
}

func (r ReminderConfig) RentalStatuses() []domain.RentalStatus {
	out := make([]domain.RentalStatus, 0, len(r.ActiveStatuses))
	for _, s := range r.ActiveStatuses {
		out = append(out, domain.RentalStatus(strings.ToUpper(strings.TrimSpace(s))))
	}
	return out
}
