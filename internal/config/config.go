package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Scan      ScanConfig
	Catalog   CatalogConfig
	Events    EventsConfig
	Generator GeneratorConfig
	Backup    BackupConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	FrontendURL     string
	Environment     string
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// For SQLite
	Path string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // json or console
	OutputPath string
}

// ScanConfig contains rule-evaluation configuration
type ScanConfig struct {
	Workers int // parallel resource evaluations per scan
}

// CatalogConfig controls the static rule catalog
type CatalogConfig struct {
	// RulesFile is an optional external YAML rules file layered over the
	// embedded defaults.
	RulesFile string
	Watch     bool
}

// EventsConfig contains event publishing configuration. Publishing is
// disabled when URL is empty.
type EventsConfig struct {
	URL           string
	SubjectPrefix string
}

// GeneratorConfig contains candidate-rule generation configuration.
// Generation is disabled when APIKey is empty.
type GeneratorConfig struct {
	APIKey string
	Model  string
}

// BackupConfig contains database backup configuration (sqlite only)
type BackupConfig struct {
	Schedule  string // cron spec, empty disables backups
	Directory string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:5173"),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "infrasec"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Path:            getEnv("DB_PATH", "./infrasec.db"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Scan: ScanConfig{
			Workers: getEnvAsInt("SCAN_WORKERS", 4),
		},
		Catalog: CatalogConfig{
			RulesFile: getEnv("RULES_FILE", ""),
			Watch:     getEnvAsBool("RULES_WATCH", false),
		},
		Events: EventsConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "infrasec"),
		},
		Generator: GeneratorConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
			Model:  getEnv("OPENAI_MODEL", ""),
		},
		Backup: BackupConfig{
			Schedule:  getEnv("BACKUP_SCHEDULE", ""),
			Directory: getEnv("BACKUP_DIR", "./backups"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration. The database driver is resolved here,
// once, at startup: an unknown driver is a hard error, not a fallback.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.User == "" {
		return fmt.Errorf("DB_USER is required for the postgres driver")
	}

	if c.Scan.Workers < 1 {
		return fmt.Errorf("SCAN_WORKERS must be at least 1, got %d", c.Scan.Workers)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
