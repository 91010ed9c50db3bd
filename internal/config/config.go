package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// IngestionConfig holds data source locations for startup ingestion
type IngestionConfig struct {
	WeatherDataDir  string
	YieldDataFile   string
	IngestOnStartup bool
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
}

// Config is the explicit configuration passed to every component.
// No package-level connection or config state exists anywhere else.
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Ingestion IngestionConfig
	Logging   LoggingConfig
}

// LoadConfig reads configuration from environment variables, applying
// defaults where unset. A .env file in the working directory is loaded
// first when present, mirroring local-development setups; real
// environment variables take precedence over .env values.
func LoadConfig() (*Config, error) {
	// godotenv does not overwrite variables that are already set.
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            envOrDefault("DB_HOST", ""),
			Port:            envIntOrDefault("DB_PORT", 5432),
			User:            envOrDefault("DB_USER", ""),
			Password:        envOrDefault("DB_PASSWORD", ""),
			Database:        envOrDefault("DB_NAME", ""),
			SSLMode:         envOrDefault("DB_SSLMODE", "disable"),
			MaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDurationOrDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: envDurationOrDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Server: ServerConfig{
			Host:         envOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         envIntOrDefault("SERVER_PORT", 8081),
			ReadTimeout:  envDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: envDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  envDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Ingestion: IngestionConfig{
			WeatherDataDir:  envOrDefault("WX_DATA_DIR", ""),
			YieldDataFile:   envOrDefault("YLD_DATA_FILE", ""),
			IngestOnStartup: envOrDefault("INGEST_ON_STARTUP", "false") == "true",
		},
		Logging: LoggingConfig{
			Level: envOrDefault("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Validate checks that the configuration is usable. A missing store
// location or credentials is fatal at startup.
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.User == "" || c.Database.Password == "" || c.Database.Database == "" {
		return errors.New("database configuration not found: set DB_HOST, DB_USER, DB_PASSWORD and DB_NAME")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid DB_PORT: %d", c.Database.Port)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}
	if c.Ingestion.IngestOnStartup && c.Ingestion.WeatherDataDir == "" {
		return errors.New("INGEST_ON_STARTUP is true but WX_DATA_DIR is not set")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
