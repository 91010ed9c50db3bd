package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"crop-weather-platform/internal/config"
	"crop-weather-platform/internal/repository"
	"crop-weather-platform/pkg/database"
	"crop-weather-platform/pkg/logging"
	"crop-weather-platform/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up (ensure schema) or down (drop schema)")
	flag.Parse()

	if *direction != "up" && *direction != "down" {
		fmt.Fprintf(os.Stderr, "Invalid direction %q: expected up or down\n", *direction)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("crop-weather-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("crop_weather_migrate")

	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")

	ctx := context.Background()
	weatherRepo := repository.NewWeatherRepository(db, logger, metricsCollector)

	switch *direction {
	case "up":
		fmt.Println("Ensuring schema...")
		if err := weatherRepo.EnsureSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to ensure schema: %v\n", err)
			os.Exit(1)
		}
	case "down":
		fmt.Println("Dropping schema...")
		if err := weatherRepo.DropSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to drop schema: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("Migration completed successfully")
}
