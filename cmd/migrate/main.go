package main

import (
	"context"
	"flag"
	"os"

	"venuebot/internal/config"
	"venuebot/internal/db"
	appLog "venuebot/internal/log"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	migrationPath := flag.String("file", "migrations/001_initial_schema.sql", "migration script to apply")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		appLog.Info("no .env file found")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLog.Error("failed to load config", err)
		os.Exit(1)
	}

	ctx := context.Background()
	database, err := db.New(ctx, cfg.Database)
	if err != nil {
		appLog.Error("unable to connect to database", err)
		os.Exit(1)
	}
	defer database.Close()

	// Read and execute migration file
	migration, err := os.ReadFile(*migrationPath)
	if err != nil {
		appLog.Error("error reading migration file", err, "file", *migrationPath)
		os.Exit(1)
	}

	if err := database.Migrate(ctx, string(migration)); err != nil {
		appLog.Error("migration failed", err, "file", *migrationPath)
		os.Exit(1)
	}

	appLog.Info("migration completed", "file", *migrationPath)
}
