package main

import (
	"fmt"
	"os"

	"chatgraph-backend/internal/config"
	"chatgraph-backend/internal/repository/migrate"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	sourceURL := os.Getenv("MIGRATIONS_PATH")
	if sourceURL == "" {
		sourceURL = sourceURLFor(cfg.Store)
	}

	databaseURL, err := databaseURLFor(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid store configuration")
	}

	log.Info().Str("driver", cfg.Store.Driver).Str("source", sourceURL).Msg("Running migrations")

	if err := migrate.Run(sourceURL, databaseURL); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

// sourceURLFor picks the migration directory matching the store's SQL
// dialect. The directories under migrations/ are per driver.
func sourceURLFor(cfg config.StoreConfig) string {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	return "file://migrations/" + driver
}

func databaseURLFor(cfg config.StoreConfig) (string, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return "sqlite://" + cfg.Path, nil
	case "postgres":
		return cfg.DSN, nil
	case "mysql":
		return "mysql://" + cfg.DSN, nil
	default:
		return "", fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
