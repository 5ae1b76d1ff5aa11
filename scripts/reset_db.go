package main

import (
	"flag"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/keelswap/keel/internal/logger"
	"github.com/keelswap/keel/internal/state"
)

// Drops and optionally recreates the telemetry schema. Destructive: every
// recorded swap receipt, snapshot and claim is lost.
func main() {
	recreate := flag.Bool("recreate", true, "recreate the schema after dropping it")
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	flag.Parse()

	logger.Initialize(os.Getenv("LOG_LEVEL"))

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, relying on OS environment variables")
	}

	cfg := state.DBConfig{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envIntOr("DB_PORT", 5432),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	}
	if cfg.User == "" || cfg.DBName == "" {
		log.Fatal().Msg("DB_USER and DB_NAME must be set")
	}

	if !*yes {
		log.Fatal().Msg("This wipes all recorded telemetry; rerun with -yes to confirm")
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("dbname", cfg.DBName).
		Msg("Resetting database")

	if err := state.InitDB(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer state.CloseDB()

	if err := state.DropSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to drop schema")
	}

	if *recreate {
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to recreate schema")
		}
	}
	log.Info().Msg("Database reset complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatal().Str("key", key).Str("value", v).Msg("Invalid integer environment variable")
		return fallback
	}
	return n
}
