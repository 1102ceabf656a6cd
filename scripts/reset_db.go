package main

import (
	"flag"
	"os"
	"strconv"

	"github.com/elys-network/yieldcore/internal/logger"
	"github.com/elys-network/yieldcore/internal/state"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	cycleOnly := flag.Bool("cycle-only", false, "only reset the cycle counter of -strategy, keep reports and parameters")
	strategyID := flag.String("strategy", os.Getenv("STRATEGY_ID"), "strategy whose cycle counter is reset with -cycle-only")
	cycle := flag.Int("cycle", 0, "cycle number to reset to with -cycle-only")
	flag.Parse()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Initialize(logLevel)
	log.Info().Msg("Starting database reset script...")

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	dbCfg := state.DBConfig{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     5432,
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	}
	if port, err := strconv.Atoi(os.Getenv("DB_PORT")); err == nil {
		dbCfg.Port = port
	}
	if dbCfg.User == "" {
		log.Fatal().Msg("DB_USER environment variable not set.")
	}
	if dbCfg.DBName == "" {
		log.Fatal().Msg("DB_NAME environment variable not set.")
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("user", dbCfg.User).
		Str("dbname", dbCfg.DBName).
		Msg("Connecting to database")

	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer state.CloseDB()

	if *cycleOnly {
		if *strategyID == "" {
			log.Fatal().Msg("-cycle-only needs -strategy or STRATEGY_ID")
		}
		if err := state.ResetCycleNumber(*strategyID, *cycle); err != nil {
			log.Fatal().Err(err).Msg("Failed to reset cycle counter")
		}
		log.Info().Str("strategy_id", *strategyID).Int("cycle", *cycle).Msg("Cycle counter reset")
		return
	}

	log.Info().Msg("Connected to database. Attempting to drop all tables...")
	if err := state.DropSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to drop tables")
	}

	log.Info().Msg("Recreating database schema...")
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate database schema")
	}

	log.Info().Msg("Database reset complete!")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
