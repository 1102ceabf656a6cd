package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/elys-network/yieldcore/internal/types"
	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// StrategyID identifies this strategy instance in the database.
	StrategyID string

	// Basket is the ordered pool token list plus the base asset index.
	Basket types.TokenBasket

	// LogLevel is passed to logger.Initialize.
	LogLevel string
	// WebPort is the dashboard/metrics port.
	WebPort string
	// CycleInterval is the delay between two doHardWork runs.
	CycleInterval time.Duration
	// Mode selects the collaborator backend. Only "paper" is supported by this binary.
	Mode string
)

const (
	DEFAULT_WEB_PORT       = "8080"
	DEFAULT_CYCLE_INTERVAL = 10 * time.Minute
	DEFAULT_LOG_LEVEL      = "info"
	MODE_PAPER             = "paper"
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	StrategyID, err = getEnv("STRATEGY_ID")
	if err != nil {
		return err
	}

	tokensRaw, err := getEnv("BASKET_TOKENS")
	if err != nil {
		return err
	}
	baseIndex, err := getEnvAsInt("BASKET_BASE_INDEX")
	if err != nil {
		return err
	}
	Basket, err = types.NewTokenBasket(splitList(tokensRaw), baseIndex)
	if err != nil {
		return err
	}

	if err := loadRoleConfig(); err != nil {
		return err
	}

	LogLevel = getEnvOrDefault("LOG_LEVEL", DEFAULT_LOG_LEVEL)
	WebPort = getEnvOrDefault("WEB_PORT", DEFAULT_WEB_PORT)
	Mode = getEnvOrDefault("STRATEGY_MODE", "")

	CycleInterval = DEFAULT_CYCLE_INTERVAL
	if raw, ok := os.LookupEnv("CYCLE_INTERVAL"); ok && raw != "" {
		CycleInterval, err = time.ParseDuration(raw)
		if err != nil || CycleInterval <= 0 {
			return errors.New("environment variable CYCLE_INTERVAL must be a positive duration, got: " + raw)
		}
	}

	log.Debug().
		Str("StrategyID", StrategyID).
		Strs("Basket", Basket.Tokens).
		Str("Base", Basket.Base()).
		Str("Mode", Mode).
		Dur("CycleInterval", CycleInterval).
		Msg("Configuration loaded successfully.")

	return nil
}

// splitList splits a comma separated env value, dropping blanks.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}
