// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

var (
	ErrDatabaseNotInitialized = errors.New("database not initialized")
	ErrNotFound               = errors.New("record not found")
)

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(10)
	DB.SetMaxIdleConns(10)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("Connected to the PostgreSQL database")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// Amounts are NUMERIC(78,0): wide enough for any 256-bit integer.
const schemaSQL = `
	CREATE TABLE IF NOT EXISTS strategy_parameters (
		params_id SERIAL PRIMARY KEY,
		strategy_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		changed_by TEXT NOT NULL DEFAULT '',
		params JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (strategy_id, version)
	);
	CREATE INDEX IF NOT EXISTS idx_strategy_parameters_active ON strategy_parameters(strategy_id, is_active, version DESC);

	CREATE TABLE IF NOT EXISTS valuation_snapshots (
		strategy_id TEXT PRIMARY KEY,
		invested_assets NUMERIC(78,0) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cycle_reports (
		report_id BIGSERIAL PRIMARY KEY,
		cycle_id TEXT NOT NULL UNIQUE,
		cycle_number INTEGER NOT NULL,
		strategy_id TEXT NOT NULL,
		report_timestamp TIMESTAMPTZ NOT NULL,
		invested_before NUMERIC(78,0) NOT NULL,
		invested_after NUMERIC(78,0) NOT NULL,
		earned NUMERIC(78,0) NOT NULL,
		lost NUMERIC(78,0) NOT NULL,
		performance NUMERIC(78,0) NOT NULL,
		insurance NUMERIC(78,0) NOT NULL,
		reinvested NUMERIC(78,0) NOT NULL,
		liquidity_added NUMERIC(78,0) NOT NULL,
		forwarded_denoms TEXT[] NOT NULL DEFAULT '{}',
		forwarded_amounts TEXT[] NOT NULL DEFAULT '{}',
		reward_denoms TEXT[] NOT NULL DEFAULT '{}',
		reward_amounts TEXT[] NOT NULL DEFAULT '{}',
		duration_ms BIGINT NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_cycle_reports_strategy_timestamp ON cycle_reports(strategy_id, report_timestamp DESC);

	CREATE TABLE IF NOT EXISTS payback_receipts (
		receipt_id TEXT PRIMARY KEY,
		strategy_id TEXT NOT NULL,
		asset TEXT NOT NULL,
		requested NUMERIC(78,0) NOT NULL,
		returned NUMERIC(78,0) NOT NULL,
		partial BOOLEAN NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		receipt_timestamp TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payback_receipts_strategy_timestamp ON payback_receipts(strategy_id, receipt_timestamp DESC);
`

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return ErrDatabaseNotInitialized
	}

	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := ensureCycleCounterTable(); err != nil {
		return err
	}

	log.Info().Msg("Database schema ensured")
	return nil
}

// DropSchema removes every strategy table. Only used by scripts/reset_db.go.
func DropSchema() error {
	if DB == nil {
		return ErrDatabaseNotInitialized
	}

	dropSQL := `
		DROP TABLE IF EXISTS payback_receipts CASCADE;
		DROP TABLE IF EXISTS cycle_reports CASCADE;
		DROP TABLE IF EXISTS valuation_snapshots CASCADE;
		DROP TABLE IF EXISTS strategy_parameters CASCADE;
		DROP TABLE IF EXISTS cycle_counter CASCADE;
	`
	if _, err := DB.Exec(dropSQL); err != nil {
		return fmt.Errorf("failed to drop strategy tables: %w", err)
	}
	log.Warn().Msg("Dropped all strategy tables")
	return nil
}

// TestDBConnection checks if the database connection is alive.
func TestDBConnection() error {
	if DB == nil {
		return ErrDatabaseNotInitialized
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
