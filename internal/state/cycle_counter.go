/*

This file manages the persistent per-strategy cycle counter.
The counter is stored in the database so cycle numbers continue across restarts.

*/

package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ensureCycleCounterTable creates the cycle_counter table if it doesn't exist
func ensureCycleCounterTable() error {
	if DB == nil {
		return ErrDatabaseNotInitialized
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS cycle_counter (
			strategy_id TEXT PRIMARY KEY,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := DB.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create cycle_counter table: %w", err)
	}

	log.Debug().Msg("Ensured cycle_counter table exists")
	return nil
}

// GetCurrentCycleNumber returns the last cycle number of a strategy, 0 when it never ran.
func GetCurrentCycleNumber(strategyID string) (int, error) {
	if DB == nil {
		return 0, ErrDatabaseNotInitialized
	}

	query := `SELECT current_cycle FROM cycle_counter WHERE strategy_id = $1;`

	var currentCycle int
	err := DB.QueryRow(query, strategyID).Scan(&currentCycle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current cycle number: %w", err)
	}

	log.Debug().Str("strategy_id", strategyID).Int("currentCycle", currentCycle).Msg("Retrieved current cycle number")
	return currentCycle, nil
}

// IncrementCycleNumber increments the cycle counter of a strategy and returns the new value.
func IncrementCycleNumber(strategyID string) (int, error) {
	if DB == nil {
		return 0, ErrDatabaseNotInitialized
	}

	upsertQuery := `
		INSERT INTO cycle_counter (strategy_id, current_cycle, updated_at)
		VALUES ($1, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (strategy_id) DO UPDATE
		SET current_cycle = cycle_counter.current_cycle + 1,
		    updated_at = CURRENT_TIMESTAMP
		RETURNING current_cycle;`

	var newCycle int
	if err := DB.QueryRow(upsertQuery, strategyID).Scan(&newCycle); err != nil {
		return 0, fmt.Errorf("failed to increment cycle number: %w", err)
	}

	log.Info().Str("strategy_id", strategyID).Int("newCycle", newCycle).Msg("Incremented cycle counter")
	return newCycle, nil
}

// ResetCycleNumber resets the cycle counter to a specific value (for testing/maintenance)
func ResetCycleNumber(strategyID string, cycleNumber int) error {
	if DB == nil {
		return ErrDatabaseNotInitialized
	}

	if cycleNumber < 0 {
		return fmt.Errorf("cycle number cannot be negative: %d", cycleNumber)
	}

	upsertQuery := `
		INSERT INTO cycle_counter (strategy_id, current_cycle, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (strategy_id) DO UPDATE
		SET current_cycle = EXCLUDED.current_cycle,
		    updated_at = CURRENT_TIMESTAMP;`

	if _, err := DB.Exec(upsertQuery, strategyID, cycleNumber); err != nil {
		return fmt.Errorf("failed to reset cycle number to %d: %w", cycleNumber, err)
	}

	log.Warn().Str("strategy_id", strategyID).Int("cycleNumber", cycleNumber).Msg("Reset cycle counter")
	return nil
}
