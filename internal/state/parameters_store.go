// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elys-network/yieldcore/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveParameters stores params as the new active version for strategyID and returns its params_id.
// Previous versions are kept for audit with is_active = FALSE.
func SaveParameters(strategyID string, params types.StrategyParameters, changedBy string) (int64, error) {
	if DB == nil {
		return 0, ErrDatabaseNotInitialized
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal strategy parameters: %w", err)
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(`UPDATE strategy_parameters SET is_active = FALSE WHERE strategy_id = $1 AND is_active = TRUE;`, strategyID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate existing parameters for %s: %w", strategyID, err)
	}

	stmt := `
		INSERT INTO strategy_parameters (strategy_id, version, is_active, changed_by, params)
		VALUES (
			$1,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM strategy_parameters WHERE strategy_id = $1),
			TRUE, $2, $3
		)
		RETURNING params_id, version;`

	var paramsID int64
	var version int
	err = tx.QueryRow(stmt, strategyID, changedBy, paramsJSON).Scan(&paramsID, &version)
	if err != nil {
		return 0, fmt.Errorf("failed to insert strategy parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Str("strategy_id", strategyID).
		Int("version", version).
		Int64("params_id", paramsID).
		Str("changed_by", changedBy).
		Msg("Saved strategy parameters")
	return paramsID, nil
}

// LoadActiveParameters loads the active parameters of strategyID. It returns ErrNotFound when
// nothing was saved yet.
func LoadActiveParameters(strategyID string) (*types.StrategyParameters, error) {
	if DB == nil {
		return nil, ErrDatabaseNotInitialized
	}

	query := `
		SELECT params FROM strategy_parameters
		WHERE strategy_id = $1 AND is_active = TRUE
		ORDER BY version DESC
		LIMIT 1;`

	var paramsJSON []byte
	err := DB.QueryRow(query, strategyID).Scan(&paramsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Join(ErrNotFound, fmt.Errorf("no active parameters for strategy '%s'", strategyID))
		}
		return nil, fmt.Errorf("failed to load parameters for strategy '%s': %w", strategyID, err)
	}

	p := &types.StrategyParameters{}
	if err := json.Unmarshal(paramsJSON, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters for strategy '%s': %w", strategyID, err)
	}
	if p.Thresholds == nil {
		p.Thresholds = types.LiquidationThresholds{}
	}

	log.Info().Str("strategy_id", strategyID).Msg("Loaded active strategy parameters")
	return p, nil
}
