// ./internal/state/snapshot_store.go
package state

import (
	"database/sql"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveValuationSnapshot upserts the invested-assets figure of a strategy.
func SaveValuationSnapshot(snapshot types.ValuationSnapshot) error {
	if DB == nil {
		return ErrDatabaseNotInitialized
	}

	query := `
		INSERT INTO valuation_snapshots (strategy_id, invested_assets, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (strategy_id) DO UPDATE
		SET invested_assets = EXCLUDED.invested_assets,
		    updated_at = EXCLUDED.updated_at;`

	_, err := DB.Exec(query, snapshot.StrategyID, intToNumeric(snapshot.InvestedAssets), snapshot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save valuation snapshot: %w", err)
	}

	log.Debug().
		Str("strategy_id", snapshot.StrategyID).
		Str("invested_assets", intToNumeric(snapshot.InvestedAssets)).
		Msg("Valuation snapshot saved")
	return nil
}

// LoadValuationSnapshot returns ErrNotFound when the strategy never recorded a valuation.
func LoadValuationSnapshot(strategyID string) (*types.ValuationSnapshot, error) {
	if DB == nil {
		return nil, ErrDatabaseNotInitialized
	}

	query := `SELECT strategy_id, invested_assets, updated_at FROM valuation_snapshots WHERE strategy_id = $1;`

	var snapshot types.ValuationSnapshot
	var invested string
	err := DB.QueryRow(query, strategyID).Scan(&snapshot.StrategyID, &invested, &snapshot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Join(ErrNotFound, fmt.Errorf("no valuation snapshot for strategy '%s'", strategyID))
		}
		return nil, fmt.Errorf("failed to load valuation snapshot: %w", err)
	}

	snapshot.InvestedAssets, err = numericToInt(invested)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// NUMERIC columns travel as decimal strings; sdkmath.Int is wider than any Go integer.
func intToNumeric(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}

func numericToInt(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid numeric amount %q", s)
	}
	return v, nil
}
