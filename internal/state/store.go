package state

import (
	"errors"

	"github.com/elys-network/yieldcore/internal/logger"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/rs/zerolog"
)

// PostgresStore binds the package-level persistence functions to one strategy instance.
// It is what the orchestrator and the web server hold instead of calling DB directly.
type PostgresStore struct {
	strategyID string
	logger     zerolog.Logger
}

func NewPostgresStore(strategyID string) *PostgresStore {
	return &PostgresStore{
		strategyID: strategyID,
		logger:     logger.GetForComponent("strategy_store").With().Str("strategy_id", strategyID).Logger(),
	}
}

func (s *PostgresStore) StrategyID() string { return s.strategyID }

// LoadParameters returns (nil, nil) when nothing was persisted yet.
func (s *PostgresStore) LoadParameters() (*types.StrategyParameters, error) {
	p, err := LoadActiveParameters(s.strategyID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info().Msg("No persisted parameters, defaults apply")
		return nil, nil
	}
	return p, err
}

func (s *PostgresStore) SaveParameters(params types.StrategyParameters, changedBy string) error {
	_, err := SaveParameters(s.strategyID, params, changedBy)
	return err
}

// LoadValuationSnapshot returns (nil, nil) for a strategy that was never valued.
func (s *PostgresStore) LoadValuationSnapshot() (*types.ValuationSnapshot, error) {
	snap, err := LoadValuationSnapshot(s.strategyID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return snap, err
}

func (s *PostgresStore) SaveValuationSnapshot(snapshot types.ValuationSnapshot) error {
	return SaveValuationSnapshot(snapshot)
}

func (s *PostgresStore) NextCycleNumber() (int, error) {
	return IncrementCycleNumber(s.strategyID)
}

func (s *PostgresStore) SaveCycleReport(report types.CycleReport) (int64, error) {
	return SaveCycleReport(report)
}

func (s *PostgresStore) SavePaybackReceipt(receipt types.PaybackReceipt) error {
	return SavePaybackReceipt(receipt)
}

func (s *PostgresStore) RecentCycleReports(limit int) ([]types.CycleReport, error) {
	return GetRecentCycleReports(s.strategyID, limit)
}

// CycleReport hides reports that belong to another strategy sharing the database.
func (s *PostgresStore) CycleReport(reportID int64) (*types.CycleReport, error) {
	r, err := GetCycleReportByID(reportID)
	if err != nil {
		return nil, err
	}
	if r.StrategyID != s.strategyID {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *PostgresStore) LatestCycleReport() (*types.CycleReport, error) {
	return GetLatestCycleReport(s.strategyID)
}

func (s *PostgresStore) RecentPaybackReceipts(limit int) ([]types.PaybackReceipt, error) {
	return GetRecentPaybackReceipts(s.strategyID, limit)
}

func (s *PostgresStore) Summary() (*StrategySummary, error) {
	return GetStrategySummary(s.strategyID)
}

func (s *PostgresStore) Healthy() error {
	return TestDBConnection()
}
