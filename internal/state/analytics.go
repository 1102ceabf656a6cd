package state

import (
	"database/sql"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// StrategySummary represents aggregated cycle statistics of a strategy
type StrategySummary struct {
	StrategyID       string      `json:"strategy_id"`
	TotalCycles      int         `json:"total_cycles"`
	TotalEarned      sdkmath.Int `json:"total_earned"`
	TotalLost        sdkmath.Int `json:"total_lost"`
	TotalPerformance sdkmath.Int `json:"total_performance"`
	TotalInsurance   sdkmath.Int `json:"total_insurance"`
	TotalReinvested  sdkmath.Int `json:"total_reinvested"`
	PartialPaybacks  int         `json:"partial_paybacks"`
	LastUpdated      string      `json:"last_updated"`
}

const cycleReportColumns = `
	report_id, cycle_id, cycle_number, strategy_id, report_timestamp,
	invested_before, invested_after, earned, lost,
	performance, insurance, reinvested, liquidity_added,
	forwarded_denoms, forwarded_amounts, reward_denoms, reward_amounts,
	duration_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycleReport(row rowScanner) (*types.CycleReport, error) {
	var r types.CycleReport
	var investedBefore, investedAfter, earned, lost, performance, insurance, reinvested, liquidityAdded string
	var forwardedDenoms, forwardedAmounts, rewardDenoms, rewardAmounts []string
	var durationMs int64

	err := row.Scan(
		&r.ReportID, &r.CycleID, &r.CycleNumber, &r.StrategyID, &r.Timestamp,
		&investedBefore, &investedAfter, &earned, &lost,
		&performance, &insurance, &reinvested, &liquidityAdded,
		pq.Array(&forwardedDenoms), pq.Array(&forwardedAmounts),
		pq.Array(&rewardDenoms), pq.Array(&rewardAmounts),
		&durationMs,
	)
	if err != nil {
		return nil, err
	}

	targets := []struct {
		dst *sdkmath.Int
		src string
	}{
		{&r.InvestedBefore, investedBefore},
		{&r.InvestedAfter, investedAfter},
		{&r.Earned, earned},
		{&r.Lost, lost},
		{&r.Performance, performance},
		{&r.Insurance, insurance},
		{&r.Reinvested, reinvested},
		{&r.LiquidityAdded, liquidityAdded},
	}
	for _, t := range targets {
		if *t.dst, err = numericToInt(t.src); err != nil {
			return nil, err
		}
	}

	if r.Forwarded, err = arraysToCoins(forwardedDenoms, forwardedAmounts); err != nil {
		return nil, fmt.Errorf("forwarded coins: %w", err)
	}
	if r.Rewards, err = arraysToCoins(rewardDenoms, rewardAmounts); err != nil {
		return nil, fmt.Errorf("reward coins: %w", err)
	}
	r.Duration = durationFromMillis(durationMs)
	return &r, nil
}

// GetRecentCycleReports retrieves the latest cycle reports of a strategy, newest first
func GetRecentCycleReports(strategyID string, limit int) ([]types.CycleReport, error) {
	if DB == nil {
		return nil, ErrDatabaseNotInitialized
	}

	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `SELECT ` + cycleReportColumns + `
		FROM cycle_reports
		WHERE strategy_id = $1
		ORDER BY report_timestamp DESC
		LIMIT $2`

	rows, err := DB.Query(query, strategyID, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent cycle reports")
		return nil, fmt.Errorf("failed to query recent cycle reports: %w", err)
	}
	defer rows.Close()

	reports := make([]types.CycleReport, 0, limit)
	for rows.Next() {
		r, err := scanCycleReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle reports: %w", err)
	}

	log.Debug().Int("count", len(reports)).Msg("Retrieved recent cycle reports")
	return reports, nil
}

// GetCycleReportByID retrieves a specific cycle report
func GetCycleReportByID(reportID int64) (*types.CycleReport, error) {
	if DB == nil {
		return nil, ErrDatabaseNotInitialized
	}

	query := `SELECT ` + cycleReportColumns + ` FROM cycle_reports WHERE report_id = $1`

	r, err := scanCycleReport(DB.QueryRow(query, reportID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Join(ErrNotFound, fmt.Errorf("cycle report %d not found", reportID))
		}
		log.Error().Err(err).Int64("report_id", reportID).Msg("Failed to query cycle report by ID")
		return nil, fmt.Errorf("failed to query cycle report by ID: %w", err)
	}
	return r, nil
}

// GetLatestCycleReport retrieves the most recent cycle report of a strategy
func GetLatestCycleReport(strategyID string) (*types.CycleReport, error) {
	if DB == nil {
		return nil, ErrDatabaseNotInitialized
	}

	query := `SELECT ` + cycleReportColumns + `
		FROM cycle_reports
		WHERE strategy_id = $1
		ORDER BY report_timestamp DESC
		LIMIT 1`

	r, err := scanCycleReport(DB.QueryRow(query, strategyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Join(ErrNotFound, fmt.Errorf("no cycle reports for strategy '%s'", strategyID))
		}
		return nil, fmt.Errorf("failed to query latest cycle report: %w", err)
	}
	return r, nil
}

// GetRecentPaybackReceipts retrieves the latest payback receipts of a strategy, newest first
func GetRecentPaybackReceipts(strategyID string, limit int) ([]types.PaybackReceipt, error) {
	if DB == nil {
		return nil, ErrDatabaseNotInitialized
	}

	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT receipt_id, strategy_id, asset, requested, returned, partial, reason, receipt_timestamp
		FROM payback_receipts
		WHERE strategy_id = $1
		ORDER BY receipt_timestamp DESC
		LIMIT $2`

	rows, err := DB.Query(query, strategyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query payback receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]types.PaybackReceipt, 0, limit)
	for rows.Next() {
		var r types.PaybackReceipt
		var requested, returned string
		if err := rows.Scan(&r.ReceiptID, &r.StrategyID, &r.Asset, &requested, &returned, &r.Partial, &r.Reason, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan payback receipt: %w", err)
		}
		if r.Requested, err = numericToInt(requested); err != nil {
			return nil, err
		}
		if r.Returned, err = numericToInt(returned); err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payback receipts: %w", err)
	}
	return receipts, nil
}

// GetStrategySummary aggregates every stored cycle report of a strategy
func GetStrategySummary(strategyID string) (*StrategySummary, error) {
	if DB == nil {
		return nil, ErrDatabaseNotInitialized
	}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(earned), 0)::TEXT,
			COALESCE(SUM(lost), 0)::TEXT,
			COALESCE(SUM(performance), 0)::TEXT,
			COALESCE(SUM(insurance), 0)::TEXT,
			COALESCE(SUM(reinvested), 0)::TEXT,
			COALESCE(TO_CHAR(MAX(report_timestamp), 'YYYY-MM-DD"T"HH24:MI:SS'), ''),
			(SELECT COUNT(*) FROM payback_receipts WHERE strategy_id = $1 AND partial = TRUE)
		FROM cycle_reports
		WHERE strategy_id = $1`

	summary := &StrategySummary{StrategyID: strategyID}
	var earned, lost, performance, insurance, reinvested string
	err := DB.QueryRow(query, strategyID).Scan(
		&summary.TotalCycles, &earned, &lost, &performance, &insurance, &reinvested,
		&summary.LastUpdated, &summary.PartialPaybacks,
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get strategy summary")
		return nil, fmt.Errorf("failed to get strategy summary: %w", err)
	}

	targets := []struct {
		dst *sdkmath.Int
		src string
	}{
		{&summary.TotalEarned, earned},
		{&summary.TotalLost, lost},
		{&summary.TotalPerformance, performance},
		{&summary.TotalInsurance, insurance},
		{&summary.TotalReinvested, reinvested},
	}
	for _, t := range targets {
		if *t.dst, err = numericToInt(t.src); err != nil {
			return nil, err
		}
	}
	return summary, nil
}
