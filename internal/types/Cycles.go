/*

This file contains the types recorded once per work cycle and per payback request.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
)

// ValuationSnapshot is the last recorded invested-assets figure of a strategy.
type ValuationSnapshot struct {
	StrategyID     string      `json:"strategy_id"`
	InvestedAssets sdkmath.Int `json:"invested_assets"` // base-asset value of pool liquidity + net collateral
	UpdatedAt      time.Time   `json:"updated_at"`
}

// CycleReport is the outcome of one doHardWork.
type CycleReport struct {
	ReportID       int64            `json:"report_id,omitempty"` // Auto-incremented by DB
	CycleID        string           `json:"cycle_id"`
	CycleNumber    int              `json:"cycle_number"`
	StrategyID     string           `json:"strategy_id"`
	Timestamp      time.Time        `json:"timestamp"`
	InvestedBefore sdkmath.Int      `json:"invested_before"`
	InvestedAfter  sdkmath.Int      `json:"invested_after"`
	Earned         sdkmath.Int      `json:"earned"`
	Lost           sdkmath.Int      `json:"lost"`
	Forwarded      []sdktypes.Coin  `json:"forwarded"`
	Performance    sdkmath.Int      `json:"performance"`
	Insurance      sdkmath.Int      `json:"insurance"`
	Reinvested     sdkmath.Int      `json:"reinvested"`
	LiquidityAdded sdkmath.Int      `json:"liquidity_added"`
	Duration       time.Duration    `json:"duration"`
	Rewards        []sdktypes.Coin  `json:"rewards"`
}

// PaybackReceipt records one requirePayAmountBack call from the lending aggregator.
type PaybackReceipt struct {
	ReceiptID  string      `json:"receipt_id"`
	StrategyID string      `json:"strategy_id"`
	Asset      string      `json:"asset"`
	Requested  sdkmath.Int `json:"requested"`
	Returned   sdkmath.Int `json:"returned"`
	Partial    bool        `json:"partial"`
	Reason     string      `json:"reason,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
