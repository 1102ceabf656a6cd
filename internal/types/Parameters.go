/*

This file contains the tunable strategy parameters: compounding, performance fee,
liquidation thresholds and the execution guards used by every component.

*/

package types

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// DEFAULT_LIQUIDATION_THRESHOLD is the dust floor (in smallest token units) used when a token
// has no explicit liquidation threshold.
const DEFAULT_LIQUIDATION_THRESHOLD = 100_000

// ratioDenominator mirrors utils.DENOMINATOR; types must not import utils.
const ratioDenominator = 100_000

var ErrInvalidParameters = errors.New("strategy parameters contain invalid values")

// LiquidationThresholds maps token -> minimum amount below which a conversion is skipped.
type LiquidationThresholds map[string]sdkmath.Int

// For returns the explicit threshold of token, or DEFAULT_LIQUIDATION_THRESHOLD.
func (l LiquidationThresholds) For(token string) sdkmath.Int {
	if v, ok := l[token]; ok && !v.IsNil() {
		return v
	}
	return sdkmath.NewInt(DEFAULT_LIQUIDATION_THRESHOLD)
}

// Clone returns an independent copy.
func (l LiquidationThresholds) Clone() LiquidationThresholds {
	out := make(LiquidationThresholds, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// CompoundConfig is the fraction of each harvested reward that is reinvested.
type CompoundConfig struct {
	CompoundRatio int64 `json:"compound_ratio"` // 0..100000
}

// PerformanceConfig governs the performance fee taken from rewards.
type PerformanceConfig struct {
	Fee            int64  `json:"fee"`             // 0..100000
	Receiver       string `json:"receiver"`        // receives the non-insurance part of the fee
	InsuranceSplit int64  `json:"insurance_split"` // share of the fee sent to insurance, 0..100000
}

// StrategyParameters holds all tunable values of a strategy instance.
type StrategyParameters struct {
	Compound    CompoundConfig        `json:"compound"`
	Performance PerformanceConfig     `json:"performance"`
	Thresholds  LiquidationThresholds `json:"liquidation_thresholds"`

	ReinvestThresholdPercent int64 `json:"reinvest_threshold_percent"` // idle/invested ratio that triggers a reinvest, in DENOMINATOR units
	LiquidationSlippage      int64 `json:"liquidation_slippage"`       // max slippage passed to the swap service
	PriceImpactTolerance     int64 `json:"price_impact_tolerance"`     // max deviation of a swap from the oracle price
	SafetyGap                int64 `json:"safety_gap"`                 // extra margin on sells and liquidity withdrawals (1000 = 1%)
}

// Clone returns a deep copy so callers can't mutate shared thresholds.
func (p StrategyParameters) Clone() StrategyParameters {
	p.Thresholds = p.Thresholds.Clone()
	return p
}

// Validate checks every ratio is inside [0, DENOMINATOR] and thresholds are non-negative.
func (p StrategyParameters) Validate() error {
	ratios := []struct {
		name  string
		value int64
	}{
		{"compound ratio", p.Compound.CompoundRatio},
		{"performance fee", p.Performance.Fee},
		{"insurance split", p.Performance.InsuranceSplit},
		{"reinvest threshold percent", p.ReinvestThresholdPercent},
		{"liquidation slippage", p.LiquidationSlippage},
		{"price impact tolerance", p.PriceImpactTolerance},
		{"safety gap", p.SafetyGap},
	}
	for _, r := range ratios {
		if r.value < 0 || r.value > ratioDenominator {
			return errors.Join(ErrInvalidParameters, fmt.Errorf("%s must be between 0 and %d, got %d", r.name, ratioDenominator, r.value))
		}
	}
	if p.Performance.Fee > 0 && p.Performance.Receiver == "" {
		return errors.Join(ErrInvalidParameters, errors.New("performance receiver is required when a fee is set"))
	}
	for token, v := range p.Thresholds {
		if v.IsNil() || v.IsNegative() {
			return errors.Join(ErrInvalidParameters, fmt.Errorf("threshold for %s is negative", token))
		}
	}
	return nil
}
