/*

This file contains the default parameters for a strategy instance.

They are used when no parameters were persisted for the strategy yet. Every value can later be
changed at runtime by the operator or governance role.

*/

package config

import (
	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/types"
)

// DefaultStrategyParameters returns the baseline parameters. The performance receiver is
// taken from the environment so LoadConfig must run first.
func DefaultStrategyParameters() types.StrategyParameters {
	return types.StrategyParameters{
		Compound: types.CompoundConfig{
			CompoundRatio: 50_000, // Reinvest half of every harvest.
			// Rationale: the other half leaves the strategy through the forwarder, which
			// keeps part of the yield liquid for the upstream vault.
		},

		Performance: types.PerformanceConfig{
			Fee: 10_000, // 10% of each reward is taken as performance fee.
			// Rationale: taken before the compound/forward split so the fee is charged on gross yield.

			Receiver: PerformanceReceiver,

			InsuranceSplit: 50_000, // Half of the fee funds the insurance reserve.
			// Rationale: the reserve covers losses reported to the splitter after a bad cycle.
		},

		Thresholds: types.LiquidationThresholds{
			// Empty: every token uses DEFAULT_LIQUIDATION_THRESHOLD until the operator sets one.
		},

		ReinvestThresholdPercent: 1_000, // Reinvest when idle base asset exceeds 1% of invested value.
		// Rationale: below 1% the gas and swap cost of re-entering the pool outweighs the yield.

		LiquidationSlippage: 3_000, // Allow up to 3% slippage on reward liquidations.
		// Rationale: reward tokens are often thin markets; tighter slippage leaves them unsold.

		PriceImpactTolerance: 2_000, // Reject swaps deviating more than 2% from the oracle.
		// Rationale: the independent oracle check is the last guard against a manipulated pool.

		SafetyGap: 1_000, // 1% margin on sells and liquidity withdrawals.
		// Rationale: covers exit slippage and swap fees so a withdrawal rarely comes back short.
	}
}

// SeedThresholds sets a uniform liquidation threshold for every basket token.
func SeedThresholds(p *types.StrategyParameters, basket types.TokenBasket, threshold sdkmath.Int) {
	if p.Thresholds == nil {
		p.Thresholds = types.LiquidationThresholds{}
	}
	for _, t := range basket.Tokens {
		p.Thresholds[t] = threshold
	}
}
