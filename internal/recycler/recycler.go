/*

The reward recycler splits harvested rewards into a forwarded share, a performance fee and a
compounded remainder.

The performance fee is taken from the gross reward first. What remains is split by the compound
ratio into the forwarded amount, which is returned untouched in reward-token units, and the
compounded amount. Rewards that are neither the base asset nor a basket token are liquidated
into the base asset when they are above their threshold; below it they stay on the balance as
dust.

*/

package recycler

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/liquidator"
	"github.com/elys-network/yieldcore/internal/logger"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
	"github.com/rs/zerolog"
)

var ErrLengthMismatch = errors.New("reward tokens and amounts must have the same length")

// Split is the three-way division of one reward amount.
type Split struct {
	Performance sdkmath.Int
	Forward     sdkmath.Int
	Compound    sdkmath.Int
}

// SplitReward divides amount by performanceFee first, then by compoundRatio. The three parts
// always add up to amount.
func SplitReward(amount sdkmath.Int, compoundRatio, performanceFee int64) Split {
	fee := utils.MulRatio(amount, performanceFee)
	forward := utils.MulRatio(amount.Sub(fee), utils.DENOMINATOR-compoundRatio)
	return Split{
		Performance: fee,
		Forward:     forward,
		Compound:    amount.Sub(fee).Sub(forward),
	}
}

type Recycler struct {
	logger     zerolog.Logger
	liquidator *liquidator.Liquidator
}

func New(liq *liquidator.Liquidator) *Recycler {
	return &Recycler{
		logger:     logger.GetForComponent("reward_recycler"),
		liquidator: liq,
	}
}

// Recycle processes every reward pair and returns the amounts to forward (per reward token)
// and the total performance and insurance amount in base asset.
func (r *Recycler) Recycle(
	ctx context.Context,
	basket types.TokenBasket,
	rewardTokens []string,
	rewardAmounts []sdkmath.Int,
	params types.StrategyParameters,
) (amountsToForward []sdkmath.Int, amountToPerformanceAndInsurance sdkmath.Int, err error) {
	amountToPerformanceAndInsurance = sdkmath.ZeroInt()
	if len(rewardTokens) != len(rewardAmounts) {
		return nil, amountToPerformanceAndInsurance, fmt.Errorf("%w: %d tokens, %d amounts", ErrLengthMismatch, len(rewardTokens), len(rewardAmounts))
	}

	base := basket.Base()
	amountsToForward = utils.ZeroInts(len(rewardTokens))

	for i, token := range rewardTokens {
		amount := rewardAmounts[i]
		if amount.IsNil() || !amount.IsPositive() {
			continue
		}
		split := SplitReward(amount, params.Compound.CompoundRatio, params.Performance.Fee)
		amountsToForward[i] = split.Forward

		var perf sdkmath.Int
		switch {
		case token == base:
			perf = split.Performance

		case basket.Contains(token):
			// compound part is picked up by the next pool deposit
			perf, err = r.liquidateFee(ctx, token, base, split.Performance, params.Thresholds.For(token), params)
			if err != nil {
				return nil, sdkmath.ZeroInt(), err
			}

		default:
			perf, err = r.liquidateForeign(ctx, token, base, split, params)
			if err != nil {
				return nil, sdkmath.ZeroInt(), err
			}
		}
		amountToPerformanceAndInsurance = amountToPerformanceAndInsurance.Add(perf)

		r.logger.Debug().
			Str("token", token).
			Str("amount", amount.String()).
			Str("forward", split.Forward.String()).
			Str("compound", split.Compound.String()).
			Str("performance", perf.String()).
			Msg("Reward recycled")
	}

	r.logger.Info().
		Int("rewards", len(rewardTokens)).
		Str("performanceAndInsurance", amountToPerformanceAndInsurance.String()).
		Msg("Recycle completed")
	return amountsToForward, amountToPerformanceAndInsurance, nil
}

func (r *Recycler) liquidateFee(ctx context.Context, token, base string, fee, threshold sdkmath.Int, params types.StrategyParameters) (sdkmath.Int, error) {
	_, received, err := r.liquidator.Liquidate(ctx, liquidator.Request{
		TokenIn:   token,
		TokenOut:  base,
		AmountIn:  fee,
		Threshold: threshold,
		Slippage:  params.LiquidationSlippage,
		Tolerance: params.PriceImpactTolerance,
	})
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to liquidate performance fee in %s: %w", token, err)
	}
	return received, nil
}

// liquidateForeign sells fee and compound parts together and returns the fee's pro-rata share
// of the proceeds. The compound share stays on the balance as base asset.
func (r *Recycler) liquidateForeign(ctx context.Context, token, base string, split Split, params types.StrategyParameters) (sdkmath.Int, error) {
	toSell := split.Performance.Add(split.Compound)
	threshold := sdkmath.MaxInt(params.Thresholds.For(token), sdkmath.NewInt(types.DEFAULT_LIQUIDATION_THRESHOLD))

	spent, received, err := r.liquidator.Liquidate(ctx, liquidator.Request{
		TokenIn:   token,
		TokenOut:  base,
		AmountIn:  toSell,
		Threshold: threshold,
		Slippage:  params.LiquidationSlippage,
		Tolerance: params.PriceImpactTolerance,
	})
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to liquidate reward %s: %w", token, err)
	}
	if spent.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return utils.MulDiv(received, split.Performance, toSell), nil
}
