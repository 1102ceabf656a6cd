package planner

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/liquidator"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
)

// ConvertAfterWithdraw repays debts with the non-base tokens returned by a pool exit and swaps
// what is left above each token's threshold into the base asset. It returns the base asset
// gathered (freed collateral plus swap proceeds) and the amount repaid per token.
func (p *Planner) ConvertAfterWithdraw(
	ctx context.Context,
	basket types.TokenBasket,
	amountsToConvert []sdkmath.Int,
	params types.StrategyParameters,
) (collateralOut sdkmath.Int, repaidAmounts []sdkmath.Int, err error) {
	collateralOut = sdkmath.ZeroInt()
	if len(amountsToConvert) != basket.Len() {
		return collateralOut, nil, fmt.Errorf("%w: %d tokens, %d amounts", ErrLengthMismatch, basket.Len(), len(amountsToConvert))
	}
	repaidAmounts = utils.ZeroInts(basket.Len())
	base := basket.Base()

	for i, token := range basket.Tokens {
		amount := amountsToConvert[i]
		if i == basket.BaseIndex || amount.IsNil() || !amount.IsPositive() {
			continue
		}

		status, err := p.aggregator.DebtStatus(ctx, base, token)
		if err != nil {
			return collateralOut, repaidAmounts, fmt.Errorf("failed to read debt %s/%s: %w", base, token, err)
		}

		leftover := amount
		if status.HasDebt() {
			returned, repaid, err := p.CloseFlexible(ctx, token, base, sdkmath.MinInt(amount, status.TotalDebt))
			if err != nil {
				return collateralOut, repaidAmounts, err
			}
			collateralOut = collateralOut.Add(returned)
			repaidAmounts[i] = repaid
			leftover = utils.SubFloor(amount, repaid)
		}

		if leftover.IsPositive() {
			_, received, err := p.liquidator.Liquidate(ctx, liquidator.Request{
				TokenIn:   token,
				TokenOut:  base,
				AmountIn:  leftover,
				Threshold: params.Thresholds.For(token),
				Slippage:  params.LiquidationSlippage,
				Tolerance: params.PriceImpactTolerance,
			})
			if err != nil {
				return collateralOut, repaidAmounts, err
			}
			collateralOut = collateralOut.Add(received)
		}
	}

	p.logger.Info().
		Str("collateralOut", collateralOut.String()).
		Msg("Converted withdrawn tokens to base asset")
	return collateralOut, repaidAmounts, nil
}

// ClosePositionsToGetAmount sells base asset into each debt token and repays, until the
// net base asset gathered covers requestedAmount. MaxAmount closes every position.
// It returns the increase of the base-asset balance.
func (p *Planner) ClosePositionsToGetAmount(
	ctx context.Context,
	basket types.TokenBasket,
	requestedAmount sdkmath.Int,
	params types.StrategyParameters,
) (sdkmath.Int, error) {
	if requestedAmount.IsNil() || !requestedAmount.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	base := basket.Base()
	closeAll := IsMax(requestedAmount)

	baseBefore, err := p.wallet.BalanceOf(ctx, base)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read balance of %s: %w", base, err)
	}
	basePrice, err := p.oracle.Price(ctx, base)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to get price of %s: %w", base, err)
	}

	remaining := requestedAmount
	for i, token := range basket.Tokens {
		if i == basket.BaseIndex {
			continue
		}
		if !closeAll && !remaining.IsPositive() {
			break
		}

		status, err := p.aggregator.DebtStatus(ctx, base, token)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to read debt %s/%s: %w", base, token, err)
		}
		if !status.HasDebt() {
			continue
		}
		tokenBalance, err := p.wallet.BalanceOf(ctx, token)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to read balance of %s: %w", token, err)
		}
		tokenPrice, err := p.oracle.Price(ctx, token)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to get price of %s: %w", token, err)
		}

		toSell := GetAmountToSell(
			remaining, status.TotalDebt, status.TotalCollateral,
			[]sdkmath.Int{basePrice.Price18, tokenPrice.Price18},
			[]int{basePrice.Decimals, tokenPrice.Decimals},
			0, 1,
			tokenBalance,
			params.SafetyGap,
		)

		spent := sdkmath.ZeroInt()
		if toSell.IsPositive() {
			baseBalance, err := p.wallet.BalanceOf(ctx, base)
			if err != nil {
				return sdkmath.ZeroInt(), fmt.Errorf("failed to read balance of %s: %w", base, err)
			}
			spent, _, err = p.liquidator.Liquidate(ctx, liquidator.Request{
				TokenIn:   base,
				TokenOut:  token,
				AmountIn:  sdkmath.MinInt(toSell, baseBalance),
				Threshold: params.Thresholds.For(base),
				Slippage:  params.LiquidationSlippage,
				Tolerance: params.PriceImpactTolerance,
			})
			if err != nil {
				return sdkmath.ZeroInt(), err
			}
		}

		returned, repaid, err := p.CloseFlexible(ctx, token, base, status.TotalDebt)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		if !closeAll {
			remaining = utils.SubFloor(remaining, utils.SubFloor(returned, spent))
		}

		p.logger.Info().
			Str("token", token).
			Str("sold", spent.String()).
			Str("repaid", repaid.String()).
			Str("collateralReturned", returned.String()).
			Msg("Closed position")
	}

	baseAfter, err := p.wallet.BalanceOf(ctx, base)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read balance of %s: %w", base, err)
	}
	return utils.SubFloor(baseAfter, baseBefore), nil
}
