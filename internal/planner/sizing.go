package planner

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
)

// GetAmountToSell returns how much collateral must be sold into the borrow asset so that
// repaying the bought amount frees remainingRequestedAmount of net collateral.
//
// Selling x collateral buys x*alpha of the borrow asset; repaying it frees x*alpha*C/D
// collateral, a net gain of x*(alpha*C/D - 1). The result carries safetyGap and is capped at
// the amount that clears the whole debt.
func GetAmountToSell(
	remainingRequestedAmount, totalDebt, totalCollateral sdkmath.Int,
	prices []sdkmath.Int,
	decimals []int,
	indexCollateral, indexBorrow int,
	balanceBorrowAsset sdkmath.Int,
	safetyGap int64,
) sdkmath.Int {
	zero := sdkmath.ZeroInt()
	if totalDebt.IsNil() || totalCollateral.IsNil() || !totalDebt.IsPositive() || !totalCollateral.IsPositive() {
		return zero
	}
	if remainingRequestedAmount.IsNil() || !remainingRequestedAmount.IsPositive() {
		return zero
	}

	debt, collateral := totalDebt, totalCollateral
	if !balanceBorrowAsset.IsNil() && balanceBorrowAsset.IsPositive() {
		// held borrow asset repays directly; the collateral it frees leaves the ratio unchanged
		sub := sdkmath.MinInt(balanceBorrowAsset, debt)
		collateral = collateral.Sub(utils.MulDiv(collateral, sub, debt))
		debt = debt.Sub(sub)
		if !debt.IsPositive() || !collateral.IsPositive() {
			return zero
		}
	}

	priceC, priceB := prices[indexCollateral], prices[indexBorrow]
	if !priceC.IsPositive() || !priceB.IsPositive() {
		return zero
	}
	// borrow units per collateral unit, 18 decimals
	alpha18 := utils.MulDiv(
		priceC.Mul(utils.Pow10(decimals[indexBorrow])),
		utils.One18(),
		priceB.Mul(utils.Pow10(decimals[indexCollateral])),
	)
	if !alpha18.IsPositive() {
		return zero
	}

	ratio18 := utils.MulDiv(alpha18, collateral, debt)
	if ratio18.LTE(utils.One18()) {
		return zero
	}

	amountOut := utils.MulDiv(
		sdkmath.MinInt(remainingRequestedAmount, collateral),
		utils.One18(),
		ratio18.Sub(utils.One18()),
	)
	fullDebt := utils.MulDiv(debt, utils.One18(), alpha18)
	return utils.AddGap(sdkmath.MinInt(amountOut, fullDebt), safetyGap)
}

// GetLiquidityAmount returns how much pool liquidity to withdraw so that, together with the
// collateral freed by repaying debts from current balances, targetAmount of base asset is
// produced. targetAmount zero withdraws everything. amountsToConvert reports the non-base
// balances the caller should convert afterwards.
func (p *Planner) GetLiquidityAmount(
	ctx context.Context,
	targetAmount sdkmath.Int,
	basket types.TokenBasket,
	investedAssets, depositorLiquidity sdkmath.Int,
	safetyGap int64,
) (resultAmount sdkmath.Int, amountsToConvert []sdkmath.Int, err error) {
	amountsToConvert = utils.ZeroInts(basket.Len())
	base := basket.Base()

	if targetAmount.IsNil() || targetAmount.IsZero() {
		for i, token := range basket.Tokens {
			if i == basket.BaseIndex {
				continue
			}
			bal, err := p.wallet.BalanceOf(ctx, token)
			if err != nil {
				return sdkmath.ZeroInt(), nil, fmt.Errorf("failed to read balance of %s: %w", token, err)
			}
			amountsToConvert[i] = bal
		}
		return depositorLiquidity, amountsToConvert, nil
	}

	free := sdkmath.ZeroInt()
	for i, token := range basket.Tokens {
		if i == basket.BaseIndex {
			continue
		}
		bal, err := p.wallet.BalanceOf(ctx, token)
		if err != nil {
			return sdkmath.ZeroInt(), nil, fmt.Errorf("failed to read balance of %s: %w", token, err)
		}
		if !bal.IsPositive() {
			continue
		}
		status, err := p.aggregator.DebtStatus(ctx, base, token)
		if err != nil {
			return sdkmath.ZeroInt(), nil, fmt.Errorf("failed to read debt %s/%s: %w", base, token, err)
		}
		if !status.HasDebt() {
			continue
		}
		toRepay := sdkmath.MinInt(bal, status.TotalDebt)
		quoted, err := p.aggregator.QuoteRepay(ctx, base, token, toRepay)
		if err != nil {
			return sdkmath.ZeroInt(), nil, fmt.Errorf("failed to quote repay of %s %s: %w", toRepay, token, err)
		}
		free = free.Add(quoted)
		amountsToConvert[i] = toRepay

		if free.GTE(targetAmount) {
			p.logger.Debug().
				Str("target", targetAmount.String()).
				Str("free", free.String()).
				Msg("Balances cover the target, no liquidity needed")
			return sdkmath.ZeroInt(), amountsToConvert, nil
		}
	}

	remainingInvested := utils.SubFloor(investedAssets, free)
	if !remainingInvested.IsPositive() {
		return depositorLiquidity, amountsToConvert, nil
	}
	// beyond the invested value every unit of liquidity is needed anyway
	remainingTarget := sdkmath.MinInt(targetAmount.Sub(free), remainingInvested)

	resultAmount = utils.MulDiv(utils.AddGap(depositorLiquidity, safetyGap), remainingTarget, remainingInvested)
	resultAmount = sdkmath.MinInt(resultAmount, depositorLiquidity)

	p.logger.Debug().
		Str("target", targetAmount.String()).
		Str("free", free.String()).
		Str("liquidity", resultAmount.String()).
		Msg("Liquidity to withdraw computed")
	return resultAmount, amountsToConvert, nil
}
