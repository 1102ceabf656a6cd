package planner

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/types"
)

// CalcInvestedAssets values pool liquidity plus non-base balances in base asset. Each
// non-base amount counts as the collateral its repayment would free, and any excess over the
// debt is converted at oracle prices. Idle base asset is not invested.
func (p *Planner) CalcInvestedAssets(ctx context.Context, basket types.TokenBasket) (sdkmath.Int, error) {
	base := basket.Base()
	amounts := make([]sdkmath.Int, basket.Len())
	for i := range amounts {
		amounts[i] = sdkmath.ZeroInt()
	}

	liquidity, err := p.depositor.CurrentLiquidity(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read pool liquidity: %w", err)
	}
	if liquidity.IsPositive() {
		quoted, err := p.depositor.QuoteExit(ctx, liquidity)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to quote pool exit: %w", err)
		}
		if len(quoted) != basket.Len() {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: pool quoted %d amounts for %d tokens", ErrLengthMismatch, len(quoted), basket.Len())
		}
		copy(amounts, quoted)
	}

	total := amounts[basket.BaseIndex]
	for i, token := range basket.Tokens {
		if i == basket.BaseIndex {
			continue
		}
		bal, err := p.wallet.BalanceOf(ctx, token)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to read balance of %s: %w", token, err)
		}
		amount := amounts[i].Add(bal)
		if !amount.IsPositive() {
			continue
		}

		status, err := p.aggregator.DebtStatus(ctx, base, token)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to read debt %s/%s: %w", base, token, err)
		}
		excess := amount
		if status.HasDebt() {
			toRepay := sdkmath.MinInt(amount, status.TotalDebt)
			freed, err := p.aggregator.QuoteRepay(ctx, base, token, toRepay)
			if err != nil {
				return sdkmath.ZeroInt(), fmt.Errorf("failed to quote repay of %s %s: %w", toRepay, token, err)
			}
			total = total.Add(freed)
			excess = amount.Sub(toRepay)
		}
		if excess.IsPositive() {
			value, err := p.liquidator.OracleValue(ctx, token, base, excess)
			if err != nil {
				return sdkmath.ZeroInt(), err
			}
			total = total.Add(value)
		}
	}
	return total, nil
}
