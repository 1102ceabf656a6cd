/*

The withdrawal planner turns debt, collateral and idle balances into the base asset.

Every debt position of the strategy uses the base asset as collateral and one of the other
basket tokens as the borrowed asset. Repaying a debt with the borrowed token frees base-asset
collateral; selling base asset into the borrowed token first lets the planner free more
collateral than it spends.

*/

package planner

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/external"
	"github.com/elys-network/yieldcore/internal/liquidator"
	"github.com/elys-network/yieldcore/internal/logger"
	"github.com/elys-network/yieldcore/internal/utils"
	"github.com/rs/zerolog"
)

var (
	ErrLengthMismatch      = errors.New("tokens and amounts must have the same length")
	ErrRepayExceedsDebt    = errors.New("repay amount exceeds outstanding debt")
	ErrInsufficientBalance = errors.New("repay amount exceeds available balance")
)

var maxAmount = sdkmath.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)))

// MaxAmount is the "close everything" sentinel accepted by ClosePositionsToGetAmount.
func MaxAmount() sdkmath.Int {
	return maxAmount
}

// IsMax reports whether amount is the MaxAmount sentinel.
func IsMax(amount sdkmath.Int) bool {
	return !amount.IsNil() && amount.Equal(maxAmount)
}

type Planner struct {
	logger     zerolog.Logger
	aggregator external.LendingAggregator
	wallet     external.Wallet
	oracle     external.PriceOracle
	depositor  external.PoolDepositor
	liquidator *liquidator.Liquidator
}

func New(
	aggregator external.LendingAggregator,
	wallet external.Wallet,
	oracle external.PriceOracle,
	depositor external.PoolDepositor,
	liq *liquidator.Liquidator,
) *Planner {
	return &Planner{
		logger:     logger.GetForComponent("withdrawal_planner"),
		aggregator: aggregator,
		wallet:     wallet,
		oracle:     oracle,
		depositor:  depositor,
		liquidator: liq,
	}
}

// CloseExact repays exactly amountRepay of borrowAsset. Asking for more than the available
// balance or the outstanding debt is a caller bug and fails without repaying anything.
func (p *Planner) CloseExact(ctx context.Context, borrowAsset, collateralAsset string, amountRepay, availableBalance sdkmath.Int) (collateralReturned, repaidAmount sdkmath.Int, err error) {
	collateralReturned, repaidAmount = sdkmath.ZeroInt(), sdkmath.ZeroInt()
	if amountRepay.IsNil() || !amountRepay.IsPositive() {
		return collateralReturned, repaidAmount, nil
	}
	if availableBalance.IsNil() || amountRepay.GT(availableBalance) {
		return collateralReturned, repaidAmount, errors.Join(ErrInsufficientBalance,
			fmt.Errorf("repay %s %s with available %s", amountRepay, borrowAsset, availableBalance))
	}

	status, err := p.aggregator.DebtStatus(ctx, collateralAsset, borrowAsset)
	if err != nil {
		return collateralReturned, repaidAmount, fmt.Errorf("failed to read debt %s/%s: %w", collateralAsset, borrowAsset, err)
	}
	if amountRepay.GT(status.TotalDebt) {
		return collateralReturned, repaidAmount, errors.Join(ErrRepayExceedsDebt,
			fmt.Errorf("repay %s %s with debt %s", amountRepay, borrowAsset, status.TotalDebt))
	}

	return p.repay(ctx, collateralAsset, borrowAsset, amountRepay)
}

// CloseFlexible repays min(amountToRepay, balance, debt) and never fails on insufficiency.
func (p *Planner) CloseFlexible(ctx context.Context, borrowAsset, collateralAsset string, amountToRepay sdkmath.Int) (collateralReturned, repaidAmount sdkmath.Int, err error) {
	collateralReturned, repaidAmount = sdkmath.ZeroInt(), sdkmath.ZeroInt()
	if amountToRepay.IsNil() || !amountToRepay.IsPositive() {
		return collateralReturned, repaidAmount, nil
	}

	balance, err := p.wallet.BalanceOf(ctx, borrowAsset)
	if err != nil {
		return collateralReturned, repaidAmount, fmt.Errorf("failed to read balance of %s: %w", borrowAsset, err)
	}
	status, err := p.aggregator.DebtStatus(ctx, collateralAsset, borrowAsset)
	if err != nil {
		return collateralReturned, repaidAmount, fmt.Errorf("failed to read debt %s/%s: %w", collateralAsset, borrowAsset, err)
	}

	amount := utils.Min3(amountToRepay, balance, status.TotalDebt)
	if !amount.IsPositive() {
		return collateralReturned, repaidAmount, nil
	}
	return p.repay(ctx, collateralAsset, borrowAsset, amount)
}

func (p *Planner) repay(ctx context.Context, collateralAsset, borrowAsset string, amount sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	returned, repaid, err := p.aggregator.Repay(ctx, collateralAsset, borrowAsset, amount)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("failed to repay %s %s: %w", amount, borrowAsset, err)
	}
	p.logger.Debug().
		Str("borrowAsset", borrowAsset).
		Str("repaid", repaid.String()).
		Str("collateralReturned", returned.String()).
		Msg("Debt repaid")
	return returned, repaid, nil
}
