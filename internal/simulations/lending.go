package simulations

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/elys-network/yieldcore/internal/external"
	"github.com/elys-network/yieldcore/internal/liquidator"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
)

// LendingView is the simulated lending aggregator.
type LendingView struct{ c *Chain }

var _ external.LendingAggregator = LendingView{}

func (c *Chain) Lending() LendingView { return LendingView{c} }

func (v LendingView) Address() string { return v.c.aggregator }

func (v LendingView) QuoteBorrowAcrossVenues(_ context.Context, plan types.ConversionPlan) ([]types.VenueQuote, error) {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()

	collateralPrice, ok := c.prices[plan.SourceAsset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, plan.SourceAsset)
	}
	borrowPrice, ok := c.prices[plan.TargetAsset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, plan.TargetAsset)
	}

	quotes := make([]types.VenueQuote, 0, len(c.state.venues))
	for _, venue := range c.state.venues {
		if venue.Asset != plan.TargetAsset || !venue.Capacity.IsPositive() {
			continue
		}
		collateral := sdkmath.MinInt(venue.Capacity, plan.AmountIn)
		value, err := liquidator.ConvertByPrice(collateral, collateralPrice, borrowPrice)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, types.VenueQuote{
			VenueID:             venue.ID,
			CollateralAmountOut: collateral,
			BorrowAmountOut:     utils.MulRatio(value, venue.LTV),
			AprEstimate18:       venue.Apr18,
		})
	}
	return quotes, nil
}

func (v LendingView) Borrow(_ context.Context, venueID, collateralAsset, borrowAsset string, collateralAmount, borrowAmount sdkmath.Int) (sdkmath.Int, error) {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.takeFailure("borrow"); err != nil {
		return sdkmath.ZeroInt(), err
	}
	idx := -1
	for i, venue := range c.state.venues {
		if venue.ID == venueID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrUnknownVenue, venueID)
	}
	venue := c.state.venues[idx]
	if venue.Asset != borrowAsset || venue.Capacity.LT(collateralAmount) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: venue %s cannot take %s collateral for %s", ErrInsufficientFunds, venueID, collateralAmount, borrowAsset)
	}
	if err := c.debit(c.strategy, collateralAsset, collateralAmount); err != nil {
		return sdkmath.ZeroInt(), err
	}

	venue.Capacity = venue.Capacity.Sub(collateralAmount)
	c.state.venues[idx] = venue

	pos := c.position(collateralAsset, borrowAsset)
	pos.Debt = pos.Debt.Add(borrowAmount)
	pos.Collateral = pos.Collateral.Add(collateralAmount)
	c.state.positions[pairKey(collateralAsset, borrowAsset)] = pos
	c.credit(LENDING_ADDRESS, collateralAsset, collateralAmount)
	c.credit(c.strategy, borrowAsset, borrowAmount)

	c.logger.Debug().
		Str("venue", venueID).
		Str("collateral", collateralAmount.String()).
		Str("borrowed", borrowAmount.String()).
		Msg("Simulated borrow")
	return borrowAmount, nil
}

func (v LendingView) Repay(_ context.Context, collateralAsset, borrowAsset string, amount sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.takeFailure("repay"); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	pos := c.position(collateralAsset, borrowAsset)
	repaid := sdkmath.MinInt(amount, pos.Debt)
	if !repaid.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}
	returned := repayReturn(pos, repaid)
	if err := c.debit(c.strategy, borrowAsset, repaid); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if err := c.debit(LENDING_ADDRESS, collateralAsset, returned); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	pos.Debt = pos.Debt.Sub(repaid)
	pos.Collateral = pos.Collateral.Sub(returned)
	c.state.positions[pairKey(collateralAsset, borrowAsset)] = pos
	c.credit(c.strategy, collateralAsset, returned)
	c.restoreCapacity(borrowAsset, returned)
	return returned, repaid, nil
}

func (v LendingView) QuoteRepay(_ context.Context, collateralAsset, borrowAsset string, amount sdkmath.Int) (sdkmath.Int, error) {
	v.c.mu.Lock()
	defer v.c.mu.Unlock()
	pos := v.c.position(collateralAsset, borrowAsset)
	return repayReturn(pos, sdkmath.MinInt(amount, pos.Debt)), nil
}

func (v LendingView) DebtStatus(_ context.Context, collateralAsset, borrowAsset string) (types.DebtStatus, error) {
	v.c.mu.Lock()
	defer v.c.mu.Unlock()
	pos := v.c.position(collateralAsset, borrowAsset)
	return types.DebtStatus{TotalDebt: pos.Debt, TotalCollateral: pos.Collateral}, nil
}

func (v LendingView) ClaimRewards(_ context.Context) ([]sdktypes.Coin, error) {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()
	claimed := c.state.pendingLending
	c.state.pendingLending = nil
	for _, coin := range claimed {
		c.credit(c.strategy, coin.Denom, coin.Amount)
	}
	return claimed, nil
}

// repayReturn is the collateral freed by repaying amount, pro rata to the position.
func repayReturn(pos Position, amount sdkmath.Int) sdkmath.Int {
	if !pos.Debt.IsPositive() || !amount.IsPositive() {
		return sdkmath.ZeroInt()
	}
	if amount.GTE(pos.Debt) {
		return pos.Collateral
	}
	return utils.MulDiv(pos.Collateral, amount, pos.Debt)
}

// restoreCapacity gives freed collateral capacity back to the first venue of the asset.
func (c *Chain) restoreCapacity(borrowAsset string, amount sdkmath.Int) {
	for i, venue := range c.state.venues {
		if venue.Asset == borrowAsset {
			c.state.venues[i].Capacity = venue.Capacity.Add(amount)
			return
		}
	}
}
