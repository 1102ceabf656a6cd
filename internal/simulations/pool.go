package simulations

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/elys-network/yieldcore/internal/external"
	"github.com/elys-network/yieldcore/internal/utils"
)

// JoinPoolEstimationResult contains the result of a join pool simulation
type JoinPoolEstimationResult struct {
	LiquidityOut sdkmath.Int
	AmountsIn    []sdkmath.Int // actually consumed, basket order
}

// ExitPoolEstimationResult contains the result of an exit pool simulation
type ExitPoolEstimationResult struct {
	AmountsOut []sdkmath.Int
}

// EstimateJoinPool returns the liquidity minted for amounts and the part of each amount the
// pool keeps. Joins are proportional to the current reserves.
func (c *Chain) EstimateJoinPool(amounts []sdkmath.Int) (JoinPoolEstimationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.estimateJoin(amounts)
}

func (c *Chain) estimateJoin(amounts []sdkmath.Int) (JoinPoolEstimationResult, error) {
	n := c.basket.Len()
	if len(amounts) != n {
		return JoinPoolEstimationResult{}, fmt.Errorf("%w: %d amounts for %d tokens", ErrInvalidPoolState, len(amounts), n)
	}
	consumed := utils.ZeroInts(n)

	if !c.state.totalLiquidity.IsPositive() {
		minted := sdkmath.ZeroInt()
		for i, a := range amounts {
			v, err := c.valueInBase(c.basket.Tokens[i], a)
			if err != nil {
				return JoinPoolEstimationResult{}, err
			}
			minted = minted.Add(v)
			consumed[i] = a
		}
		return JoinPoolEstimationResult{LiquidityOut: minted, AmountsIn: consumed}, nil
	}

	var minted sdkmath.Int
	for i, r := range c.state.reserves {
		if !r.IsPositive() {
			continue
		}
		share := utils.MulDiv(amounts[i], c.state.totalLiquidity, r)
		if minted.IsNil() || share.LT(minted) {
			minted = share
		}
	}
	if minted.IsNil() || !minted.IsPositive() {
		return JoinPoolEstimationResult{LiquidityOut: sdkmath.ZeroInt(), AmountsIn: consumed}, nil
	}
	for i, r := range c.state.reserves {
		consumed[i] = utils.MulDiv(r, minted, c.state.totalLiquidity)
	}
	return JoinPoolEstimationResult{LiquidityOut: minted, AmountsIn: consumed}, nil
}

// EstimateLeavePool returns the tokens released by burning liquidity.
func (c *Chain) EstimateLeavePool(liquidity sdkmath.Int) (ExitPoolEstimationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.estimateExit(liquidity)
}

func (c *Chain) estimateExit(liquidity sdkmath.Int) (ExitPoolEstimationResult, error) {
	out := utils.ZeroInts(c.basket.Len())
	if !liquidity.IsPositive() {
		return ExitPoolEstimationResult{AmountsOut: out}, nil
	}
	if liquidity.GT(c.state.totalLiquidity) {
		return ExitPoolEstimationResult{}, fmt.Errorf("%w: exit %s exceeds total liquidity %s", ErrInvalidPoolState, liquidity, c.state.totalLiquidity)
	}
	for i, r := range c.state.reserves {
		out[i] = utils.MulDiv(r, liquidity, c.state.totalLiquidity)
	}
	return ExitPoolEstimationResult{AmountsOut: out}, nil
}

// PoolView is the simulated pool depositor of the strategy.
type PoolView struct{ c *Chain }

var _ external.PoolDepositor = PoolView{}

func (c *Chain) Pool() PoolView { return PoolView{c} }

func (v PoolView) Enter(_ context.Context, amounts []sdkmath.Int) (sdkmath.Int, error) {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.takeFailure("enter"); err != nil {
		return sdkmath.ZeroInt(), err
	}
	est, err := c.estimateJoin(amounts)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !est.LiquidityOut.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	for i, a := range est.AmountsIn {
		if err := c.debit(c.strategy, c.basket.Tokens[i], a); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	for i, a := range est.AmountsIn {
		c.state.reserves[i] = c.state.reserves[i].Add(a)
	}
	c.state.totalLiquidity = c.state.totalLiquidity.Add(est.LiquidityOut)
	c.state.liquidity[c.strategy] = c.liquidityOf(c.strategy).Add(est.LiquidityOut)

	c.joinPoolLogger.Debug().
		Str("liquidity", est.LiquidityOut.String()).
		Msg("Joined pool")
	return est.LiquidityOut, nil
}

func (v PoolView) Exit(_ context.Context, liquidity sdkmath.Int) ([]sdkmath.Int, error) {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.takeFailure("exit"); err != nil {
		return nil, err
	}
	held := c.liquidityOf(c.strategy)
	if liquidity.GT(held) {
		return nil, fmt.Errorf("%w: exit %s exceeds held liquidity %s", ErrInsufficientFunds, liquidity, held)
	}
	est, err := c.estimateExit(liquidity)
	if err != nil {
		return nil, err
	}
	for i, a := range est.AmountsOut {
		c.state.reserves[i] = c.state.reserves[i].Sub(a)
		c.credit(c.strategy, c.basket.Tokens[i], a)
	}
	c.state.totalLiquidity = c.state.totalLiquidity.Sub(liquidity)
	c.state.liquidity[c.strategy] = held.Sub(liquidity)

	c.exitPoolLogger.Debug().
		Str("liquidity", liquidity.String()).
		Msg("Exited pool")
	return est.AmountsOut, nil
}

func (v PoolView) QuoteExit(_ context.Context, liquidity sdkmath.Int) ([]sdkmath.Int, error) {
	est, err := v.c.EstimateLeavePool(liquidity)
	if err != nil {
		return nil, err
	}
	return est.AmountsOut, nil
}

func (v PoolView) CurrentLiquidity(_ context.Context) (sdkmath.Int, error) {
	return v.c.Liquidity(v.c.strategy), nil
}

// PoolWeights returns the base-asset value of each reserve.
func (v PoolView) PoolWeights(_ context.Context) ([]sdkmath.Int, error) {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()
	weights := make([]sdkmath.Int, c.basket.Len())
	for i, r := range c.state.reserves {
		w, err := c.valueInBase(c.basket.Tokens[i], r)
		if err != nil {
			return nil, err
		}
		weights[i] = w
	}
	return weights, nil
}

func (v PoolView) ClaimRewards(_ context.Context) ([]sdktypes.Coin, error) {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()
	claimed := c.state.pendingPool
	c.state.pendingPool = nil
	for _, coin := range claimed {
		c.credit(c.strategy, coin.Denom, coin.Amount)
	}
	return claimed, nil
}
