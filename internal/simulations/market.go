package simulations

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/external"
	"github.com/elys-network/yieldcore/internal/liquidator"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
)

// SwapEstimationResult contains the result of a swap simulation
type SwapEstimationResult struct {
	AmountOut sdkmath.Int
	Fee       sdkmath.Int // in tokenOut
}

// EstimateSwap prices a swap at the market price (oracle plus skew) minus the swap fee.
func (c *Chain) EstimateSwap(tokenIn, tokenOut string, amountIn sdkmath.Int) (SwapEstimationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.estimateSwap(tokenIn, tokenOut, amountIn)
}

func (c *Chain) estimateSwap(tokenIn, tokenOut string, amountIn sdkmath.Int) (SwapEstimationResult, error) {
	in, err := c.marketPrice(tokenIn)
	if err != nil {
		return SwapEstimationResult{}, err
	}
	out, err := c.marketPrice(tokenOut)
	if err != nil {
		return SwapEstimationResult{}, err
	}
	gross, err := liquidator.ConvertByPrice(amountIn, in, out)
	if err != nil {
		return SwapEstimationResult{}, err
	}
	fee := utils.MulRatio(gross, c.swapFee)
	return SwapEstimationResult{AmountOut: gross.Sub(fee), Fee: fee}, nil
}

func (c *Chain) marketPrice(token string) (types.TokenPrice, error) {
	p, ok := c.prices[token]
	if !ok {
		return types.TokenPrice{}, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	if skew := c.skew[token]; skew != 0 {
		p.Price18 = utils.MulRatio(p.Price18, utils.DENOMINATOR+skew)
	}
	return p, nil
}

// valueInBase converts amount of token to the base asset at oracle prices.
func (c *Chain) valueInBase(token string, amount sdkmath.Int) (sdkmath.Int, error) {
	base := c.basket.Base()
	if token == base {
		return amount, nil
	}
	in, ok := c.prices[token]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	return liquidator.ConvertByPrice(amount, in, c.prices[base])
}

// --- Oracle view ---

type OracleView struct{ c *Chain }

var _ external.PriceOracle = OracleView{}

func (c *Chain) Oracle() OracleView { return OracleView{c} }

func (v OracleView) Price(_ context.Context, token string) (types.TokenPrice, error) {
	v.c.mu.Lock()
	defer v.c.mu.Unlock()
	p, ok := v.c.prices[token]
	if !ok {
		return types.TokenPrice{}, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	return p, nil
}

// --- Swap view ---

type SwapView struct{ c *Chain }

var _ external.SwapService = SwapView{}

func (c *Chain) Swap() SwapView { return SwapView{c} }

func (v SwapView) Quote(_ context.Context, tokenIn, tokenOut string, amountIn sdkmath.Int) (sdkmath.Int, error) {
	res, err := v.c.EstimateSwap(tokenIn, tokenOut, amountIn)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return res.AmountOut, nil
}

func (v SwapView) Liquidate(_ context.Context, tokenIn, tokenOut string, amountIn sdkmath.Int, maxSlippage int64) (sdkmath.Int, error) {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.takeFailure("swap"); err != nil {
		return sdkmath.ZeroInt(), err
	}
	res, err := c.estimateSwap(tokenIn, tokenOut, amountIn)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	amountOut := res.AmountOut
	if drift := c.drift[tokenOut]; drift != 0 {
		amountOut = utils.MulRatio(amountOut, utils.DENOMINATOR-drift)
	}
	minOut := utils.MulRatio(res.AmountOut, utils.DENOMINATOR-maxSlippage)
	if amountOut.LT(minOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s %s out, at least %s expected", ErrSlippageExceeded, amountOut, tokenOut, minOut)
	}
	if err := c.debit(c.strategy, tokenIn, amountIn); err != nil {
		return sdkmath.ZeroInt(), err
	}
	c.credit(c.strategy, tokenOut, amountOut)

	c.swapLogger.Debug().
		Str("tokenIn", tokenIn).
		Str("tokenOut", tokenOut).
		Str("amountIn", amountIn.String()).
		Str("amountOut", amountOut.String()).
		Int64("maxSlippage", maxSlippage).
		Msg("Swap executed")
	return amountOut, nil
}
