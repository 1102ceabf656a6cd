package liquidator

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/external"
	"github.com/elys-network/yieldcore/internal/logger"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
	"github.com/rs/zerolog"
)

var (
	ErrPriceImpactTooHigh = errors.New("price impact too high")
	ErrInvalidPrice       = errors.New("oracle returned an invalid price")
)

// Request describes one oracle-guarded swap.
type Request struct {
	TokenIn   string
	TokenOut  string
	AmountIn  sdkmath.Int
	Threshold sdkmath.Int // amounts at or below are left on the balance
	Slippage  int64       // passed to the swap service
	Tolerance int64       // max deviation from the oracle-implied output
}

// Liquidator swaps through the swap service and validates every trade against the oracle.
type Liquidator struct {
	logger zerolog.Logger
	swap   external.SwapService
	oracle external.PriceOracle
}

func New(swap external.SwapService, oracle external.PriceOracle) *Liquidator {
	return &Liquidator{
		logger: logger.GetForComponent("liquidator"),
		swap:   swap,
		oracle: oracle,
	}
}

// Liquidate swaps req.AmountIn when it exceeds req.Threshold. The returned spent amount is
// zero when the swap was skipped as dust.
func (l *Liquidator) Liquidate(ctx context.Context, req Request) (spent, received sdkmath.Int, err error) {
	spent, received = sdkmath.ZeroInt(), sdkmath.ZeroInt()
	if req.TokenIn == req.TokenOut || req.AmountIn.IsNil() || !req.AmountIn.IsPositive() {
		return spent, received, nil
	}
	threshold := req.Threshold
	if threshold.IsNil() {
		threshold = sdkmath.ZeroInt()
	}
	if req.AmountIn.LTE(threshold) {
		l.logger.Debug().
			Str("tokenIn", req.TokenIn).
			Str("amount", req.AmountIn.String()).
			Str("threshold", threshold.String()).
			Msg("Amount at or below liquidation threshold, leaving on balance")
		return spent, received, nil
	}

	expected, err := l.OracleValue(ctx, req.TokenIn, req.TokenOut, req.AmountIn)
	if err != nil {
		return spent, received, err
	}
	minOut := utils.MulRatio(expected, utils.DENOMINATOR-req.Tolerance)

	quoted, err := l.swap.Quote(ctx, req.TokenIn, req.TokenOut, req.AmountIn)
	if err != nil {
		return spent, received, fmt.Errorf("failed to quote %s->%s: %w", req.TokenIn, req.TokenOut, err)
	}
	if quoted.LT(minOut) {
		l.logger.Warn().
			Str("tokenIn", req.TokenIn).
			Str("tokenOut", req.TokenOut).
			Str("quoted", quoted.String()).
			Str("oracle", expected.String()).
			Msg("Swap quote outside oracle tolerance, rejecting before execution")
		return spent, received, errors.Join(ErrPriceImpactTooHigh,
			fmt.Errorf("quote %s for %s %s is below %s %s", quoted, req.AmountIn, req.TokenIn, minOut, req.TokenOut))
	}

	out, err := l.swap.Liquidate(ctx, req.TokenIn, req.TokenOut, req.AmountIn, req.Slippage)
	if err != nil {
		return spent, received, fmt.Errorf("failed to liquidate %s->%s: %w", req.TokenIn, req.TokenOut, err)
	}
	if out.LT(minOut) {
		return spent, received, errors.Join(ErrPriceImpactTooHigh,
			fmt.Errorf("received %s for %s %s, oracle minimum %s %s", out, req.AmountIn, req.TokenIn, minOut, req.TokenOut))
	}

	l.logger.Info().
		Str("tokenIn", req.TokenIn).
		Str("tokenOut", req.TokenOut).
		Str("amountIn", req.AmountIn.String()).
		Str("amountOut", out.String()).
		Msg("Liquidation executed")
	return req.AmountIn, out, nil
}

// OracleValue converts amount of tokenIn into tokenOut at oracle prices.
func (l *Liquidator) OracleValue(ctx context.Context, tokenIn, tokenOut string, amount sdkmath.Int) (sdkmath.Int, error) {
	if tokenIn == tokenOut {
		return amount, nil
	}
	pIn, err := l.oracle.Price(ctx, tokenIn)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to get price of %s: %w", tokenIn, err)
	}
	pOut, err := l.oracle.Price(ctx, tokenOut)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to get price of %s: %w", tokenOut, err)
	}
	return ConvertByPrice(amount, pIn, pOut)
}

// ConvertByPrice returns amount * priceIn * 10^decOut / (priceOut * 10^decIn).
func ConvertByPrice(amount sdkmath.Int, in, out types.TokenPrice) (sdkmath.Int, error) {
	if in.Price18.IsNil() || out.Price18.IsNil() || !in.Price18.IsPositive() || !out.Price18.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidPrice
	}
	num := in.Price18.Mul(utils.Pow10(out.Decimals))
	den := out.Price18.Mul(utils.Pow10(in.Decimals))
	return utils.MulDiv(amount, num, den), nil
}
