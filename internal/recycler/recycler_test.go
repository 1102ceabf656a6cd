package recycler

import (
	"context"
	"math/rand"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/external/externaltest"
	"github.com/elys-network/yieldcore/internal/liquidator"
	"github.com/elys-network/yieldcore/internal/simulations"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func basket(t *testing.T) types.TokenBasket {
	b, err := types.NewTokenBasket([]string{"dai", "usdc", "usdt"}, 1)
	require.NoError(t, err)
	return b
}

func mockRecycler() (*Recycler, *externaltest.SwapService) {
	swap := &externaltest.SwapService{}
	return New(liquidator.New(swap, &externaltest.PriceOracle{})), swap
}

func params(compound, fee int64) types.StrategyParameters {
	return types.StrategyParameters{
		Compound:             types.CompoundConfig{CompoundRatio: compound},
		Performance:          types.PerformanceConfig{Fee: fee, Receiver: "receiver"},
		Thresholds:           types.LiquidationThresholds{},
		LiquidationSlippage:  3_000,
		PriceImpactTolerance: 2_000,
	}
}

func TestRecycleBaseAssetReward(t *testing.T) {
	r, swap := mockRecycler()
	forward, perf, err := r.Recycle(context.Background(), basket(t), []string{"usdc"}, []sdkmath.Int{sdkmath.NewInt(200)}, params(80_000, 40_000))
	require.NoError(t, err)
	require.Len(t, forward, 1)
	assert.Equal(t, "24", forward[0].String())
	assert.Equal(t, "80", perf.String())
	swap.AssertNotCalled(t, "Liquidate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecycleZeroCompoundForwardsEverything(t *testing.T) {
	r, _ := mockRecycler()
	forward, perf, err := r.Recycle(context.Background(), basket(t), []string{"usdc", "dai"}, []sdkmath.Int{sdkmath.NewInt(1_000), sdkmath.NewInt(77)}, params(0, 0))
	require.NoError(t, err)
	assert.Equal(t, "1000", forward[0].String())
	assert.Equal(t, "77", forward[1].String())
	assert.True(t, perf.IsZero())
}

func TestRecycleLengthMismatch(t *testing.T) {
	r, _ := mockRecycler()
	_, _, err := r.Recycle(context.Background(), basket(t), []string{"usdc", "dai"}, []sdkmath.Int{sdkmath.NewInt(1)}, params(0, 0))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestSplitRewardReconciles(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 1_000; i++ {
		amount := sdkmath.NewInt(rng.Int63n(1_000_000_000_000))
		ratio := rng.Int63n(utils.DENOMINATOR + 1)
		fee := rng.Int63n(utils.DENOMINATOR + 1)

		s := SplitReward(amount, ratio, fee)
		assert.Equal(t, amount.String(), s.Performance.Add(s.Forward).Add(s.Compound).String())
		assert.False(t, s.Compound.IsNegative())

		noFee := SplitReward(amount, ratio, 0)
		assert.Equal(t, utils.MulDiv(amount, sdkmath.NewInt(utils.DENOMINATOR-ratio), utils.Denominator()).String(), noFee.Forward.String())
	}
}

func paperChain(t *testing.T) *simulations.Chain {
	chain, err := simulations.NewPaperChain(basket(t), simulations.PaperAddresses{Strategy: "strategy", Aggregator: "aggregator", Splitter: "splitter"})
	require.NoError(t, err)
	return chain
}

func TestRecycleForeignRewardBelowThresholdIsUntouched(t *testing.T) {
	chain := paperChain(t)
	r := New(liquidator.New(chain.Swap(), chain.Oracle()))
	chain.Mint("strategy", simulations.PAPER_REWARD_TOKEN, sdkmath.NewInt(100_000))

	forward, perf, err := r.Recycle(context.Background(), basket(t),
		[]string{simulations.PAPER_REWARD_TOKEN}, []sdkmath.Int{sdkmath.NewInt(100_000)}, params(100_000, 10_000))
	require.NoError(t, err)
	assert.True(t, forward[0].IsZero())
	assert.True(t, perf.IsZero())
	assert.Equal(t, "100000", chain.BalanceOf("strategy", simulations.PAPER_REWARD_TOKEN).String())
	assert.True(t, chain.BalanceOf("strategy", "usdc").IsZero())
}

func TestRecycleForeignRewardLiquidated(t *testing.T) {
	chain := paperChain(t)
	r := New(liquidator.New(chain.Swap(), chain.Oracle()))
	chain.Mint("strategy", simulations.PAPER_REWARD_TOKEN, sdkmath.NewInt(10_000_000))

	// fee 1_000_000, forward 4_500_000, compound 4_500_000; 5_500_000 sold at 0.5 minus 0.3%
	forward, perf, err := r.Recycle(context.Background(), basket(t),
		[]string{simulations.PAPER_REWARD_TOKEN}, []sdkmath.Int{sdkmath.NewInt(10_000_000)}, params(50_000, 10_000))
	require.NoError(t, err)
	assert.Equal(t, "4500000", forward[0].String())
	assert.Equal(t, "2741750", chain.BalanceOf("strategy", "usdc").String())
	assert.Equal(t, "498500", perf.String())
	assert.Equal(t, "4500000", chain.BalanceOf("strategy", simulations.PAPER_REWARD_TOKEN).String())
}

func TestRecycleBasketTokenFeeLiquidated(t *testing.T) {
	chain := paperChain(t)
	r := New(liquidator.New(chain.Swap(), chain.Oracle()))
	chain.Mint("strategy", "dai", sdkmath.NewInt(2_000_000))

	_, perf, err := r.Recycle(context.Background(), basket(t), []string{"dai"}, []sdkmath.Int{sdkmath.NewInt(2_000_000)}, params(100_000, 10_000))
	require.NoError(t, err)
	// 200_000 dai fee sold, 1_800_000 compounds as dai
	assert.Equal(t, "199400", perf.String())
	assert.Equal(t, "1800000", chain.BalanceOf("strategy", "dai").String())
}

func TestRecyclePriceImpactIsFatal(t *testing.T) {
	chain := paperChain(t)
	r := New(liquidator.New(chain.Swap(), chain.Oracle()))
	chain.Mint("strategy", simulations.PAPER_REWARD_TOKEN, sdkmath.NewInt(10_000_000))
	chain.SetMarketSkew(simulations.PAPER_REWARD_TOKEN, -20_000)

	_, _, err := r.Recycle(context.Background(), basket(t),
		[]string{simulations.PAPER_REWARD_TOKEN}, []sdkmath.Int{sdkmath.NewInt(10_000_000)}, params(50_000, 10_000))
	assert.ErrorIs(t, err, liquidator.ErrPriceImpactTooHigh)
	assert.Equal(t, "10000000", chain.BalanceOf("strategy", simulations.PAPER_REWARD_TOKEN).String())
}

func TestRecycleSwapBelowSlippageLimitFails(t *testing.T) {
	chain := paperChain(t)
	r := New(liquidator.New(chain.Swap(), chain.Oracle()))
	chain.Mint("strategy", simulations.PAPER_REWARD_TOKEN, sdkmath.NewInt(10_000_000))
	chain.SetExecutionDrift("usdc", 5_000)

	_, _, err := r.Recycle(context.Background(), basket(t),
		[]string{simulations.PAPER_REWARD_TOKEN}, []sdkmath.Int{sdkmath.NewInt(10_000_000)}, params(50_000, 10_000))
	assert.ErrorIs(t, err, simulations.ErrSlippageExceeded)
	assert.NotErrorIs(t, err, liquidator.ErrPriceImpactTooHigh)
}
