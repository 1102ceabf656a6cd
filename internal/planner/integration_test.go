package planner

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/liquidator"
	"github.com/elys-network/yieldcore/internal/opener"
	"github.com/elys-network/yieldcore/internal/simulations"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/stretchr/testify/suite"
)

// PlannerChainSuite runs the planner against a simulated chain with two open positions:
// 1000 usdc backing 750 dai and 1000 usdc backing 750 usdt, all of it deposited in the pool
// together with 750 usdc. 250 usdc stays idle.
type PlannerChainSuite struct {
	suite.Suite
	ctx     context.Context
	chain   *simulations.Chain
	basket  types.TokenBasket
	planner *Planner
	params  types.StrategyParameters
}

const unit = 1_000_000

func (s *PlannerChainSuite) SetupTest() {
	s.ctx = context.Background()
	basket, err := types.NewTokenBasket([]string{"dai", "usdc", "usdt"}, 1)
	s.Require().NoError(err)
	s.basket = basket

	s.chain, err = simulations.NewPaperChain(basket, simulations.PaperAddresses{Strategy: "strategy", Aggregator: "aggregator", Splitter: "splitter"})
	s.Require().NoError(err)
	liq := liquidator.New(s.chain.Swap(), s.chain.Oracle())
	s.planner = New(s.chain.Lending(), s.chain.Wallet(), s.chain.Oracle(), s.chain.Pool(), liq)
	s.params = types.StrategyParameters{
		Thresholds:           types.LiquidationThresholds{},
		LiquidationSlippage:  3_000,
		PriceImpactTolerance: 2_000,
		SafetyGap:            1_000,
	}

	s.chain.Mint("strategy", "usdc", sdkmath.NewInt(3_000*unit))
	op := opener.New(s.chain.Lending())
	for _, token := range []string{"dai", "usdt"} {
		_, borrowed, err := op.Open(s.ctx, types.ConversionPlan{
			SourceAsset: "usdc", TargetAsset: token,
			AmountIn:  sdkmath.NewInt(1_000 * unit),
			Threshold: sdkmath.ZeroInt(),
		})
		s.Require().NoError(err)
		s.Require().Equal(sdkmath.NewInt(750*unit).String(), borrowed.String())
	}
	amounts := []sdkmath.Int{sdkmath.NewInt(750 * unit), sdkmath.NewInt(1_000 * unit), sdkmath.NewInt(750 * unit)}
	_, err = s.chain.Pool().Enter(s.ctx, amounts)
	s.Require().NoError(err)
	s.Require().Equal(sdkmath.NewInt(250*unit).String(), s.chain.BalanceOf("strategy", "usdc").String())
}

func TestPlannerChainSuite(t *testing.T) {
	suite.Run(t, new(PlannerChainSuite))
}

func (s *PlannerChainSuite) TestCalcInvestedAssets() {
	invested, err := s.planner.CalcInvestedAssets(s.ctx, s.basket)
	s.Require().NoError(err)
	s.Equal(sdkmath.NewInt(2_750*unit).String(), invested.String())
}

func (s *PlannerChainSuite) TestWithdrawAllRoundTrip() {
	liquidity, err := s.chain.Pool().CurrentLiquidity(s.ctx)
	s.Require().NoError(err)
	invested, err := s.planner.CalcInvestedAssets(s.ctx, s.basket)
	s.Require().NoError(err)

	toWithdraw, _, err := s.planner.GetLiquidityAmount(s.ctx, sdkmath.ZeroInt(), s.basket, invested, liquidity, s.params.SafetyGap)
	s.Require().NoError(err)
	s.Equal(liquidity.String(), toWithdraw.String())

	out, err := s.chain.Pool().Exit(s.ctx, toWithdraw)
	s.Require().NoError(err)
	collateral, repaid, err := s.planner.ConvertAfterWithdraw(s.ctx, s.basket, []sdkmath.Int{out[0], sdkmath.ZeroInt(), out[2]}, s.params)
	s.Require().NoError(err)
	s.Equal(sdkmath.NewInt(2_000*unit).String(), collateral.String())
	s.Equal(sdkmath.NewInt(750*unit).String(), repaid[0].String())

	gathered, err := s.planner.ClosePositionsToGetAmount(s.ctx, s.basket, MaxAmount(), s.params)
	s.Require().NoError(err)
	s.True(gathered.IsZero())

	s.True(s.chain.Position("usdc", "dai").Debt.IsZero())
	s.True(s.chain.Position("usdc", "usdt").Debt.IsZero())
	s.Equal(sdkmath.NewInt(3_000*unit).String(), s.chain.BalanceOf("strategy", "usdc").String())
}

func (s *PlannerChainSuite) TestClosePositionsToGetAmountFromIdleBase() {
	daiDebtBefore := s.chain.Position("usdc", "dai").Debt

	gathered, err := s.planner.ClosePositionsToGetAmount(s.ctx, s.basket, sdkmath.NewInt(100*unit), s.params)
	s.Require().NoError(err)
	s.InDelta(float64(100*unit), float64(gathered.Int64()), float64(unit))
	s.True(s.chain.Position("usdc", "dai").Debt.LT(daiDebtBefore))
}

func (s *PlannerChainSuite) TestClosePositionsToGetAmountMaxClosesEverything() {
	// free the tokens first so selling base is enough to close
	liquidity, err := s.chain.Pool().CurrentLiquidity(s.ctx)
	s.Require().NoError(err)
	_, err = s.chain.Pool().Exit(s.ctx, liquidity)
	s.Require().NoError(err)
	s.Require().NoError(s.chain.Wallet().Transfer(s.ctx, "dai", "elsewhere", sdkmath.NewInt(100*unit)))

	_, err = s.planner.ClosePositionsToGetAmount(s.ctx, s.basket, MaxAmount(), s.params)
	s.Require().NoError(err)
	s.True(s.chain.Position("usdc", "dai").Debt.IsZero())
	s.True(s.chain.Position("usdc", "usdt").Debt.IsZero())
}
