package simulations

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ChainSuite struct {
	suite.Suite
	ctx    context.Context
	chain  *Chain
	basket types.TokenBasket
}

func (s *ChainSuite) SetupTest() {
	s.ctx = context.Background()
	basket, err := types.NewTokenBasket([]string{"dai", "usdc", "usdt"}, 1)
	s.Require().NoError(err)
	s.basket = basket
	s.chain, err = NewPaperChain(basket, PaperAddresses{Strategy: "strategy", Aggregator: "aggregator", Splitter: "splitter"})
	s.Require().NoError(err)
}

func TestChainSuite(t *testing.T) {
	suite.Run(t, new(ChainSuite))
}

func (s *ChainSuite) TestBorrowAndRepayProRata() {
	s.chain.Mint("strategy", "usdc", sdkmath.NewInt(1_000))
	lending := s.chain.Lending()

	quotes, err := lending.QuoteBorrowAcrossVenues(s.ctx, types.ConversionPlan{SourceAsset: "usdc", TargetAsset: "usdt", AmountIn: sdkmath.NewInt(1_000)})
	s.Require().NoError(err)
	s.Require().Len(quotes, 2)
	s.Equal("750", quotes[0].BorrowAmountOut.String())

	borrowed, err := lending.Borrow(s.ctx, quotes[0].VenueID, "usdc", "usdt", sdkmath.NewInt(1_000), sdkmath.NewInt(750))
	s.Require().NoError(err)
	s.Equal("750", borrowed.String())
	s.True(s.chain.BalanceOf("strategy", "usdc").IsZero())

	quoted, err := lending.QuoteRepay(s.ctx, "usdc", "usdt", sdkmath.NewInt(300))
	s.Require().NoError(err)
	s.Equal("400", quoted.String())

	returned, repaid, err := lending.Repay(s.ctx, "usdc", "usdt", sdkmath.NewInt(300))
	s.Require().NoError(err)
	s.Equal("400", returned.String())
	s.Equal("300", repaid.String())

	status, err := lending.DebtStatus(s.ctx, "usdc", "usdt")
	s.Require().NoError(err)
	s.Equal("450", status.TotalDebt.String())
	s.Equal("600", status.TotalCollateral.String())
}

func (s *ChainSuite) TestRepayCapsAtDebt() {
	s.chain.Mint("strategy", "usdc", sdkmath.NewInt(100))
	lending := s.chain.Lending()
	_, err := lending.Borrow(s.ctx, "usdt-alpha", "usdc", "usdt", sdkmath.NewInt(100), sdkmath.NewInt(75))
	s.Require().NoError(err)
	s.chain.Mint("strategy", "usdt", sdkmath.NewInt(500))

	returned, repaid, err := lending.Repay(s.ctx, "usdc", "usdt", sdkmath.NewInt(1_000))
	s.Require().NoError(err)
	s.Equal("100", returned.String())
	s.Equal("75", repaid.String())
	s.Equal("500", s.chain.BalanceOf("strategy", "usdt").String())
}

func (s *ChainSuite) TestPoolJoinExitProportional() {
	unit := sdkmath.NewInt(1_000_000)
	for _, t := range s.basket.Tokens {
		s.chain.Mint("strategy", t, unit.MulRaw(10))
	}
	pool := s.chain.Pool()
	amounts := []sdkmath.Int{unit.MulRaw(10), unit.MulRaw(5), unit.MulRaw(10)}
	minted, err := pool.Enter(s.ctx, amounts)
	s.Require().NoError(err)
	s.Equal(unit.MulRaw(15).String(), minted.String())
	// only the proportional part of dai and usdt is consumed
	s.Equal(unit.MulRaw(5).String(), s.chain.BalanceOf("strategy", "dai").String())

	liq, err := pool.CurrentLiquidity(s.ctx)
	s.Require().NoError(err)
	quoted, err := pool.QuoteExit(s.ctx, liq)
	s.Require().NoError(err)
	out, err := pool.Exit(s.ctx, liq)
	s.Require().NoError(err)
	s.Equal(quoted, out)
	s.Equal(unit.MulRaw(5).String(), out[1].String())
	s.True(s.chain.Liquidity("strategy").IsZero())
}

func (s *ChainSuite) TestSwapAppliesFeeAndSkew() {
	s.chain.Mint("strategy", "dai", sdkmath.NewInt(1_000_000))
	swap := s.chain.Swap()

	q, err := swap.Quote(s.ctx, "dai", "usdc", sdkmath.NewInt(1_000_000))
	s.Require().NoError(err)
	s.Equal("997000", q.String())

	s.chain.SetMarketSkew("dai", -10_000)
	q, err = swap.Quote(s.ctx, "dai", "usdc", sdkmath.NewInt(1_000_000))
	s.Require().NoError(err)
	s.Equal("897300", q.String())

	out, err := swap.Liquidate(s.ctx, "dai", "usdc", sdkmath.NewInt(1_000_000), 3_000)
	s.Require().NoError(err)
	s.Equal(q.String(), out.String())
	s.Equal(q.String(), s.chain.BalanceOf("strategy", "usdc").String())
}

func (s *ChainSuite) TestSwapEnforcesMaxSlippage() {
	s.chain.Mint("strategy", "dai", sdkmath.NewInt(2_000_000))
	s.chain.SetExecutionDrift("usdc", 1_000)
	swap := s.chain.Swap()

	q, err := swap.Quote(s.ctx, "dai", "usdc", sdkmath.NewInt(1_000_000))
	s.Require().NoError(err)
	s.Equal("997000", q.String())

	_, err = swap.Liquidate(s.ctx, "dai", "usdc", sdkmath.NewInt(1_000_000), 500)
	s.ErrorIs(err, ErrSlippageExceeded)
	s.Equal("2000000", s.chain.BalanceOf("strategy", "dai").String())
	s.True(s.chain.BalanceOf("strategy", "usdc").IsZero())

	out, err := swap.Liquidate(s.ctx, "dai", "usdc", sdkmath.NewInt(1_000_000), 3_000)
	s.Require().NoError(err)
	// 997000 * 0.99
	s.Equal("987030", out.String())
	s.Equal("1000000", s.chain.BalanceOf("strategy", "dai").String())
}

func (s *ChainSuite) TestJournalRollbackRestoresLedger() {
	s.chain.Mint("strategy", "usdc", sdkmath.NewInt(1_000))
	tx, err := s.chain.Journal().Begin(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.chain.Wallet().Transfer(s.ctx, "usdc", "forwarder", sdkmath.NewInt(400)))
	s.Require().NoError(s.chain.Splitter().ReportEarnedLost(s.ctx, sdkmath.NewInt(1), sdkmath.ZeroInt()))
	s.Equal("400", s.chain.BalanceOf("forwarder", "usdc").String())

	s.Require().NoError(tx.Rollback())
	s.Equal("1000", s.chain.BalanceOf("strategy", "usdc").String())
	s.True(s.chain.BalanceOf("forwarder", "usdc").IsZero())
	s.Empty(s.chain.Reports())
	s.ErrorIs(tx.Commit(), ErrTxClosed)
}

func (s *ChainSuite) TestRewardsClaimedOnce() {
	s.chain.Tick()
	coins, err := s.chain.Pool().ClaimRewards(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(coins, 1)
	s.Equal(PAPER_REWARD_TOKEN, coins[0].Denom)
	s.Equal(coins[0].Amount.String(), s.chain.BalanceOf("strategy", PAPER_REWARD_TOKEN).String())

	coins, err = s.chain.Pool().ClaimRewards(s.ctx)
	s.Require().NoError(err)
	s.Empty(coins)
}

func (s *ChainSuite) TestInjectedFailureFiresOnce() {
	boom := errors.New("boom")
	s.chain.FailOn("report", boom)
	err := s.chain.Splitter().ReportEarnedLost(s.ctx, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	s.ErrorIs(err, ErrInjected)
	s.ErrorIs(err, boom)
	s.NoError(s.chain.Splitter().ReportEarnedLost(s.ctx, sdkmath.ZeroInt(), sdkmath.ZeroInt()))
}

func TestNewChainRejectsMissingPrice(t *testing.T) {
	basket, err := types.NewTokenBasket([]string{"usdc", "weth"}, 0)
	require.NoError(t, err)
	_, err = NewChain(ChainConfig{
		Basket:            basket,
		StrategyAddress:   "s",
		AggregatorAddress: "a",
		SplitterAddress:   "p",
		Prices:            map[string]types.TokenPrice{"usdc": {Price18: sdkmath.NewInt(1), Decimals: 6}},
	})
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestLendingRewardsCredited(t *testing.T) {
	basket, err := types.NewTokenBasket([]string{"usdc", "usdt"}, 0)
	require.NoError(t, err)
	chain, err := NewPaperChain(basket, PaperAddresses{Strategy: "s", Aggregator: "a", Splitter: "p"})
	require.NoError(t, err)

	chain.AddLendingRewards(sdktypes.Coin{Denom: "usdt", Amount: sdkmath.NewInt(42)})
	coins, err := chain.Lending().ClaimRewards(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 1)
	assert.Equal(t, "42", chain.BalanceOf("s", "usdt").String())
}
