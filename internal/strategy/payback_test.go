package strategy

import (
	"github.com/elys-network/yieldcore/internal/planner"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
)

func (s *StrategySuite) TestPaybackRequiresAggregator() {
	s.deposit()
	_, err := s.strategy.RequirePayAmountBack(s.ctx, splitterAddr, "usdc", units(10))
	s.ErrorIs(err, ErrUnauthorized)
	s.True(s.chain.BalanceOf(splitterAddr, "usdc").IsZero())
}

func (s *StrategySuite) TestPaybackRejectsUnsupportedAsset() {
	_, err := s.strategy.RequirePayAmountBack(s.ctx, aggregatorAddr, "atom", units(10))
	s.ErrorIs(err, ErrUnsupportedAsset)
}

func (s *StrategySuite) TestPaybackOfZeroReturnsEmptyReceipt() {
	s.deposit()

	receipt, err := s.strategy.RequirePayAmountBack(s.ctx, aggregatorAddr, "usdc", units(0))
	s.Require().NoError(err)
	s.True(receipt.Requested.IsZero())
	s.True(receipt.Returned.IsZero())
	s.False(receipt.Partial)
	s.True(s.chain.BalanceOf(aggregatorAddr, "usdc").IsZero())
	s.Equal(units(2_250).String(), s.chain.Liquidity(strategyAddr).String())
}

func (s *StrategySuite) TestPaybackOfMaxAmountReturnsEverythingHeld() {
	s.deposit()

	var receipt *types.PaybackReceipt
	var err error
	s.Require().NotPanics(func() {
		receipt, err = s.strategy.RequirePayAmountBack(s.ctx, aggregatorAddr, "dai", planner.MaxAmount())
	})
	s.Require().NoError(err)
	s.True(receipt.Partial)
	s.Equal(REASON_INSUFFICIENT_FUNDS, receipt.Reason)
	s.True(receipt.Returned.IsPositive())
	s.Equal(receipt.Returned.String(), s.chain.BalanceOf(aggregatorAddr, "dai").String())
	s.True(s.chain.Liquidity(strategyAddr).IsZero())
	s.False(s.strategy.Busy())
}

func (s *StrategySuite) TestPaybackOfMaxBaseAmountClosesPosition() {
	s.deposit()

	var receipt *types.PaybackReceipt
	var err error
	s.Require().NotPanics(func() {
		receipt, err = s.strategy.RequirePayAmountBack(s.ctx, aggregatorAddr, "usdc", planner.MaxAmount())
	})
	s.Require().NoError(err)
	s.True(receipt.Partial)
	s.Equal(units(3_000).String(), receipt.Returned.String())
	s.True(s.chain.Liquidity(strategyAddr).IsZero())
	s.True(s.chain.Position("usdc", "dai").Debt.IsZero())
	s.True(s.strategy.Snapshot().InvestedAssets.IsZero())
}

func (s *StrategySuite) TestPaybackFromIdleBalance() {
	s.deposit()

	receipt, err := s.strategy.RequirePayAmountBack(s.ctx, aggregatorAddr, "usdc", units(100))
	s.Require().NoError(err)
	s.Equal(units(100).String(), receipt.Returned.String())
	s.False(receipt.Partial)
	s.Empty(receipt.Reason)
	s.NotEmpty(receipt.ReceiptID)
	s.Equal(units(100).String(), s.chain.BalanceOf(aggregatorAddr, "usdc").String())
	s.Equal(units(2_250).String(), s.chain.Liquidity(strategyAddr).String())
}

func (s *StrategySuite) TestPaybackUnwindsPosition() {
	s.deposit()

	receipt, err := s.strategy.RequirePayAmountBack(s.ctx, aggregatorAddr, "usdc", units(1_000))
	s.Require().NoError(err)
	s.Equal(units(1_000).String(), receipt.Returned.String())
	s.False(receipt.Partial)
	s.Equal(units(1_000).String(), s.chain.BalanceOf(aggregatorAddr, "usdc").String())
	s.True(s.chain.Liquidity(strategyAddr).LT(units(2_250)))
	s.True(s.chain.Position("usdc", "dai").Debt.LT(units(750)))
	s.True(s.strategy.Snapshot().InvestedAssets.LT(units(2_750)))
}

func (s *StrategySuite) TestPaybackOfBorrowedToken() {
	s.deposit()

	receipt, err := s.strategy.RequirePayAmountBack(s.ctx, aggregatorAddr, "dai", units(100))
	s.Require().NoError(err)
	s.Equal(units(100).String(), receipt.Returned.String())
	s.False(receipt.Partial)
	s.Equal(units(100).String(), s.chain.BalanceOf(aggregatorAddr, "dai").String())
	// the exit carried a 1% gap
	s.Equal(units(1).String(), s.chain.BalanceOf(strategyAddr, "dai").String())
	s.Equal(units(351).String(), s.chain.BalanceOf(strategyAddr, "usdc").String())
}

func (s *StrategySuite) TestPaybackIsPartialWhenPriceImpactTooHigh() {
	s.deposit()
	// the dai debt outgrows the dai held in the pool, so a full unwind has to buy dai
	s.chain.AccrueInterest("usdc", "dai", 10_000)
	s.chain.SetMarketSkew("dai", 5_000)

	receipt, err := s.strategy.RequirePayAmountBack(s.ctx, aggregatorAddr, "usdc", units(2_990))
	s.Require().NoError(err)
	s.True(receipt.Partial)
	s.Contains(receipt.Reason, "price impact too high")
	s.Equal(units(250).String(), receipt.Returned.String())
	s.Equal(units(250).String(), s.chain.BalanceOf(aggregatorAddr, "usdc").String())

	// the gathering step was rolled back
	s.Equal(units(2_250).String(), s.chain.Liquidity(strategyAddr).String())
	s.Equal(units(825).String(), s.chain.Position("usdc", "dai").Debt.String())
	s.Equal(units(750).String(), s.chain.Position("usdc", "usdt").Debt.String())

	n, err := testutil.GatherAndCount(s.registry, "yieldcore_price_impact_rejections_total")
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *StrategySuite) TestPaybackFailureRollsBack() {
	s.deposit()
	s.chain.FailOn("exit", assertErr("pool halted"))

	receipt, err := s.strategy.RequirePayAmountBack(s.ctx, aggregatorAddr, "usdc", units(1_000))
	s.Require().Error(err)
	s.Nil(receipt)
	s.True(s.chain.BalanceOf(aggregatorAddr, "usdc").IsZero())
	s.Equal(units(250).String(), s.chain.BalanceOf(strategyAddr, "usdc").String())
}

func (s *StrategySuite) TestPaybackReceiptIsPersisted() {
	store := new(mockStore)
	store.On("LoadValuationSnapshot").Return(nil, nil).Once()
	store.On("SaveValuationSnapshot", mock.Anything).Return(nil)
	store.On("SavePaybackReceipt", mock.MatchedBy(func(r types.PaybackReceipt) bool {
		return r.StrategyID == "test-strategy" && r.Asset == "usdc" && r.Returned.Equal(units(100)) && !r.Partial
	})).Return(nil).Once()
	s.strategy = s.newStrategy(s.chain.Splitter(), store)
	s.deposit()

	_, err := s.strategy.RequirePayAmountBack(s.ctx, aggregatorAddr, "usdc", units(100))
	s.Require().NoError(err)
	store.AssertExpectations(s.T())
}
