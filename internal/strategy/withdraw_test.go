package strategy

import (
	sdkmath "cosmossdk.io/math"
)

func (s *StrategySuite) TestWithdrawToSplitterValidation() {
	_, err := s.strategy.WithdrawToSplitter(s.ctx, aggregatorAddr, units(1))
	s.ErrorIs(err, ErrUnauthorized)

	_, err = s.strategy.WithdrawToSplitter(s.ctx, splitterAddr, sdkmath.ZeroInt())
	s.ErrorIs(err, ErrInvalidAmount)

	_, err = s.strategy.WithdrawAllToSplitter(s.ctx, operatorAddr)
	s.ErrorIs(err, ErrUnauthorized)
}

func (s *StrategySuite) TestWithdrawFromIdleBalance() {
	s.deposit()

	sent, err := s.strategy.WithdrawToSplitter(s.ctx, splitterAddr, units(100))
	s.Require().NoError(err)
	s.Equal(units(100).String(), sent.String())
	s.Equal(units(100).String(), s.chain.BalanceOf(splitterAddr, "usdc").String())
	s.Equal(units(2_250).String(), s.chain.Liquidity(strategyAddr).String())
}

func (s *StrategySuite) TestWithdrawUnwindsPoolAndDebt() {
	s.deposit()

	sent, err := s.strategy.WithdrawToSplitter(s.ctx, splitterAddr, units(1_000))
	s.Require().NoError(err)
	s.Equal(units(1_000).String(), sent.String())
	s.Equal(units(1_000).String(), s.chain.BalanceOf(splitterAddr, "usdc").String())

	// 619.772727 liquidity released 206.590909 of each token, both borrowed tokens went to repay
	s.Equal(sdkmath.NewInt(7_499_999).String(), s.chain.BalanceOf(strategyAddr, "usdc").String())
	s.True(s.chain.BalanceOf(strategyAddr, "dai").IsZero())
	s.Equal(sdkmath.NewInt(543_409_091).String(), s.chain.Position("usdc", "dai").Debt.String())
}

func (s *StrategySuite) TestWithdrawAllToSplitter() {
	s.deposit()

	sent, err := s.strategy.WithdrawAllToSplitter(s.ctx, splitterAddr)
	s.Require().NoError(err)
	s.Equal(units(3_000).String(), sent.String())
	s.Equal(units(3_000).String(), s.chain.BalanceOf(splitterAddr, "usdc").String())
	s.True(s.chain.Liquidity(strategyAddr).IsZero())
	s.True(s.chain.Position("usdc", "dai").Debt.IsZero())
	s.True(s.chain.Position("usdc", "usdt").Debt.IsZero())
	s.True(s.strategy.Snapshot().InvestedAssets.IsZero())
}

func (s *StrategySuite) TestWithdrawMoreThanHeldSendsEverything() {
	s.deposit()

	sent, err := s.strategy.WithdrawToSplitter(s.ctx, splitterAddr, units(5_000))
	s.Require().NoError(err)
	s.Equal(units(3_000).String(), sent.String())
	s.True(s.chain.Liquidity(strategyAddr).IsZero())
}

func (s *StrategySuite) TestEmergencyExit() {
	s.deposit()

	s.ErrorIs(s.strategy.EmergencyExit(s.ctx, operatorAddr), ErrUnauthorized)
	s.Require().NoError(s.strategy.EmergencyExit(s.ctx, governanceAddr))

	s.Equal(units(3_000).String(), s.chain.BalanceOf(strategyAddr, "usdc").String())
	s.True(s.chain.BalanceOf(splitterAddr, "usdc").IsZero())
	s.True(s.chain.Liquidity(strategyAddr).IsZero())
	s.True(s.chain.Position("usdc", "usdt").Debt.IsZero())
	s.True(s.strategy.Snapshot().InvestedAssets.IsZero())
}
