package strategy

import (
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/stretchr/testify/mock"
)

func (s *StrategySuite) TestOperatorSetters() {
	s.Require().NoError(s.strategy.SetCompoundRatio(operatorAddr, 80_000))
	s.Require().NoError(s.strategy.SetReinvestThresholdPercent(operatorAddr, 5_000))
	s.Require().NoError(s.strategy.SetLiquidationThreshold(operatorAddr, "paperreward", units(5)))

	p := s.strategy.Parameters()
	s.Equal(int64(80_000), p.Compound.CompoundRatio)
	s.Equal(int64(5_000), p.ReinvestThresholdPercent)
	s.Equal(units(5).String(), p.Thresholds.For("paperreward").String())

	s.ErrorIs(s.strategy.SetCompoundRatio(governanceAddr, 10_000), ErrUnauthorized)
	s.ErrorIs(s.strategy.SetLiquidationThreshold(operatorAddr, "", units(1)), types.ErrInvalidParameters)
}

func (s *StrategySuite) TestGovernanceSetters() {
	cfg := types.PerformanceConfig{Fee: 20_000, Receiver: "treasury", InsuranceSplit: 25_000}
	s.ErrorIs(s.strategy.SetPerformanceConfig(operatorAddr, cfg), ErrUnauthorized)
	s.Require().NoError(s.strategy.SetPerformanceConfig(governanceAddr, cfg))
	s.Require().NoError(s.strategy.SetExecutionGuards(governanceAddr, 1_000, 500, 2_000))

	p := s.strategy.Parameters()
	s.Equal(cfg, p.Performance)
	s.Equal(int64(1_000), p.LiquidationSlippage)
	s.Equal(int64(500), p.PriceImpactTolerance)
	s.Equal(int64(2_000), p.SafetyGap)
}

func (s *StrategySuite) TestInvalidParametersAreRejected() {
	s.ErrorIs(s.strategy.SetCompoundRatio(operatorAddr, 100_001), types.ErrInvalidParameters)
	s.ErrorIs(s.strategy.SetPerformanceConfig(governanceAddr, types.PerformanceConfig{Fee: 10_000}), types.ErrInvalidParameters)
	s.ErrorIs(s.strategy.SetExecutionGuards(governanceAddr, -1, 0, 0), types.ErrInvalidParameters)
	s.Equal(testParameters(), s.strategy.Parameters())
}

func (s *StrategySuite) TestParametersReturnsACopy() {
	p := s.strategy.Parameters()
	p.Thresholds["usdc"] = units(1)
	s.Empty(s.strategy.Parameters().Thresholds)
}

func (s *StrategySuite) TestNewCompoundRatioAppliesToNextCycle() {
	s.deposit()
	s.Require().NoError(s.strategy.SetCompoundRatio(operatorAddr, 0))
	s.chain.AddPoolRewards(sdktypes.NewCoin("usdc", units(100)))

	_, err := s.strategy.DoHardWork(s.ctx, splitterAddr)
	s.Require().NoError(err)
	s.Equal(units(90).String(), s.chain.BalanceOf(forwarderAddr, "usdc").String())
}

func (s *StrategySuite) TestParametersArePersistedBeforeApplied() {
	store := new(mockStore)
	store.On("LoadValuationSnapshot").Return(nil, nil).Once()
	store.On("SaveParameters", mock.MatchedBy(func(p types.StrategyParameters) bool {
		return p.Compound.CompoundRatio == 70_000
	}), operatorAddr).Return(nil).Once()
	store.On("SaveParameters", mock.MatchedBy(func(p types.StrategyParameters) bool {
		return p.Compound.CompoundRatio == 60_000
	}), operatorAddr).Return(assertErr("db down")).Once()
	s.strategy = s.newStrategy(s.chain.Splitter(), store)

	s.Require().NoError(s.strategy.SetCompoundRatio(operatorAddr, 70_000))
	s.Error(s.strategy.SetCompoundRatio(operatorAddr, 60_000))
	s.Equal(int64(70_000), s.strategy.Parameters().Compound.CompoundRatio)
	store.AssertExpectations(s.T())
}
