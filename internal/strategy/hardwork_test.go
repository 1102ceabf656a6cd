package strategy

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/elys-network/yieldcore/internal/simulations"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
)

func (s *StrategySuite) TestDoHardWorkRequiresSplitter() {
	_, err := s.strategy.DoHardWork(s.ctx, "mallory")
	s.ErrorIs(err, ErrUnauthorized)
	s.Empty(s.chain.Reports())
}

func (s *StrategySuite) TestFirstCycleInvestsIdleDeposit() {
	s.chain.Mint(strategyAddr, "usdc", units(3_000))

	report, err := s.strategy.DoHardWork(s.ctx, splitterAddr)
	s.Require().NoError(err)

	s.True(report.InvestedBefore.IsZero())
	s.True(report.Earned.IsZero())
	s.True(report.Lost.IsZero())
	s.Equal(units(3_000).String(), report.Reinvested.String())
	s.Equal(units(2_250).String(), report.LiquidityAdded.String())
	s.Equal(units(2_750).String(), report.InvestedAfter.String())
	s.Equal(1, report.CycleNumber)
	s.NotEmpty(report.CycleID)

	reports := s.chain.Reports()
	s.Require().Len(reports, 1)
	s.True(reports[0].Earned.IsZero())
	s.True(reports[0].Lost.IsZero())
}

func (s *StrategySuite) TestBaseRewardIsSplitAndReportedAsEarned() {
	s.deposit()
	s.chain.AddPoolRewards(sdktypes.NewCoin("usdc", units(100)))

	report, err := s.strategy.DoHardWork(s.ctx, splitterAddr)
	s.Require().NoError(err)

	// 10 fee (5 insurance, 5 receiver), 45 forwarded, 45 compounded
	s.Equal(units(45).String(), s.chain.BalanceOf(forwarderAddr, "usdc").String())
	s.Equal(units(5).String(), s.chain.BalanceOf(insuranceAddr, "usdc").String())
	s.Equal(units(5).String(), s.chain.BalanceOf(receiverAddr, "usdc").String())
	s.Equal(units(5).String(), report.Insurance.String())
	s.Equal(units(5).String(), report.Performance.String())
	s.Require().Len(report.Forwarded, 1)
	s.Equal("usdc", report.Forwarded[0].Denom)
	s.Require().Len(report.Rewards, 1)
	s.Equal(units(100).String(), report.Rewards[0].Amount.String())

	s.Equal(units(2_750).String(), report.InvestedBefore.String())
	s.Equal(units(45).String(), report.Earned.String())
	s.True(report.Lost.IsZero())

	reports := s.chain.Reports()
	s.Require().Len(reports, 1)
	s.Equal(units(45).String(), reports[0].Earned.String())

	// 250 idle + 45 compounded is above 1% of invested assets
	s.Equal(units(295).String(), report.Reinvested.String())
	s.True(report.LiquidityAdded.IsPositive())
	s.True(report.InvestedAfter.GT(units(2_750)))
	s.Equal(report.InvestedAfter.String(), s.strategy.Snapshot().InvestedAssets.String())
}

func (s *StrategySuite) TestInterestIsReportedAsLost() {
	s.deposit()
	s.chain.AccrueInterest("usdc", "dai", 10_000)

	report, err := s.strategy.DoHardWork(s.ctx, splitterAddr)
	s.Require().NoError(err)

	// repaying 750 of 825 dai debt frees 909.090909 usdc instead of 1000
	s.True(report.Earned.IsZero())
	s.Equal(sdkmath.NewInt(90_909_091).String(), report.Lost.String())
	reports := s.chain.Reports()
	s.Require().Len(reports, 1)
	s.Equal(sdkmath.NewInt(90_909_091).String(), reports[0].Lost.String())
}

func (s *StrategySuite) TestForeignRewardIsForwardedAndSold() {
	s.deposit()
	s.chain.AddLendingRewards(sdktypes.NewCoin(simulations.PAPER_REWARD_TOKEN, units(25)))

	report, err := s.strategy.DoHardWork(s.ctx, splitterAddr)
	s.Require().NoError(err)

	// 25 - 2.5 fee = 22.5, half of it forwarded
	s.Equal(sdkmath.NewInt(11_250_000).String(), s.chain.BalanceOf(forwarderAddr, simulations.PAPER_REWARD_TOKEN).String())
	s.True(s.chain.BalanceOf(strategyAddr, simulations.PAPER_REWARD_TOKEN).IsZero())
	s.True(report.Performance.IsPositive())
	s.True(report.Insurance.IsPositive())
	s.True(report.Earned.IsPositive())
}

func (s *StrategySuite) TestFailedCycleRollsBackEverything() {
	s.deposit()
	s.chain.AddPoolRewards(sdktypes.NewCoin("usdc", units(100)))
	s.chain.FailOn("report", assertErr("splitter unavailable"))
	before := s.strategy.Snapshot()

	report, err := s.strategy.DoHardWork(s.ctx, splitterAddr)
	s.Require().Error(err)
	s.ErrorIs(err, simulations.ErrInjected)
	s.Nil(report)

	s.True(s.chain.BalanceOf(forwarderAddr, "usdc").IsZero())
	s.True(s.chain.BalanceOf(insuranceAddr, "usdc").IsZero())
	s.Equal(units(250).String(), s.chain.BalanceOf(strategyAddr, "usdc").String())
	s.Empty(s.chain.Reports())
	s.Equal(before, s.strategy.Snapshot())
	s.False(s.strategy.Busy())

	// the rolled back reward is claimed again on the next cycle
	report, err = s.strategy.DoHardWork(s.ctx, splitterAddr)
	s.Require().NoError(err)
	s.Equal(units(45).String(), report.Earned.String())

	n, err := testutil.GatherAndCount(s.registry, "yieldcore_cycles_total")
	s.Require().NoError(err)
	s.Equal(2, n) // success and failure series
}

func (s *StrategySuite) TestSmallIdleBalanceIsNotReinvested() {
	s.deposit()
	_, err := s.strategy.WithdrawToSplitter(s.ctx, splitterAddr, units(240))
	s.Require().NoError(err)

	report, err := s.strategy.DoHardWork(s.ctx, splitterAddr)
	s.Require().NoError(err)
	s.True(report.Reinvested.IsZero())
	s.Equal(units(10).String(), s.chain.BalanceOf(strategyAddr, "usdc").String())
}

func (s *StrategySuite) TestStoreReceivesCycleAndValuation() {
	store := new(mockStore)
	restored := &types.ValuationSnapshot{StrategyID: "test-strategy", InvestedAssets: units(500), UpdatedAt: time.Unix(1_700_000_000, 0).UTC()}
	store.On("LoadValuationSnapshot").Return(restored, nil).Once()
	store.On("NextCycleNumber").Return(7, nil).Once()
	store.On("SaveValuationSnapshot", mock.MatchedBy(func(snap types.ValuationSnapshot) bool {
		return snap.StrategyID == "test-strategy" && snap.InvestedAssets.IsZero()
	})).Return(nil).Once()
	store.On("SaveCycleReport", mock.MatchedBy(func(r types.CycleReport) bool {
		return r.CycleNumber == 7 && r.Lost.Equal(units(500)) && r.StrategyID == "test-strategy"
	})).Return(int64(42), nil).Once()

	s.strategy = s.newStrategy(s.chain.Splitter(), store)
	s.Equal(units(500).String(), s.strategy.Snapshot().InvestedAssets.String())

	report, err := s.strategy.DoHardWork(s.ctx, splitterAddr)
	s.Require().NoError(err)
	s.Equal(int64(42), report.ReportID)
	s.Equal(7, report.CycleNumber)
	store.AssertExpectations(s.T())
}

func (s *StrategySuite) TestStoreErrorsDoNotFailTheCycle() {
	store := new(mockStore)
	store.On("LoadValuationSnapshot").Return(nil, nil).Once()
	store.On("NextCycleNumber").Return(0, assertErr("db down")).Once()
	store.On("SaveValuationSnapshot", mock.Anything).Return(assertErr("db down")).Once()
	store.On("SaveCycleReport", mock.Anything).Return(int64(0), assertErr("db down")).Once()

	s.strategy = s.newStrategy(s.chain.Splitter(), store)
	report, err := s.strategy.DoHardWork(s.ctx, splitterAddr)
	s.Require().NoError(err)
	s.Equal(1, report.CycleNumber)
	s.Zero(report.ReportID)
	store.AssertExpectations(s.T())
}

func (s *StrategySuite) TestPaybackRightAfterCycleKeepsItsSnapshot() {
	s.deposit()

	// every clock read after the first fires a payback: inside the guard it is rejected,
	// once the cycle has released the guard it goes through
	paid, rejected := sdkmath.ZeroInt(), 0
	calls, inHook := 0, false
	s.strategy.now = func() time.Time {
		calls++
		if calls > 1 && !inHook {
			inHook = true
			receipt, err := s.strategy.RequirePayAmountBack(s.ctx, aggregatorAddr, "usdc", units(1_000))
			if err != nil {
				s.Require().ErrorIs(err, ErrReentrantCall)
				rejected++
			} else {
				paid = paid.Add(receipt.Returned)
			}
			inHook = false
		}
		return time.Unix(1_700_000_000, 0)
	}

	_, err := s.strategy.DoHardWork(s.ctx, splitterAddr)
	s.Require().NoError(err)
	s.strategy.now = time.Now

	s.True(paid.IsPositive())
	s.Positive(rejected)
	invested, err := s.strategy.planner.CalcInvestedAssets(s.ctx, s.basket)
	s.Require().NoError(err)
	s.Equal(invested.String(), s.strategy.Snapshot().InvestedAssets.String())

	report, err := s.strategy.DoHardWork(s.ctx, splitterAddr)
	s.Require().NoError(err)
	s.True(report.Lost.IsZero(), "lost %s", report.Lost)
}

func (s *StrategySuite) TestRunLoopCallsDoHardWork() {
	s.deposit()
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.strategy.RunLoop(ctx, 10*time.Millisecond, s.chain.Tick)
	}()

	s.Eventually(func() bool { return len(s.chain.Reports()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
	s.True(s.chain.BalanceOf(forwarderAddr, simulations.PAPER_REWARD_TOKEN).IsPositive())
}

func (s *StrategySuite) TestMergeRewards() {
	tokens, amounts := mergeRewards(
		[]sdktypes.Coin{{Denom: "usdc", Amount: units(1)}, {Denom: "paperreward", Amount: units(2)}},
		[]sdktypes.Coin{{Denom: "paperreward", Amount: units(3)}, {Denom: "dai", Amount: sdkmath.ZeroInt()}},
	)
	s.Equal([]string{"usdc", "paperreward"}, tokens)
	s.Equal(units(1).String(), amounts[0].String())
	s.Equal(units(5).String(), amounts[1].String())
}
