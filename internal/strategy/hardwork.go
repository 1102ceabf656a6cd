package strategy

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/elys-network/yieldcore/internal/liquidator"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DoHardWork harvests rewards, recycles them, reports earned/lost to the splitter and
// reinvests idle base asset. Only the splitter may call it.
func (s *Strategy) DoHardWork(ctx context.Context, caller string) (*types.CycleReport, error) {
	if err := s.authorize(caller, s.splitter.Address(), "splitter"); err != nil {
		return nil, err
	}

	cycleStart := s.now()
	cycleID := uuid.New().String()
	cycleLogger := s.logger.With().Str("cycle_id", cycleID).Logger()
	cycleLogger.Info().Msg("--- Starting work cycle ---")

	var report types.CycleReport
	snap, err := s.guarded(ctx, "doHardWork", func(ctx context.Context) (sdkmath.Int, error) {
		r, err := s.doHardWork(ctx, cycleLogger)
		if err != nil {
			return sdkmath.Int{}, err
		}
		report = r
		report.CycleNumber = s.nextCycleNumber(cycleLogger)
		return report.InvestedAfter, nil
	})
	if err != nil {
		if errors.Is(err, ErrReentrantCall) {
			return nil, err
		}
		s.metrics.CycleFailed()
		if errors.Is(err, liquidator.ErrPriceImpactTooHigh) {
			s.metrics.PriceImpactRejected("do_hard_work")
		}
		cycleLogger.Error().Err(err).Msg("Work cycle aborted, all effects rolled back")
		return nil, err
	}

	report.CycleID = cycleID
	report.StrategyID = s.id
	report.Timestamp = cycleStart.UTC()
	report.Duration = s.now().Sub(cycleStart)

	s.persistValuation(snap)
	s.metrics.CycleCompleted(report.Duration, report.Earned, report.Lost, report.Performance, report.Insurance, report.Reinvested)
	for _, c := range report.Forwarded {
		s.metrics.Forwarded(c.Denom, c.Amount)
	}
	if s.store != nil {
		id, err := s.store.SaveCycleReport(report)
		if err != nil {
			cycleLogger.Error().Err(err).Msg("Failed to persist cycle report")
		} else {
			report.ReportID = id
		}
	}

	cycleLogger.Info().
		Int("cycleNumber", report.CycleNumber).
		Str("earned", report.Earned.String()).
		Str("lost", report.Lost.String()).
		Str("investedAfter", report.InvestedAfter.String()).
		Dur("duration", report.Duration).
		Msg("--- Work cycle completed ---")
	return &report, nil
}

func (s *Strategy) doHardWork(ctx context.Context, cycleLogger zerolog.Logger) (types.CycleReport, error) {
	params := s.currentParams()
	base := s.basket.Base()
	prev := s.Snapshot()

	report := types.CycleReport{
		Earned:         sdkmath.ZeroInt(),
		Lost:           sdkmath.ZeroInt(),
		Performance:    sdkmath.ZeroInt(),
		Insurance:      sdkmath.ZeroInt(),
		Reinvested:     sdkmath.ZeroInt(),
		LiquidityAdded: sdkmath.ZeroInt(),
		Forwarded:      []sdktypes.Coin{},
		Rewards:        []sdktypes.Coin{},
	}

	investedBefore := prev.InvestedAssets
	if prev.UpdatedAt.IsZero() {
		// never valued: this cycle starts from the current position
		v, err := s.planner.CalcInvestedAssets(ctx, s.basket)
		if err != nil {
			return report, err
		}
		investedBefore = v
	}
	report.InvestedBefore = investedBefore

	baseBefore, err := s.wallet.BalanceOf(ctx, base)
	if err != nil {
		return report, fmt.Errorf("failed to read balance of %s: %w", base, err)
	}

	// --- Step 1: Claim rewards ---
	poolRewards, err := s.depositor.ClaimRewards(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to claim pool rewards: %w", err)
	}
	lendingRewards, err := s.aggregator.ClaimRewards(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to claim lending rewards: %w", err)
	}
	rewardTokens, rewardAmounts := mergeRewards(poolRewards, lendingRewards)
	report.Rewards = toCoins(rewardTokens, rewardAmounts)
	cycleLogger.Info().Int("rewardTokens", len(rewardTokens)).Msg("Step 1: Rewards claimed")

	// --- Step 2: Recycle and distribute ---
	forward, perf, err := s.recycler.Recycle(ctx, s.basket, rewardTokens, rewardAmounts, params)
	if err != nil {
		return report, err
	}
	for i, token := range rewardTokens {
		if !forward[i].IsPositive() {
			continue
		}
		if err := s.wallet.Transfer(ctx, token, s.roles.Forwarder, forward[i]); err != nil {
			return report, fmt.Errorf("failed to forward %s %s: %w", forward[i], token, err)
		}
		report.Forwarded = append(report.Forwarded, sdktypes.Coin{Denom: token, Amount: forward[i]})
	}
	insurance, receiver, err := s.payPerformance(ctx, perf, params)
	if err != nil {
		return report, err
	}
	report.Insurance = insurance
	report.Performance = receiver
	cycleLogger.Info().
		Int("forwarded", len(report.Forwarded)).
		Str("performance", receiver.String()).
		Str("insurance", insurance.String()).
		Msg("Step 2: Rewards recycled")

	// --- Step 3: Re-value and report ---
	investedNow, err := s.planner.CalcInvestedAssets(ctx, s.basket)
	if err != nil {
		return report, err
	}
	baseAfter, err := s.wallet.BalanceOf(ctx, base)
	if err != nil {
		return report, fmt.Errorf("failed to read balance of %s: %w", base, err)
	}
	proceeds := utils.SubFloor(baseAfter, baseBefore)
	valueNow := investedNow.Add(proceeds)
	if valueNow.GTE(investedBefore) {
		report.Earned = valueNow.Sub(investedBefore)
	} else {
		report.Lost = investedBefore.Sub(valueNow)
	}
	if err := s.splitter.ReportEarnedLost(ctx, report.Earned, report.Lost); err != nil {
		return report, fmt.Errorf("failed to report earned/lost to splitter: %w", err)
	}
	cycleLogger.Info().
		Str("investedBefore", investedBefore.String()).
		Str("investedNow", investedNow.String()).
		Str("proceeds", proceeds.String()).
		Str("earned", report.Earned.String()).
		Str("lost", report.Lost.String()).
		Msg("Step 3: Earned/lost reported")

	// --- Step 4: Reinvest idle base asset ---
	report.InvestedAfter = investedNow
	idle, err := s.wallet.BalanceOf(ctx, base)
	if err != nil {
		return report, fmt.Errorf("failed to read balance of %s: %w", base, err)
	}
	threshold := utils.MulRatio(investedNow, params.ReinvestThresholdPercent)
	if idle.GT(threshold) && idle.GT(params.Thresholds.For(base)) {
		liquidity, err := s.invest(ctx, idle, params)
		if err != nil {
			return report, err
		}
		report.Reinvested = idle
		report.LiquidityAdded = liquidity
		report.InvestedAfter, err = s.planner.CalcInvestedAssets(ctx, s.basket)
		if err != nil {
			return report, err
		}
		cycleLogger.Info().
			Str("reinvested", idle.String()).
			Str("liquidity", liquidity.String()).
			Msg("Step 4: Idle base asset reinvested")
	} else {
		cycleLogger.Info().
			Str("idle", idle.String()).
			Str("threshold", threshold.String()).
			Msg("Step 4: Idle base asset below reinvest threshold")
	}

	return report, nil
}

// payPerformance splits the performance amount between the insurance reserve and the
// performance receiver.
func (s *Strategy) payPerformance(ctx context.Context, perf sdkmath.Int, params types.StrategyParameters) (insurance, receiver sdkmath.Int, err error) {
	insurance, receiver = sdkmath.ZeroInt(), sdkmath.ZeroInt()
	if perf.IsNil() || !perf.IsPositive() {
		return insurance, receiver, nil
	}
	base := s.basket.Base()
	insurance = utils.MulRatio(perf, params.Performance.InsuranceSplit)
	receiver = perf.Sub(insurance)

	if insurance.IsPositive() {
		if err := s.wallet.Transfer(ctx, base, s.roles.Insurance, insurance); err != nil {
			return insurance, receiver, fmt.Errorf("failed to pay insurance: %w", err)
		}
	}
	if receiver.IsPositive() {
		if err := s.wallet.Transfer(ctx, base, params.Performance.Receiver, receiver); err != nil {
			return insurance, receiver, fmt.Errorf("failed to pay performance fee: %w", err)
		}
	}
	return insurance, receiver, nil
}

func (s *Strategy) nextCycleNumber(cycleLogger zerolog.Logger) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		n, err := s.store.NextCycleNumber()
		if err == nil {
			s.cycleNumber = n
			return n
		}
		cycleLogger.Error().Err(err).Msg("Failed to increment persistent cycle counter, using local counter")
	}
	s.cycleNumber++
	return s.cycleNumber
}

// mergeRewards folds both claims into one token list, keeping first-seen order.
func mergeRewards(claims ...[]sdktypes.Coin) ([]string, []sdkmath.Int) {
	index := make(map[string]int)
	var tokens []string
	var amounts []sdkmath.Int
	for _, claim := range claims {
		for _, c := range claim {
			if c.Amount.IsNil() || !c.Amount.IsPositive() {
				continue
			}
			if i, ok := index[c.Denom]; ok {
				amounts[i] = amounts[i].Add(c.Amount)
				continue
			}
			index[c.Denom] = len(tokens)
			tokens = append(tokens, c.Denom)
			amounts = append(amounts, c.Amount)
		}
	}
	return tokens, amounts
}

func toCoins(tokens []string, amounts []sdkmath.Int) []sdktypes.Coin {
	coins := make([]sdktypes.Coin, len(tokens))
	for i := range tokens {
		coins[i] = sdktypes.Coin{Denom: tokens[i], Amount: amounts[i]}
	}
	return coins
}
