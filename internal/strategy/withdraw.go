package strategy

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/planner"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
)

var ErrInvalidAmount = errors.New("amount must be positive")

// WithdrawToSplitter sends amount of base asset to the splitter, unwinding pool liquidity and
// debt as needed. planner.MaxAmount() withdraws everything. It returns the amount sent, which
// may be lower than amount when the position cannot produce more.
func (s *Strategy) WithdrawToSplitter(ctx context.Context, caller string, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := s.authorize(caller, s.splitter.Address(), "splitter"); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidAmount
	}
	return s.withdrawToSplitter(ctx, "withdrawToSplitter", amount)
}

// WithdrawAllToSplitter closes the whole position and sends every unit of base asset to the splitter.
func (s *Strategy) WithdrawAllToSplitter(ctx context.Context, caller string) (sdkmath.Int, error) {
	if err := s.authorize(caller, s.splitter.Address(), "splitter"); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return s.withdrawToSplitter(ctx, "withdrawAllToSplitter", planner.MaxAmount())
}

// EmergencyExit closes the whole position and leaves the funds idle on the strategy.
func (s *Strategy) EmergencyExit(ctx context.Context, caller string) error {
	if err := s.authorize(caller, s.roles.Governance, "governance"); err != nil {
		return err
	}

	snap, err := s.guarded(ctx, "emergencyExit", func(ctx context.Context) (sdkmath.Int, error) {
		if err := s.withdrawAll(ctx, s.currentParams()); err != nil {
			return sdkmath.Int{}, err
		}
		return s.planner.CalcInvestedAssets(ctx, s.basket)
	})
	if err != nil {
		return err
	}

	s.persistValuation(snap)
	s.logger.Warn().Str("investedAssets", snap.InvestedAssets.String()).Msg("Emergency exit completed")
	return nil
}

func (s *Strategy) withdrawToSplitter(ctx context.Context, op string, amount sdkmath.Int) (sdkmath.Int, error) {
	base := s.basket.Base()
	sent := sdkmath.ZeroInt()

	snap, err := s.guarded(ctx, op, func(ctx context.Context) (sdkmath.Int, error) {
		params := s.currentParams()
		var balance sdkmath.Int
		var err error
		if planner.IsMax(amount) {
			if err = s.withdrawAll(ctx, params); err != nil {
				return sdkmath.Int{}, err
			}
			balance, err = s.wallet.BalanceOf(ctx, base)
		} else {
			balance, err = s.gatherBase(ctx, amount, params)
		}
		if err != nil {
			return sdkmath.Int{}, err
		}

		sent = sdkmath.MinInt(balance, amount)
		if sent.IsPositive() {
			if err := s.wallet.Transfer(ctx, base, s.splitter.Address(), sent); err != nil {
				return sdkmath.Int{}, fmt.Errorf("failed to send %s %s to splitter: %w", sent, base, err)
			}
		}
		return s.planner.CalcInvestedAssets(ctx, s.basket)
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	s.persistValuation(snap)
	s.logger.Info().
		Str("op", op).
		Str("sent", sent.String()).
		Str("investedAssets", snap.InvestedAssets.String()).
		Msg("Withdrew base asset to splitter")
	return sent, nil
}

// gatherBase tries to make amount of base asset idle: pool liquidity is withdrawn and its
// tokens repay debt, then base asset is sold into debt tokens to free more collateral. It
// returns the idle base balance afterwards.
func (s *Strategy) gatherBase(ctx context.Context, amount sdkmath.Int, params types.StrategyParameters) (sdkmath.Int, error) {
	base := s.basket.Base()
	balance, err := s.wallet.BalanceOf(ctx, base)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read balance of %s: %w", base, err)
	}
	if balance.GTE(amount) {
		return balance, nil
	}
	shortfall := amount.Sub(balance)

	invested, err := s.planner.CalcInvestedAssets(ctx, s.basket)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	liquidity, err := s.depositor.CurrentLiquidity(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read pool liquidity: %w", err)
	}
	toWithdraw, amountsToConvert, err := s.planner.GetLiquidityAmount(ctx, shortfall, s.basket, invested, liquidity, params.SafetyGap)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := s.exitAndConvert(ctx, toWithdraw, amountsToConvert, params); err != nil {
		return sdkmath.ZeroInt(), err
	}

	balance, err = s.wallet.BalanceOf(ctx, base)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read balance of %s: %w", base, err)
	}
	if balance.LT(amount) {
		if _, err := s.planner.ClosePositionsToGetAmount(ctx, s.basket, amount.Sub(balance), params); err != nil {
			return sdkmath.ZeroInt(), err
		}
		balance, err = s.wallet.BalanceOf(ctx, base)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to read balance of %s: %w", base, err)
		}
	}
	return balance, nil
}

// withdrawAll exits every unit of liquidity and closes every debt position.
func (s *Strategy) withdrawAll(ctx context.Context, params types.StrategyParameters) error {
	invested, err := s.planner.CalcInvestedAssets(ctx, s.basket)
	if err != nil {
		return err
	}
	liquidity, err := s.depositor.CurrentLiquidity(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pool liquidity: %w", err)
	}
	toWithdraw, amountsToConvert, err := s.planner.GetLiquidityAmount(ctx, sdkmath.ZeroInt(), s.basket, invested, liquidity, params.SafetyGap)
	if err != nil {
		return err
	}
	if err := s.exitAndConvert(ctx, toWithdraw, amountsToConvert, params); err != nil {
		return err
	}
	_, err = s.planner.ClosePositionsToGetAmount(ctx, s.basket, planner.MaxAmount(), params)
	return err
}

func (s *Strategy) exitAndConvert(ctx context.Context, liquidity sdkmath.Int, amountsToConvert []sdkmath.Int, params types.StrategyParameters) error {
	if liquidity.IsPositive() {
		out, err := s.depositor.Exit(ctx, liquidity)
		if err != nil {
			return fmt.Errorf("failed to exit pool: %w", err)
		}
		if len(out) != s.basket.Len() {
			return fmt.Errorf("pool exit returned %d amounts for %d tokens", len(out), s.basket.Len())
		}
		for i := range out {
			if i != s.basket.BaseIndex {
				amountsToConvert[i] = amountsToConvert[i].Add(out[i])
			}
		}
	}
	if !utils.SumInts(amountsToConvert).IsPositive() {
		return nil
	}
	_, _, err := s.planner.ConvertAfterWithdraw(ctx, s.basket, amountsToConvert, params)
	return err
}
