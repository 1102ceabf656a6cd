package strategy

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/external"
	"github.com/elys-network/yieldcore/internal/liquidator"
	"github.com/elys-network/yieldcore/internal/metrics"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
	"github.com/google/uuid"
)

const REASON_INSUFFICIENT_FUNDS = "position could not produce the full amount"

// RequirePayAmountBack returns amount of asset to the lending aggregator, unwinding the
// position when the idle balance is short. A gathering step rejected for price impact is
// rolled back and the call returns what is already on hand. Only the aggregator may call it.
func (s *Strategy) RequirePayAmountBack(ctx context.Context, caller, asset string, amount sdkmath.Int) (*types.PaybackReceipt, error) {
	if err := s.authorize(caller, s.aggregator.Address(), "aggregator"); err != nil {
		return nil, err
	}
	if !s.basket.Contains(asset) {
		s.metrics.CallRejected(REJECT_UNSUPPORTED_ASSET)
		return nil, errors.Join(ErrUnsupportedAsset, fmt.Errorf("%s is not in basket %v", asset, s.basket.Tokens))
	}

	receipt := types.PaybackReceipt{
		ReceiptID:  uuid.New().String(),
		StrategyID: s.id,
		Asset:      asset,
		Requested:  amount,
		Returned:   sdkmath.ZeroInt(),
		Timestamp:  s.now().UTC(),
	}
	if amount.IsNil() || !amount.IsPositive() {
		// nothing owed
		receipt.Requested = sdkmath.ZeroInt()
		return &receipt, nil
	}
	outcome := metrics.PAYBACK_DIRECT

	snap, err := s.guarded(ctx, "requirePayAmountBack", func(ctx context.Context) (sdkmath.Int, error) {
		params := s.currentParams()
		balance, err := s.wallet.BalanceOf(ctx, asset)
		if err != nil {
			return sdkmath.Int{}, fmt.Errorf("failed to read balance of %s: %w", asset, err)
		}

		if balance.LT(amount) {
			outcome = metrics.PAYBACK_FULL
			rejected, err := s.bestEffort(ctx, "payback gather", func(ctx context.Context) error {
				if asset == s.basket.Base() {
					_, err := s.gatherBase(ctx, amount, params)
					return err
				}
				return s.gatherToken(ctx, asset, amount, params)
			})
			if err != nil {
				return sdkmath.Int{}, err
			}
			if rejected != nil {
				receipt.Reason = rejected.Error()
			}
			if balance, err = s.wallet.BalanceOf(ctx, asset); err != nil {
				return sdkmath.Int{}, fmt.Errorf("failed to read balance of %s: %w", asset, err)
			}
		}

		receipt.Returned = sdkmath.MinInt(balance, amount)
		if receipt.Returned.IsPositive() {
			if err := s.wallet.Transfer(ctx, asset, s.aggregator.Address(), receipt.Returned); err != nil {
				return sdkmath.Int{}, fmt.Errorf("failed to pay back %s %s: %w", receipt.Returned, asset, err)
			}
		}
		if receipt.Returned.LT(amount) {
			receipt.Partial = true
			outcome = metrics.PAYBACK_PARTIAL
			if receipt.Reason == "" {
				receipt.Reason = REASON_INSUFFICIENT_FUNDS
			}
		}

		return s.planner.CalcInvestedAssets(ctx, s.basket)
	})
	if err != nil {
		if !errors.Is(err, ErrReentrantCall) {
			s.logger.Error().Err(err).Str("asset", asset).Str("amount", amount.String()).Msg("Payback failed, all effects rolled back")
		}
		return nil, err
	}

	s.persistValuation(snap)
	s.metrics.Payback(outcome)
	if s.store != nil {
		if err := s.store.SavePaybackReceipt(receipt); err != nil {
			s.logger.Error().Err(err).Str("receipt_id", receipt.ReceiptID).Msg("Failed to persist payback receipt")
		}
	}

	ev := s.logger.Info()
	if receipt.Partial {
		ev = s.logger.Warn().Str("reason", receipt.Reason)
	}
	ev.Str("asset", asset).
		Str("requested", amount.String()).
		Str("returned", receipt.Returned.String()).
		Str("outcome", outcome).
		Msg("Paid amount back to aggregator")
	return &receipt, nil
}

// gatherToken exits enough pool liquidity to hold amount of a non-base basket token. The other
// tokens released by the exit stay on the balance.
func (s *Strategy) gatherToken(ctx context.Context, token string, amount sdkmath.Int, params types.StrategyParameters) error {
	idx := s.basket.IndexOf(token)
	balance, err := s.wallet.BalanceOf(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to read balance of %s: %w", token, err)
	}
	if balance.GTE(amount) {
		return nil
	}
	liquidity, err := s.depositor.CurrentLiquidity(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pool liquidity: %w", err)
	}
	if !liquidity.IsPositive() {
		return nil
	}
	quoted, err := s.depositor.QuoteExit(ctx, liquidity)
	if err != nil {
		return fmt.Errorf("failed to quote pool exit: %w", err)
	}
	if len(quoted) != s.basket.Len() || !quoted[idx].IsPositive() {
		return nil
	}

	// the pool cannot release more than quoted[idx]
	need := utils.AddGap(sdkmath.MinInt(amount.Sub(balance), quoted[idx]), params.SafetyGap)
	toExit := sdkmath.MinInt(utils.MulDiv(liquidity, need, quoted[idx]), liquidity)
	if !toExit.IsPositive() {
		return nil
	}
	if _, err := s.depositor.Exit(ctx, toExit); err != nil {
		return fmt.Errorf("failed to exit pool: %w", err)
	}
	return nil
}

// bestEffort runs fn in a nested journal transaction. A price impact rejection is rolled back
// and returned as rejected so the caller can carry on with what it has; any other error is
// returned as err.
func (s *Strategy) bestEffort(ctx context.Context, op string, fn func(ctx context.Context) error) (rejected, err error) {
	var tx external.Tx
	if s.journal != nil {
		if tx, err = s.journal.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin %s: %w", op, err)
		}
	}

	fnErr := fn(ctx)
	if fnErr == nil {
		if tx != nil {
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("failed to commit %s: %w", op, err)
			}
		}
		return nil, nil
	}
	if tx != nil {
		if err := tx.Rollback(); err != nil {
			return nil, errors.Join(fnErr, err)
		}
	}
	if !errors.Is(fnErr, liquidator.ErrPriceImpactTooHigh) {
		return nil, fnErr
	}
	s.metrics.PriceImpactRejected("payback")
	s.logger.Warn().Err(fnErr).Str("op", op).Msg("Price impact too high, paying back what is on hand")
	return fnErr, nil
}
