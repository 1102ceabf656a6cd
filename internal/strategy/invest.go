package strategy

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
)

// DepositToPool invests the idle base asset. Only the splitter may call it, usually right
// after sending funds to the strategy.
func (s *Strategy) DepositToPool(ctx context.Context, caller string) (sdkmath.Int, error) {
	if err := s.authorize(caller, s.splitter.Address(), "splitter"); err != nil {
		return sdkmath.ZeroInt(), err
	}

	liquidity := sdkmath.ZeroInt()
	snap, err := s.guarded(ctx, "depositToPool", func(ctx context.Context) (sdkmath.Int, error) {
		params := s.currentParams()
		base := s.basket.Base()
		idle, err := s.wallet.BalanceOf(ctx, base)
		if err != nil {
			return sdkmath.Int{}, fmt.Errorf("failed to read balance of %s: %w", base, err)
		}
		if idle.GT(params.Thresholds.For(base)) {
			if liquidity, err = s.invest(ctx, idle, params); err != nil {
				return sdkmath.Int{}, err
			}
		}
		return s.planner.CalcInvestedAssets(ctx, s.basket)
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	s.persistValuation(snap)
	s.logger.Info().
		Str("liquidity", liquidity.String()).
		Str("investedAssets", snap.InvestedAssets.String()).
		Msg("Deposited idle base asset to pool")
	return liquidity, nil
}

// invest borrows every non-base basket token against a share of amount sized by the current
// pool weights, then enters the pool with the remaining base asset and every non-base balance.
// It returns the liquidity minted.
func (s *Strategy) invest(ctx context.Context, amount sdkmath.Int, params types.StrategyParameters) (sdkmath.Int, error) {
	base := s.basket.Base()
	weights, err := s.depositor.PoolWeights(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read pool weights: %w", err)
	}
	if len(weights) != s.basket.Len() {
		return sdkmath.ZeroInt(), fmt.Errorf("pool returned %d weights for %d tokens", len(weights), s.basket.Len())
	}
	totalWeight := utils.SumInts(weights)

	collateralUsed := sdkmath.ZeroInt()
	for i, token := range s.basket.Tokens {
		if i == s.basket.BaseIndex {
			continue
		}
		var share sdkmath.Int
		if totalWeight.IsPositive() {
			share = utils.MulDiv(amount, weights[i], totalWeight)
		} else {
			share = amount.QuoRaw(int64(s.basket.Len()))
		}
		if !share.IsPositive() {
			continue
		}

		collateral, borrowed, err := s.opener.Open(ctx, types.ConversionPlan{
			SourceAsset: base,
			TargetAsset: token,
			AmountIn:    share,
			EntryKind:   types.EntryKindExactCollateralIn,
			Threshold:   params.Thresholds.For(token),
		})
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		collateralUsed = collateralUsed.Add(collateral)

		s.logger.Debug().
			Str("token", token).
			Str("collateral", collateral.String()).
			Str("borrowed", borrowed.String()).
			Msg("Borrowed pool token")
	}

	amounts := make([]sdkmath.Int, s.basket.Len())
	for i, token := range s.basket.Tokens {
		if i == s.basket.BaseIndex {
			amounts[i] = utils.SubFloor(amount, collateralUsed)
			continue
		}
		bal, err := s.wallet.BalanceOf(ctx, token)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to read balance of %s: %w", token, err)
		}
		amounts[i] = bal
	}

	liquidity, err := s.depositor.Enter(ctx, amounts)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to enter pool: %w", err)
	}
	return liquidity, nil
}
