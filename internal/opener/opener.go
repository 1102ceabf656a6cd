/*

The position opener allocates one borrow across several lending venues.

Venues are walked cheapest first. Each one receives as much of the remaining collateral as it
can take and borrows pro rata to the pair it quoted. A venue whose share would borrow less than
the plan threshold is skipped so no dust position is ever opened.

*/

package opener

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/external"
	"github.com/elys-network/yieldcore/internal/logger"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidAmountIn    = errors.New("amount in must be positive")
	ErrInvalidProportions = errors.New("entry proportions must not both be zero")
)

type Opener struct {
	logger     zerolog.Logger
	aggregator external.LendingAggregator
}

func New(aggregator external.LendingAggregator) *Opener {
	return &Opener{
		logger:     logger.GetForComponent("position_opener"),
		aggregator: aggregator,
	}
}

// Open quotes the plan on the aggregator and opens the resulting positions.
func (o *Opener) Open(ctx context.Context, plan types.ConversionPlan) (collateralAmountOut, borrowAmountOut sdkmath.Int, err error) {
	if plan.AmountIn.IsNil() || !plan.AmountIn.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrInvalidAmountIn
	}
	quotes, err := o.aggregator.QuoteBorrowAcrossVenues(ctx, plan)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("failed to quote venues for %s->%s: %w", plan.SourceAsset, plan.TargetAsset, err)
	}
	return o.OpenPosition(ctx, plan, quotes)
}

// OpenPosition runs the APR waterfall over venueQuotes. A zero result means no venue qualified.
func (o *Opener) OpenPosition(ctx context.Context, plan types.ConversionPlan, venueQuotes []types.VenueQuote) (collateralAmountOut, borrowAmountOut sdkmath.Int, err error) {
	collateralAmountOut, borrowAmountOut = sdkmath.ZeroInt(), sdkmath.ZeroInt()
	if plan.AmountIn.IsNil() || !plan.AmountIn.IsPositive() {
		return collateralAmountOut, borrowAmountOut, ErrInvalidAmountIn
	}

	remaining, err := collateralBudget(plan)
	if err != nil {
		return collateralAmountOut, borrowAmountOut, err
	}
	threshold := plan.Threshold
	if threshold.IsNil() {
		threshold = sdkmath.ZeroInt()
	}

	quotes := SortByApr(venueQuotes)
	for _, q := range quotes {
		if !remaining.IsPositive() {
			break
		}
		if q.CollateralAmountOut.IsNil() || !q.CollateralAmountOut.IsPositive() || q.BorrowAmountOut.IsNil() {
			continue
		}

		capacity := sdkmath.MinInt(remaining, q.CollateralAmountOut)
		borrow := utils.MulDiv(q.BorrowAmountOut, capacity, q.CollateralAmountOut)
		if borrow.LT(threshold) || borrow.IsZero() {
			o.logger.Debug().
				Str("venue", q.VenueID).
				Str("borrow", borrow.String()).
				Str("threshold", threshold.String()).
				Msg("Skipping venue below borrow threshold")
			continue
		}

		borrowed, err := o.aggregator.Borrow(ctx, q.VenueID, plan.SourceAsset, plan.TargetAsset, capacity, borrow)
		if err != nil {
			return collateralAmountOut, borrowAmountOut, fmt.Errorf("failed to borrow %s on venue %s: %w", plan.TargetAsset, q.VenueID, err)
		}

		collateralAmountOut = collateralAmountOut.Add(capacity)
		borrowAmountOut = borrowAmountOut.Add(borrowed)
		remaining = remaining.Sub(capacity)

		o.logger.Info().
			Str("venue", q.VenueID).
			Str("collateral", capacity.String()).
			Str("borrowed", borrowed.String()).
			Str("remaining", remaining.String()).
			Msg("Opened sub-position")
	}

	if collateralAmountOut.IsZero() {
		o.logger.Info().
			Str("source", plan.SourceAsset).
			Str("target", plan.TargetAsset).
			Int("venues", len(venueQuotes)).
			Msg("No venue qualified, no position opened")
	}
	return collateralAmountOut, borrowAmountOut, nil
}

// SortByApr returns a copy of quotes ordered by signed APR ascending. Equal APRs keep their order.
func SortByApr(quotes []types.VenueQuote) []types.VenueQuote {
	out := append([]types.VenueQuote(nil), quotes...)
	sort.SliceStable(out, func(i, j int) bool {
		return aprOf(out[i]).LT(aprOf(out[j]))
	})
	return out
}

func aprOf(q types.VenueQuote) sdkmath.Int {
	if q.AprEstimate18.IsNil() {
		return sdkmath.ZeroInt()
	}
	return q.AprEstimate18
}

// collateralBudget is the part of AmountIn that may be used as collateral.
func collateralBudget(plan types.ConversionPlan) (sdkmath.Int, error) {
	if plan.EntryKind != types.EntryKindExactProportion {
		return plan.AmountIn, nil
	}
	p0, p1 := plan.Proportions[0], plan.Proportions[1]
	if p0.IsNil() {
		p0 = sdkmath.ZeroInt()
	}
	if p1.IsNil() {
		p1 = sdkmath.ZeroInt()
	}
	total := p0.Add(p1)
	if !total.IsPositive() || p0.IsNegative() || p1.IsNegative() {
		return sdkmath.ZeroInt(), ErrInvalidProportions
	}
	return utils.MulDiv(plan.AmountIn, p0, total), nil
}
