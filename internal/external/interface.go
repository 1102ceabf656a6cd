package external

import (
	"context"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/elys-network/yieldcore/internal/types"
)

// LendingAggregator routes borrows across lending venues and owns every debt position
// of the strategy. Collateral is always the base asset.
type LendingAggregator interface {
	// Address is the caller identity the aggregator uses when calling back into the strategy.
	Address() string

	// QuoteBorrowAcrossVenues returns the maximum collateral/borrow pair each venue can serve for the plan.
	QuoteBorrowAcrossVenues(ctx context.Context, plan types.ConversionPlan) ([]types.VenueQuote, error)

	// Borrow locks collateralAmount on venueID and sends the borrowed asset to the strategy.
	Borrow(ctx context.Context, venueID, collateralAsset, borrowAsset string, collateralAmount, borrowAmount sdkmath.Int) (sdkmath.Int, error)

	// Repay takes amount of borrowAsset from the strategy and returns the freed collateral.
	Repay(ctx context.Context, collateralAsset, borrowAsset string, amount sdkmath.Int) (collateralReturned, repaid sdkmath.Int, err error)

	// QuoteRepay returns the collateral Repay would free for amount, without moving funds.
	QuoteRepay(ctx context.Context, collateralAsset, borrowAsset string, amount sdkmath.Int) (sdkmath.Int, error)

	// DebtStatus aggregates the debt and locked collateral of one pair across all venues.
	DebtStatus(ctx context.Context, collateralAsset, borrowAsset string) (types.DebtStatus, error)

	// ClaimRewards sends pending lending rewards to the strategy.
	ClaimRewards(ctx context.Context) ([]sdktypes.Coin, error)
}

// SwapService executes market swaps for the strategy.
type SwapService interface {
	// Quote returns the expected output of a swap at current market conditions.
	Quote(ctx context.Context, tokenIn, tokenOut string, amountIn sdkmath.Int) (sdkmath.Int, error)

	// Liquidate swaps amountIn of tokenIn held by the strategy into tokenOut.
	Liquidate(ctx context.Context, tokenIn, tokenOut string, amountIn sdkmath.Int, maxSlippage int64) (sdkmath.Int, error)
}

// PriceOracle provides reference prices independent of the swap venue.
type PriceOracle interface {
	Price(ctx context.Context, token string) (types.TokenPrice, error)
}

// PoolDepositor wraps the liquidity pool. Amount slices follow the basket order.
type PoolDepositor interface {
	Enter(ctx context.Context, amounts []sdkmath.Int) (sdkmath.Int, error)
	Exit(ctx context.Context, liquidity sdkmath.Int) ([]sdkmath.Int, error)
	QuoteExit(ctx context.Context, liquidity sdkmath.Int) ([]sdkmath.Int, error)
	CurrentLiquidity(ctx context.Context) (sdkmath.Int, error)

	// PoolWeights returns the current value share of each basket token in the pool.
	PoolWeights(ctx context.Context) ([]sdkmath.Int, error)

	// ClaimRewards sends pending pool rewards to the strategy.
	ClaimRewards(ctx context.Context) ([]sdktypes.Coin, error)
}

// Splitter is the upstream vault side of the strategy.
type Splitter interface {
	Address() string
	ReportEarnedLost(ctx context.Context, earned, lost sdkmath.Int) error
}

// Wallet holds the strategy's own token balances.
type Wallet interface {
	BalanceOf(ctx context.Context, token string) (sdkmath.Int, error)
	Transfer(ctx context.Context, token, to string, amount sdkmath.Int) error
}

// Journal groups every collaborator side effect of one entry point so it can be undone.
type Journal interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is an open journal entry.
type Tx interface {
	Commit() error
	Rollback() error
}
