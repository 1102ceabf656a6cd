// Package externaltest provides testify mocks of the collaborator interfaces.
package externaltest

import (
	"context"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/elys-network/yieldcore/internal/external"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/stretchr/testify/mock"
)

var (
	_ external.LendingAggregator = (*LendingAggregator)(nil)
	_ external.SwapService       = (*SwapService)(nil)
	_ external.PriceOracle       = (*PriceOracle)(nil)
	_ external.PoolDepositor     = (*PoolDepositor)(nil)
	_ external.Splitter          = (*Splitter)(nil)
	_ external.Wallet            = (*Wallet)(nil)
)

func intArg(args mock.Arguments, i int) sdkmath.Int {
	if v, ok := args.Get(i).(sdkmath.Int); ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func intsArg(args mock.Arguments, i int) []sdkmath.Int {
	if v, ok := args.Get(i).([]sdkmath.Int); ok {
		return v
	}
	return nil
}

func coinsArg(args mock.Arguments, i int) []sdktypes.Coin {
	if v, ok := args.Get(i).([]sdktypes.Coin); ok {
		return v
	}
	return nil
}

// --- Lending aggregator ---

type LendingAggregator struct {
	mock.Mock
}

func (m *LendingAggregator) Address() string {
	return m.Called().String(0)
}

func (m *LendingAggregator) QuoteBorrowAcrossVenues(ctx context.Context, plan types.ConversionPlan) ([]types.VenueQuote, error) {
	args := m.Called(ctx, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.VenueQuote), args.Error(1)
}

func (m *LendingAggregator) Borrow(ctx context.Context, venueID, collateralAsset, borrowAsset string, collateralAmount, borrowAmount sdkmath.Int) (sdkmath.Int, error) {
	args := m.Called(ctx, venueID, collateralAsset, borrowAsset, collateralAmount, borrowAmount)
	return intArg(args, 0), args.Error(1)
}

func (m *LendingAggregator) Repay(ctx context.Context, collateralAsset, borrowAsset string, amount sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	args := m.Called(ctx, collateralAsset, borrowAsset, amount)
	return intArg(args, 0), intArg(args, 1), args.Error(2)
}

func (m *LendingAggregator) QuoteRepay(ctx context.Context, collateralAsset, borrowAsset string, amount sdkmath.Int) (sdkmath.Int, error) {
	args := m.Called(ctx, collateralAsset, borrowAsset, amount)
	return intArg(args, 0), args.Error(1)
}

func (m *LendingAggregator) DebtStatus(ctx context.Context, collateralAsset, borrowAsset string) (types.DebtStatus, error) {
	args := m.Called(ctx, collateralAsset, borrowAsset)
	if args.Get(0) == nil {
		return types.DebtStatus{TotalDebt: sdkmath.ZeroInt(), TotalCollateral: sdkmath.ZeroInt()}, args.Error(1)
	}
	return args.Get(0).(types.DebtStatus), args.Error(1)
}

func (m *LendingAggregator) ClaimRewards(ctx context.Context) ([]sdktypes.Coin, error) {
	args := m.Called(ctx)
	return coinsArg(args, 0), args.Error(1)
}

// --- Swap service ---

type SwapService struct {
	mock.Mock
}

func (m *SwapService) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn sdkmath.Int) (sdkmath.Int, error) {
	args := m.Called(ctx, tokenIn, tokenOut, amountIn)
	return intArg(args, 0), args.Error(1)
}

func (m *SwapService) Liquidate(ctx context.Context, tokenIn, tokenOut string, amountIn sdkmath.Int, maxSlippage int64) (sdkmath.Int, error) {
	args := m.Called(ctx, tokenIn, tokenOut, amountIn, maxSlippage)
	return intArg(args, 0), args.Error(1)
}

// --- Price oracle ---

type PriceOracle struct {
	mock.Mock
}

func (m *PriceOracle) Price(ctx context.Context, token string) (types.TokenPrice, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return types.TokenPrice{}, args.Error(1)
	}
	return args.Get(0).(types.TokenPrice), args.Error(1)
}

// --- Pool depositor ---

type PoolDepositor struct {
	mock.Mock
}

func (m *PoolDepositor) Enter(ctx context.Context, amounts []sdkmath.Int) (sdkmath.Int, error) {
	args := m.Called(ctx, amounts)
	return intArg(args, 0), args.Error(1)
}

func (m *PoolDepositor) Exit(ctx context.Context, liquidity sdkmath.Int) ([]sdkmath.Int, error) {
	args := m.Called(ctx, liquidity)
	return intsArg(args, 0), args.Error(1)
}

func (m *PoolDepositor) QuoteExit(ctx context.Context, liquidity sdkmath.Int) ([]sdkmath.Int, error) {
	args := m.Called(ctx, liquidity)
	return intsArg(args, 0), args.Error(1)
}

func (m *PoolDepositor) CurrentLiquidity(ctx context.Context) (sdkmath.Int, error) {
	args := m.Called(ctx)
	return intArg(args, 0), args.Error(1)
}

func (m *PoolDepositor) PoolWeights(ctx context.Context) ([]sdkmath.Int, error) {
	args := m.Called(ctx)
	return intsArg(args, 0), args.Error(1)
}

func (m *PoolDepositor) ClaimRewards(ctx context.Context) ([]sdktypes.Coin, error) {
	args := m.Called(ctx)
	return coinsArg(args, 0), args.Error(1)
}

// --- Splitter ---

type Splitter struct {
	mock.Mock
}

func (m *Splitter) Address() string {
	return m.Called().String(0)
}

func (m *Splitter) ReportEarnedLost(ctx context.Context, earned, lost sdkmath.Int) error {
	return m.Called(ctx, earned, lost).Error(0)
}

// --- Wallet ---

type Wallet struct {
	mock.Mock
}

func (m *Wallet) BalanceOf(ctx context.Context, token string) (sdkmath.Int, error) {
	args := m.Called(ctx, token)
	return intArg(args, 0), args.Error(1)
}

func (m *Wallet) Transfer(ctx context.Context, token, to string, amount sdkmath.Int) error {
	return m.Called(ctx, token, to, amount).Error(0)
}

// Amount returns a matcher for sdkmath.Int arguments compared by value.
func Amount(v int64) interface{} {
	want := sdkmath.NewInt(v)
	return mock.MatchedBy(func(got sdkmath.Int) bool { return !got.IsNil() && got.Equal(want) })
}
