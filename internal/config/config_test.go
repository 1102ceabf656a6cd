package config

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("STRATEGY_ID", "usdc-leveraged")
	t.Setenv("BASKET_TOKENS", "dai, usdc ,usdt")
	t.Setenv("BASKET_BASE_INDEX", "1")
	t.Setenv("SPLITTER_ADDRESS", "splitter")
	t.Setenv("AGGREGATOR_ADDRESS", "aggregator")
	t.Setenv("OPERATOR_ADDRESS", "operator")
	t.Setenv("GOVERNANCE_ADDRESS", "governance")
	t.Setenv("FORWARDER_ADDRESS", "forwarder")
	t.Setenv("INSURANCE_ADDRESS", "insurance")
	t.Setenv("PERFORMANCE_RECEIVER", "receiver")
}

func TestLoadConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CYCLE_INTERVAL", "30s")
	t.Setenv("STRATEGY_MODE", "paper")

	require.NoError(t, LoadConfig())
	assert.Equal(t, "usdc-leveraged", StrategyID)
	assert.Equal(t, []string{"dai", "usdc", "usdt"}, Basket.Tokens)
	assert.Equal(t, "usdc", Basket.Base())
	assert.Equal(t, 30*time.Second, CycleInterval)
	assert.Equal(t, DEFAULT_WEB_PORT, WebPort)
	assert.Equal(t, MODE_PAPER, Mode)
	assert.Equal(t, "aggregator", AggregatorAddress)
	assert.Equal(t, "receiver", PerformanceReceiver)
}

func TestLoadConfigMissingRole(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INSURANCE_ADDRESS", "")

	err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSURANCE_ADDRESS")
}

func TestLoadConfigBadBaseIndex(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BASKET_BASE_INDEX", "3")

	assert.ErrorIs(t, LoadConfig(), types.ErrInvalidBasket)
}

func TestLoadConfigBadInterval(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CYCLE_INTERVAL", "-1m")

	assert.Error(t, LoadConfig())
}

func TestDefaultStrategyParametersAreValid(t *testing.T) {
	PerformanceReceiver = "receiver"
	p := DefaultStrategyParameters()
	require.NoError(t, p.Validate())
	assert.Equal(t, int64(1_000), p.SafetyGap)

	basket, err := types.NewTokenBasket([]string{"dai", "usdc"}, 1)
	require.NoError(t, err)
	SeedThresholds(&p, basket, sdkmath.NewInt(10))
	assert.Equal(t, "10", p.Thresholds.For("dai").String())
	assert.Equal(t, "100000", p.Thresholds.For("weth").String())
}
