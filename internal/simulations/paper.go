package simulations

import (
	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
)

const (
	PAPER_DECIMALS        = 6
	PAPER_RESERVE_UNITS   = 1_000_000 // whole tokens per reserve
	PAPER_VENUE_CAPACITY  = 5_000_000 // whole tokens of collateral per venue
	PAPER_REWARD_TOKEN    = "paperreward"
	PAPER_REWARD_PER_TICK = 25 // whole reward tokens queued per tick
)

// PaperAddresses are the identities used by a paper run.
type PaperAddresses struct {
	Strategy   string
	Aggregator string
	Splitter   string
}

// NewPaperChain builds a chain where every basket token is worth one unit of account, each
// non-base token has a cheap and an expensive lending venue, and the pool is seeded by an
// external LP.
func NewPaperChain(basket types.TokenBasket, addrs PaperAddresses) (*Chain, error) {
	unit := utils.Pow10(PAPER_DECIMALS)
	one := types.TokenPrice{Price18: utils.One18(), Decimals: PAPER_DECIMALS}

	prices := map[string]types.TokenPrice{PAPER_REWARD_TOKEN: {Price18: utils.One18().QuoRaw(2), Decimals: PAPER_DECIMALS}}
	reserves := make([]sdkmath.Int, basket.Len())
	var venues []Venue
	for i, t := range basket.Tokens {
		prices[t] = one
		reserves[i] = unit.MulRaw(PAPER_RESERVE_UNITS)
		if i == basket.BaseIndex {
			continue
		}
		venues = append(venues,
			Venue{ID: t + "-alpha", Asset: t, Capacity: unit.MulRaw(PAPER_VENUE_CAPACITY), LTV: 75_000, Apr18: utils.Pow10(16).MulRaw(3)},
			Venue{ID: t + "-beta", Asset: t, Capacity: unit.MulRaw(PAPER_VENUE_CAPACITY), LTV: 80_000, Apr18: utils.Pow10(16).MulRaw(5)},
		)
	}

	return NewChain(ChainConfig{
		Basket:            basket,
		StrategyAddress:   addrs.Strategy,
		AggregatorAddress: addrs.Aggregator,
		SplitterAddress:   addrs.Splitter,
		Prices:            prices,
		InitialReserves:   reserves,
		Venues:            venues,
	})
}

// Tick advances a paper run: pool fees accrue on the base reserve and rewards are queued.
func (c *Chain) Tick() {
	unit := utils.Pow10(PAPER_DECIMALS)
	c.AccruePoolYield(c.basket.BaseIndex, unit.MulRaw(10))
	c.AddPoolRewards(sdktypes.Coin{Denom: PAPER_REWARD_TOKEN, Amount: unit.MulRaw(PAPER_REWARD_PER_TICK)})
}
