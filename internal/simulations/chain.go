/*

Package simulations runs every collaborator of the strategy in memory.

A Chain holds token balances per address, the debt positions of the strategy across lending
venues, a proportional liquidity pool and oracle/market prices. Views returned by Lending(),
Pool(), Swap(), Oracle(), Wallet(), Splitter() and Journal() implement the external
interfaces on top of the same state, so a paper run and an integration test exercise the exact
accounting a live deployment would see.

*/

package simulations

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/elys-network/yieldcore/internal/logger"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/elys-network/yieldcore/internal/utils"
	"github.com/rs/zerolog"
)

const (
	POOL_ADDRESS     = "sim-pool"
	LENDING_ADDRESS  = "sim-lending"
	EXTERNAL_LP      = "sim-external-lp"
	DEFAULT_SWAP_FEE = 300 // 0.3% in DENOMINATOR units
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds for operation")
	ErrUnknownVenue      = errors.New("unknown lending venue")
	ErrUnknownToken      = errors.New("token has no price")
	ErrInvalidPoolState  = errors.New("pool state is invalid for operation")
	ErrInjected          = errors.New("injected failure")
	ErrSlippageExceeded  = errors.New("swap output below the slippage limit")
)

// Venue is one simulated lending market for a single borrow asset.
type Venue struct {
	ID       string
	Asset    string      // borrow asset
	Capacity sdkmath.Int // remaining collateral it accepts
	LTV      int64       // borrow value per collateral value, DENOMINATOR units
	Apr18    sdkmath.Int
}

// Position is the aggregated debt of one (collateral, borrow) pair.
type Position struct {
	Debt       sdkmath.Int
	Collateral sdkmath.Int
}

// EarnedLostReport is one report received by the simulated splitter.
type EarnedLostReport struct {
	Earned sdkmath.Int
	Lost   sdkmath.Int
}

// ledger is everything a journal rollback restores.
type ledger struct {
	balances        map[string]map[string]sdkmath.Int
	positions       map[string]Position
	venues          []Venue
	reserves        []sdkmath.Int
	liquidity       map[string]sdkmath.Int // holder -> pool liquidity
	totalLiquidity  sdkmath.Int
	pendingPool     []sdktypes.Coin
	pendingLending  []sdktypes.Coin
	earnedLostTrail []EarnedLostReport
}

func (l *ledger) clone() *ledger {
	out := &ledger{
		balances:        make(map[string]map[string]sdkmath.Int, len(l.balances)),
		positions:       make(map[string]Position, len(l.positions)),
		venues:          append([]Venue(nil), l.venues...),
		reserves:        append([]sdkmath.Int(nil), l.reserves...),
		liquidity:       make(map[string]sdkmath.Int, len(l.liquidity)),
		totalLiquidity:  l.totalLiquidity,
		pendingPool:     append([]sdktypes.Coin(nil), l.pendingPool...),
		pendingLending:  append([]sdktypes.Coin(nil), l.pendingLending...),
		earnedLostTrail: append([]EarnedLostReport(nil), l.earnedLostTrail...),
	}
	for holder, tokens := range l.balances {
		inner := make(map[string]sdkmath.Int, len(tokens))
		for t, v := range tokens {
			inner[t] = v
		}
		out.balances[holder] = inner
	}
	for k, v := range l.positions {
		out.positions[k] = v
	}
	for k, v := range l.liquidity {
		out.liquidity[k] = v
	}
	return out
}

// ChainConfig seeds a simulated chain.
type ChainConfig struct {
	Basket            types.TokenBasket
	StrategyAddress   string
	AggregatorAddress string
	SplitterAddress   string
	Prices            map[string]types.TokenPrice
	// InitialReserves seeds the pool with liquidity owned by EXTERNAL_LP, basket order.
	InitialReserves []sdkmath.Int
	Venues          []Venue
	SwapFee         int64
}

// Chain is the simulated environment. All methods are safe for concurrent use.
type Chain struct {
	mu             sync.Mutex
	logger         zerolog.Logger
	swapLogger     zerolog.Logger
	joinPoolLogger zerolog.Logger
	exitPoolLogger zerolog.Logger

	basket     types.TokenBasket
	strategy   string
	aggregator string
	splitter   string
	swapFee    int64

	prices   map[string]types.TokenPrice
	skew     map[string]int64 // market price deviation from the oracle per token, DENOMINATOR units
	drift    map[string]int64 // execution shortfall against the quote per output token, DENOMINATOR units
	failures map[string]error

	state *ledger
}

func NewChain(cfg ChainConfig) (*Chain, error) {
	if err := cfg.Basket.Validate(); err != nil {
		return nil, err
	}
	if cfg.StrategyAddress == "" || cfg.AggregatorAddress == "" || cfg.SplitterAddress == "" {
		return nil, errors.New("strategy, aggregator and splitter addresses are required")
	}
	for _, t := range cfg.Basket.Tokens {
		if _, ok := cfg.Prices[t]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownToken, t)
		}
	}
	if cfg.InitialReserves != nil && len(cfg.InitialReserves) != cfg.Basket.Len() {
		return nil, fmt.Errorf("%w: %d reserves for %d tokens", ErrInvalidPoolState, len(cfg.InitialReserves), cfg.Basket.Len())
	}
	fee := cfg.SwapFee
	if fee == 0 {
		fee = DEFAULT_SWAP_FEE
	}

	c := &Chain{
		logger:         logger.GetForComponent("sim_chain"),
		swapLogger:     logger.GetForComponent("swap_simulator"),
		joinPoolLogger: logger.GetForComponent("join_pool_simulator"),
		exitPoolLogger: logger.GetForComponent("exit_pool_simulator"),
		basket:         cfg.Basket,
		strategy:       cfg.StrategyAddress,
		aggregator:     cfg.AggregatorAddress,
		splitter:       cfg.SplitterAddress,
		swapFee:        fee,
		prices:         make(map[string]types.TokenPrice, len(cfg.Prices)),
		skew:           make(map[string]int64),
		drift:          make(map[string]int64),
		failures:       make(map[string]error),
		state:          &ledger{
			balances:       make(map[string]map[string]sdkmath.Int),
			positions:      make(map[string]Position),
			venues:         append([]Venue(nil), cfg.Venues...),
			reserves:       make([]sdkmath.Int, cfg.Basket.Len()),
			liquidity:      make(map[string]sdkmath.Int),
			totalLiquidity: sdkmath.ZeroInt(),
		},
	}
	for k, v := range cfg.Prices {
		c.prices[k] = v
	}
	for i := range c.state.reserves {
		c.state.reserves[i] = sdkmath.ZeroInt()
	}
	if cfg.InitialReserves != nil {
		value := sdkmath.ZeroInt()
		for i, r := range cfg.InitialReserves {
			c.state.reserves[i] = r
			v, err := c.valueInBase(c.basket.Tokens[i], r)
			if err != nil {
				return nil, err
			}
			value = value.Add(v)
		}
		c.state.totalLiquidity = value
		c.state.liquidity[EXTERNAL_LP] = value
	}

	c.logger.Info().
		Strs("basket", cfg.Basket.Tokens).
		Int("venues", len(cfg.Venues)).
		Msg("Simulated chain created")
	return c, nil
}

// --- Admin controls used by tests and paper mode ---

// Mint credits amount of token to holder.
func (c *Chain) Mint(holder, token string, amount sdkmath.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credit(holder, token, amount)
}

// BalanceOf returns the balance of any holder.
func (c *Chain) BalanceOf(holder, token string) sdkmath.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance(holder, token)
}

// SetPrice updates the oracle price of a token.
func (c *Chain) SetPrice(token string, price types.TokenPrice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[token] = price
}

// SetMarketSkew makes swaps of token execute at oracle*(DENOMINATOR+skew)/DENOMINATOR.
func (c *Chain) SetMarketSkew(token string, skew int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skew[token] = skew
}

// SetExecutionDrift makes swaps into token deliver quote*(DENOMINATOR-drift)/DENOMINATOR, as if
// the market moved between quote and execution. Quotes are unaffected.
func (c *Chain) SetExecutionDrift(token string, drift int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drift[token] = drift
}

// FailOn makes the next call of op ("report", "enter", "exit", "swap", "borrow", "repay") return err.
func (c *Chain) FailOn(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = err
}

// AddPoolRewards queues rewards paid on the next pool claim.
func (c *Chain) AddPoolRewards(coins ...sdktypes.Coin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.pendingPool = append(c.state.pendingPool, coins...)
}

// AddLendingRewards queues rewards paid on the next lending claim.
func (c *Chain) AddLendingRewards(coins ...sdktypes.Coin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.pendingLending = append(c.state.pendingLending, coins...)
}

// AccruePoolYield adds amount of the token at index to the pool reserves without minting liquidity.
func (c *Chain) AccruePoolYield(index int, amount sdkmath.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.reserves[index] = c.state.reserves[index].Add(amount)
}

// AccrueInterest grows the debt of a pair by ratio (DENOMINATOR units).
func (c *Chain) AccrueInterest(collateralAsset, borrowAsset string, ratio int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := pairKey(collateralAsset, borrowAsset)
	pos, ok := c.state.positions[key]
	if !ok {
		return
	}
	pos.Debt = pos.Debt.Add(utils.MulRatio(pos.Debt, ratio))
	c.state.positions[key] = pos
}

// Position returns the aggregated debt of a pair.
func (c *Chain) Position(collateralAsset, borrowAsset string) Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position(collateralAsset, borrowAsset)
}

// Reports returns every earned/lost report the splitter received.
func (c *Chain) Reports() []EarnedLostReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]EarnedLostReport(nil), c.state.earnedLostTrail...)
}

// Liquidity returns the pool liquidity held by holder.
func (c *Chain) Liquidity(holder string) sdkmath.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liquidityOf(holder)
}

// --- internal helpers, caller holds mu ---

func (c *Chain) balance(holder, token string) sdkmath.Int {
	if v, ok := c.state.balances[holder][token]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func (c *Chain) credit(holder, token string, amount sdkmath.Int) {
	if amount.IsNil() || amount.IsZero() {
		return
	}
	inner, ok := c.state.balances[holder]
	if !ok {
		inner = make(map[string]sdkmath.Int)
		c.state.balances[holder] = inner
	}
	inner[token] = c.balance(holder, token).Add(amount)
}

func (c *Chain) debit(holder, token string, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsZero() {
		return nil
	}
	bal := c.balance(holder, token)
	if bal.LT(amount) {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientFunds, holder, bal, token, amount)
	}
	c.state.balances[holder][token] = bal.Sub(amount)
	return nil
}

func (c *Chain) takeFailure(op string) error {
	if err, ok := c.failures[op]; ok {
		delete(c.failures, op)
		return errors.Join(ErrInjected, err)
	}
	return nil
}

func (c *Chain) liquidityOf(holder string) sdkmath.Int {
	if v, ok := c.state.liquidity[holder]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func (c *Chain) position(collateralAsset, borrowAsset string) Position {
	if p, ok := c.state.positions[pairKey(collateralAsset, borrowAsset)]; ok {
		return p
	}
	return Position{Debt: sdkmath.ZeroInt(), Collateral: sdkmath.ZeroInt()}
}

func pairKey(collateralAsset, borrowAsset string) string {
	return collateralAsset + "/" + borrowAsset
}
