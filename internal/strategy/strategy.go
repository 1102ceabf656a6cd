/*

The strategy is the work-cycle orchestrator of one leveraged yield position.

It owns base asset deposited by the upstream splitter, borrows the other pool tokens against
it through the lending aggregator and provides liquidity to the pool. Every external entry
point checks the caller's role, takes the busy guard and runs inside a journal transaction, so
a failed call leaves no side effect behind.

*/

package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/external"
	"github.com/elys-network/yieldcore/internal/liquidator"
	"github.com/elys-network/yieldcore/internal/logger"
	"github.com/elys-network/yieldcore/internal/metrics"
	"github.com/elys-network/yieldcore/internal/opener"
	"github.com/elys-network/yieldcore/internal/planner"
	"github.com/elys-network/yieldcore/internal/recycler"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/rs/zerolog"
)

var (
	ErrUnauthorized     = errors.New("caller does not hold the required role")
	ErrReentrantCall    = errors.New("strategy is busy with another operation")
	ErrUnsupportedAsset = errors.New("asset is not supported by the strategy")
	ErrInvalidConfig    = errors.New("strategy configuration is invalid")
)

// Rejection reasons exported through metrics.
const (
	REJECT_UNAUTHORIZED      = "unauthorized"
	REJECT_REENTRANT         = "reentrant"
	REJECT_UNSUPPORTED_ASSET = "unsupported_asset"
)

// Store persists what the strategy must remember across restarts. Implemented by
// state.PostgresStore.
type Store interface {
	LoadValuationSnapshot() (*types.ValuationSnapshot, error)
	SaveValuationSnapshot(snapshot types.ValuationSnapshot) error
	SaveParameters(params types.StrategyParameters, changedBy string) error
	NextCycleNumber() (int, error)
	SaveCycleReport(report types.CycleReport) (int64, error)
	SavePaybackReceipt(receipt types.PaybackReceipt) error
}

// Roles are the addresses allowed to mutate parameters and the addresses that receive funds.
// The splitter and aggregator roles are the addresses of the collaborators themselves.
type Roles struct {
	Operator   string
	Governance string
	Forwarder  string
	Insurance  string
}

// Config holds the configuration for creating a new Strategy instance
type Config struct {
	StrategyID string
	Basket     types.TokenBasket
	Parameters types.StrategyParameters
	Roles      Roles

	Aggregator external.LendingAggregator
	Depositor  external.PoolDepositor
	Swap       external.SwapService
	Oracle     external.PriceOracle
	Splitter   external.Splitter
	Wallet     external.Wallet

	// Optional
	Journal external.Journal
	Store   Store
	Metrics *metrics.StrategyMetrics
}

type Strategy struct {
	logger zerolog.Logger

	id     string
	basket types.TokenBasket
	roles  Roles

	aggregator external.LendingAggregator
	depositor  external.PoolDepositor
	splitter   external.Splitter
	wallet     external.Wallet
	journal    external.Journal
	store      Store
	metrics    *metrics.StrategyMetrics

	opener   *opener.Opener
	planner  *planner.Planner
	recycler *recycler.Recycler

	busy atomic.Bool

	mu          sync.RWMutex
	params      types.StrategyParameters
	snapshot    types.ValuationSnapshot
	cycleNumber int

	now func() time.Time
}

// NewStrategy creates a strategy and restores its last valuation snapshot from the store.
func NewStrategy(cfg Config) (*Strategy, error) {
	if err := validateStrategyConfig(cfg); err != nil {
		return nil, fmt.Errorf("strategy configuration validation failed: %w", err)
	}

	liq := liquidator.New(cfg.Swap, cfg.Oracle)
	s := &Strategy{
		logger:     logger.GetForComponent("strategy_core").With().Str("strategy_id", cfg.StrategyID).Logger(),
		id:         cfg.StrategyID,
		basket:     cfg.Basket,
		roles:      cfg.Roles,
		aggregator: cfg.Aggregator,
		depositor:  cfg.Depositor,
		splitter:   cfg.Splitter,
		wallet:     cfg.Wallet,
		journal:    cfg.Journal,
		store:      cfg.Store,
		metrics:    cfg.Metrics,
		opener:     opener.New(cfg.Aggregator),
		planner:    planner.New(cfg.Aggregator, cfg.Wallet, cfg.Oracle, cfg.Depositor, liq),
		recycler:   recycler.New(liq),
		params:     cfg.Parameters.Clone(),
		snapshot:   types.ValuationSnapshot{StrategyID: cfg.StrategyID, InvestedAssets: sdkmath.ZeroInt()},
		now:        time.Now,
	}

	if s.store != nil {
		snap, err := s.store.LoadValuationSnapshot()
		if err != nil {
			return nil, fmt.Errorf("failed to load valuation snapshot: %w", err)
		}
		if snap != nil {
			s.snapshot = *snap
		}
	}

	s.logger.Info().
		Strs("basket", s.basket.Tokens).
		Str("base", s.basket.Base()).
		Str("investedAssets", s.snapshot.InvestedAssets.String()).
		Msg("Strategy instance created")
	return s, nil
}

// validateStrategyConfig validates the Strategy configuration
func validateStrategyConfig(cfg Config) error {
	if cfg.StrategyID == "" {
		return errors.Join(ErrInvalidConfig, errors.New("strategy id cannot be empty"))
	}
	if err := cfg.Basket.Validate(); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	if err := cfg.Parameters.Validate(); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	if cfg.Aggregator == nil || cfg.Depositor == nil || cfg.Swap == nil || cfg.Oracle == nil || cfg.Splitter == nil || cfg.Wallet == nil {
		return errors.Join(ErrInvalidConfig, errors.New("every collaborator must be set"))
	}
	if cfg.Roles.Operator == "" || cfg.Roles.Governance == "" {
		return errors.Join(ErrInvalidConfig, errors.New("operator and governance roles are required"))
	}
	if cfg.Roles.Forwarder == "" || cfg.Roles.Insurance == "" {
		return errors.Join(ErrInvalidConfig, errors.New("forwarder and insurance addresses are required"))
	}
	return nil
}

// Parameters returns a copy of the current parameters.
func (s *Strategy) Parameters() types.StrategyParameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.Clone()
}

// Snapshot returns the last recorded valuation.
func (s *Strategy) Snapshot() types.ValuationSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Strategy) Basket() types.TokenBasket { return s.basket }

func (s *Strategy) ID() string { return s.id }

// Busy reports whether an entry point is running.
func (s *Strategy) Busy() bool { return s.busy.Load() }

func (s *Strategy) authorize(caller, required, role string) error {
	if caller == "" || caller != required {
		s.metrics.CallRejected(REJECT_UNAUTHORIZED)
		s.logger.Warn().Str("caller", caller).Str("role", role).Msg("Rejected call from unauthorized caller")
		return errors.Join(ErrUnauthorized, fmt.Errorf("%s role required, caller %q", role, caller))
	}
	return nil
}

// exclusive runs fn while holding the busy guard. A second entry point called meanwhile is
// rejected instead of waiting.
func (s *Strategy) exclusive(op string, fn func() error) error {
	if !s.busy.CompareAndSwap(false, true) {
		s.metrics.CallRejected(REJECT_REENTRANT)
		return errors.Join(ErrReentrantCall, fmt.Errorf("%s rejected while another operation runs", op))
	}
	defer s.busy.Store(false)
	return fn()
}

// atomically runs fn inside a journal transaction and rolls every collaborator side effect
// back when fn fails or panics.
func (s *Strategy) atomically(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.journal == nil {
		return fn(ctx)
	}
	tx, err := s.journal.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin %s: %w", op, err)
	}
	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error().Err(rbErr).Str("op", op).Msg("Rollback after panic failed")
			}
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error().Err(rbErr).Str("op", op).Msg("Rollback failed")
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", op, err)
	}
	return nil
}

// guarded runs fn under the busy guard inside a journal transaction. fn returns the invested
// assets once its work is done. After the commit the valuation snapshot is recorded while the
// guard is still held, and the snapshot is returned for persistValuation.
func (s *Strategy) guarded(ctx context.Context, op string, fn func(ctx context.Context) (sdkmath.Int, error)) (types.ValuationSnapshot, error) {
	var snap types.ValuationSnapshot
	err := s.exclusive(op, func() error {
		var invested sdkmath.Int
		err := s.atomically(ctx, op, func(ctx context.Context) error {
			var err error
			invested, err = fn(ctx)
			return err
		})
		if err != nil {
			return err
		}
		snap = s.recordValuation(invested)
		return nil
	})
	return snap, err
}

// recordValuation swaps in a new in-memory snapshot.
func (s *Strategy) recordValuation(invested sdkmath.Int) types.ValuationSnapshot {
	snap := types.ValuationSnapshot{
		StrategyID:     s.id,
		InvestedAssets: invested,
		UpdatedAt:      s.now().UTC(),
	}
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	s.metrics.SetInvestedAssets(invested)
	return snap
}

func (s *Strategy) persistValuation(snap types.ValuationSnapshot) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveValuationSnapshot(snap); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist valuation snapshot")
	}
}

func (s *Strategy) currentParams() types.StrategyParameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.Clone()
}
