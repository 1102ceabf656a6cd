package strategy

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/types"
)

// SetLiquidationThreshold sets the dust floor of token. Operator only.
func (s *Strategy) SetLiquidationThreshold(caller, token string, threshold sdkmath.Int) error {
	if token == "" {
		return errors.Join(types.ErrInvalidParameters, errors.New("token cannot be empty"))
	}
	return s.updateParameters(caller, s.roles.Operator, "operator", "setLiquidationThreshold", func(p *types.StrategyParameters) {
		p.Thresholds[token] = threshold
	})
}

// SetCompoundRatio sets the share of each harvest that is reinvested. Operator only.
func (s *Strategy) SetCompoundRatio(caller string, ratio int64) error {
	return s.updateParameters(caller, s.roles.Operator, "operator", "setCompoundRatio", func(p *types.StrategyParameters) {
		p.Compound.CompoundRatio = ratio
	})
}

// SetReinvestThresholdPercent sets the idle/invested ratio above which doHardWork reinvests.
// Operator only.
func (s *Strategy) SetReinvestThresholdPercent(caller string, percent int64) error {
	return s.updateParameters(caller, s.roles.Operator, "operator", "setReinvestThresholdPercent", func(p *types.StrategyParameters) {
		p.ReinvestThresholdPercent = percent
	})
}

// SetPerformanceConfig replaces the performance fee, its receiver and the insurance split.
// Governance only.
func (s *Strategy) SetPerformanceConfig(caller string, cfg types.PerformanceConfig) error {
	return s.updateParameters(caller, s.roles.Governance, "governance", "setPerformanceConfig", func(p *types.StrategyParameters) {
		p.Performance = cfg
	})
}

// SetExecutionGuards replaces the swap slippage, the oracle tolerance and the safety gap.
// Governance only.
func (s *Strategy) SetExecutionGuards(caller string, slippage, tolerance, safetyGap int64) error {
	return s.updateParameters(caller, s.roles.Governance, "governance", "setExecutionGuards", func(p *types.StrategyParameters) {
		p.LiquidationSlippage = slippage
		p.PriceImpactTolerance = tolerance
		p.SafetyGap = safetyGap
	})
}

// updateParameters applies mutate to a copy of the parameters, validates and persists the
// result, then swaps it in. Nothing changes when any step fails.
func (s *Strategy) updateParameters(caller, required, role, op string, mutate func(p *types.StrategyParameters)) error {
	if err := s.authorize(caller, required, role); err != nil {
		return err
	}
	return s.exclusive(op, func() error {
		next := s.currentParams()
		mutate(&next)
		if err := next.Validate(); err != nil {
			return err
		}
		if s.store != nil {
			if err := s.store.SaveParameters(next, caller); err != nil {
				return fmt.Errorf("failed to persist parameters: %w", err)
			}
		}

		s.mu.Lock()
		s.params = next
		s.mu.Unlock()

		s.logger.Info().Str("op", op).Str("caller", caller).Msg("Strategy parameters updated")
		return nil
	})
}
