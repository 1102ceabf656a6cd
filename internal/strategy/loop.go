package strategy

import (
	"context"
	"time"
)

// RunLoop calls DoHardWork on behalf of the splitter every interval until ctx is cancelled.
// beforeCycle, when set, runs ahead of each cycle (paper mode advances the simulated chain there).
func (s *Strategy) RunLoop(ctx context.Context, interval time.Duration, beforeCycle func()) {
	s.logger.Info().
		Dur("interval", interval).
		Msg("Starting strategy work loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First cycle runs immediately
	loops := 1
	s.runOnce(ctx, loops, beforeCycle)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Strategy loop stopped due to context cancellation")
			return
		case <-ticker.C:
			loops++
			s.runOnce(ctx, loops, beforeCycle)
		}
	}
}

func (s *Strategy) runOnce(ctx context.Context, loop int, beforeCycle func()) {
	if beforeCycle != nil {
		beforeCycle()
	}
	s.logger.Info().Int("loop", loop).Msg("Initiating work cycle")
	if _, err := s.DoHardWork(ctx, s.splitter.Address()); err != nil {
		s.logger.Error().Err(err).Int("loop", loop).Msg("Work cycle failed")
		return
	}
	s.logger.Info().Int("loop", loop).Msg("Work cycle completed")
}
