package session

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"
)

// ConnectWithBackoff repeats Connect until it succeeds, rounds are exhausted
// or ctx is done. rounds <= 0 means no limit. Delays follow the configured
// BackoffConfig.
func (s *Socket) ConnectWithBackoff(ctx context.Context, url string, rounds int, rng *rand.Rand) error {
	for round := 1; ; round++ {
		if err := s.ConnectContext(ctx, url); err == nil {
			return nil
		} else if err != ErrConnectFailed {
			return err
		}
		if rounds > 0 && round >= rounds {
			return fmt.Errorf("%w after %d rounds", ErrConnectFailed, round)
		}

		delay := NextBackoffDelay(s.core.cfg.Backoff, round, rng)
		log.Warn().Str("url", url).Int("round", round).Dur("delay", delay).Msg("session reconnect scheduled")
		timer := s.core.clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
