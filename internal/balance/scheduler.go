package balance

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
)

// RunPeriodically balances every interval until ctx is cancelled. A
// non-positive interval disables the loop; balancing stays on-demand.
func (b *Balancer) RunPeriodically(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := b.Balance(ctx)
			switch {
			case errors.Is(err, domain.ErrNoAssignable):
				log.Debug().Msg("balance: no users to assign to")
			case err != nil:
				log.Error().Err(err).Msg("balance: periodic run failed")
			case res.Assigned > 0 || len(res.Conflicts) > 0:
				log.Info().Int("assigned", res.Assigned).Int("conflicts", len(res.Conflicts)).Msg("balance: periodic run")
			}
		}
	}
}
