package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"earlykickoff-backend/internal/usecase"
)

// ExpiryWorker demotes VIP memberships whose end date has passed. IsVIP
// already ignores lapsed rows, so a missed sweep only leaves stale roles.
type ExpiryWorker struct {
	subUC usecase.SubscriptionUseCase
	every time.Duration
	log   *zerolog.Logger
}

func NewExpiryWorker(every time.Duration, subUC usecase.SubscriptionUseCase, logger *zerolog.Logger) *ExpiryWorker {
	if every <= 0 {
		every = time.Hour
	}
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{subUC: subUC, every: every, log: &l}
}

// Run sweeps once on start and then on every tick until ctx ends.
func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("every", w.every).Msg("Starting expiry worker")
	w.Tick(ctx)

	t := time.NewTicker(w.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

func (w *ExpiryWorker) Tick(ctx context.Context) int {
	n, err := w.subUC.FinishExpired(ctx)
	switch {
	case err != nil:
		w.log.Error().Err(err).Msg("finish expired memberships")
	case n > 0:
		w.log.Info().Int("demoted", n).Msg("expired memberships demoted")
	}
	return n
}
