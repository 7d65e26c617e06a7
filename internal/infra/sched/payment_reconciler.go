package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
	"earlykickoff-backend/internal/infra/redis"
	"earlykickoff-backend/internal/usecase"
)

const reconcilerLockKey = "lock:payment_reconciler"

// PendingLister is the slice of the payment ledger the reconciler reads.
type PendingLister interface {
	ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}

// PaymentReconciler periodically asks the gateway about payments still pending
// after staleAfter. This covers callbacks that never arrived or failed mid-way.
// With a locker, only one replica sweeps per interval.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	payments   PendingLister
	locker     redis.Locker
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(
	uc usecase.PaymentUseCase,
	payments PendingLister,
	locker redis.Locker,
	interval, staleAfter time.Duration,
	batch int,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		uc:         uc,
		payments:   payments,
		locker:     locker,
		interval:   interval,
		staleAfter: staleAfter,
		batch:      batch,
		log:        &l,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one sweep and returns how many payments reached a final state.
func (w *PaymentReconciler) Tick(ctx context.Context) int {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, reconcilerLockKey, w.interval)
		if err != nil {
			if !errors.Is(err, domain.ErrLockNotAcquired) {
				w.log.Warn().Err(err).Msg("reconciler lock")
			}
			return 0
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), reconcilerLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("reconciler unlock")
			}
		}()
	}

	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending payments")
		return 0
	}

	settled := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		err := w.uc.Reconcile(ctx, p)
		switch {
		case err == nil:
			settled++
		case errors.Is(err, domain.ErrGatewayPending):
			w.log.Debug().Int64("payment_id", p.ID).Msg("still pending at gateway")
		default:
			w.log.Warn().Err(err).Int64("payment_id", p.ID).Msg("reconcile failed")
		}
	}
	if len(pending) > 0 {
		w.log.Info().Int("scanned", len(pending)).Int("settled", settled).Msg("reconciler sweep")
	}
	return settled
}
