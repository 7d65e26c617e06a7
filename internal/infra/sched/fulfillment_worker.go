package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/infra/worker"
	"earlykickoff-backend/internal/usecase"
)

// FulfillmentWorker claims due tasks from the outbox and hands them to the pool.
// Claiming is a row-level CAS, so several replicas can poll the same table.
type FulfillmentWorker struct {
	uc       usecase.FulfillmentUseCase
	pool     *worker.Pool
	interval time.Duration
	batch    int
	log      *zerolog.Logger
}

func NewFulfillmentWorker(uc usecase.FulfillmentUseCase, pool *worker.Pool, interval time.Duration, batch int, logger *zerolog.Logger) *FulfillmentWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batch <= 0 {
		batch = pool.Size()
	}
	l := logger.With().Str("component", "FulfillmentWorker").Logger()
	return &FulfillmentWorker{uc: uc, pool: pool, interval: interval, batch: batch, log: &l}
}

func (w *FulfillmentWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Int("batch", w.batch).Msg("Starting fulfillment worker")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping fulfillment worker")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick claims one batch and returns how many tasks were handed to the pool.
// A claimed task the pool never accepts is picked up again once it goes stale.
func (w *FulfillmentWorker) Tick(ctx context.Context) int {
	tasks, err := w.uc.ClaimDue(ctx, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("claim due tasks")
		return 0
	}
	submitted := 0
	for _, task := range tasks {
		task := task
		err := w.pool.SubmitWait(ctx, func(ctx context.Context) error {
			return w.process(ctx, task)
		})
		if err != nil {
			w.log.Warn().Err(err).Int64("task_id", task.ID).Msg("task not submitted")
			break
		}
		submitted++
	}
	return submitted
}

func (w *FulfillmentWorker) process(ctx context.Context, task *model.FulfillmentTask) error {
	err := w.uc.Process(ctx, task)
	if err != nil {
		w.log.Warn().Err(err).
			Int64("task_id", task.ID).
			Str("kind", string(task.Kind)).
			Int("attempts", task.Attempts).
			Msg("fulfillment task failed")
	}
	return err
}
