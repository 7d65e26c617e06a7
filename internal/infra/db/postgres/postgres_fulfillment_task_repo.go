package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
)

var _ repository.FulfillmentTaskRepository = (*fulfillmentTaskRepo)(nil)

type fulfillmentTaskRepo struct{ pool *pgxpool.Pool }

func NewFulfillmentTaskRepo(pool *pgxpool.Pool) *fulfillmentTaskRepo {
	return &fulfillmentTaskRepo{pool: pool}
}

const taskColumns = `id, kind, subject_id, status, attempts, max_attempts, next_run_at, last_error, created_at, updated_at`

func scanTask(row pgx.Row) (*model.FulfillmentTask, error) {
	t := &model.FulfillmentTask{}
	if err := row.Scan(&t.ID, &t.Kind, &t.SubjectID, &t.Status, &t.Attempts, &t.MaxAttempts, &t.NextRunAt,
		&t.LastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return t, nil
}

func collectTasks(rows pgx.Rows) ([]*model.FulfillmentTask, error) {
	defer rows.Close()
	var out []*model.FulfillmentTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, mapErr(rows.Err())
}

func (r *fulfillmentTaskRepo) Enqueue(ctx context.Context, tx repository.Tx, kind model.TaskKind, subjectID string, maxAttempts int) (*model.FulfillmentTask, error) {
	if subjectID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	const q = `
INSERT INTO fulfillment_tasks (kind, subject_id, status, attempts, max_attempts, next_run_at)
VALUES ($1, $2, 'queued', 0, $3, NOW())
ON CONFLICT (kind, subject_id) DO UPDATE
   SET status = 'queued',
       attempts = 0,
       max_attempts = EXCLUDED.max_attempts,
       next_run_at = NOW(),
       last_error = NULL,
       updated_at = NOW()
 WHERE fulfillment_tasks.status IN ('done','dead')
RETURNING ` + taskColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q, string(kind), subjectID, maxAttempts)
	if err != nil {
		return nil, mapErr(err)
	}
	t, err := scanTask(row)
	if errors.Is(err, domain.ErrNotFound) {
		// conflict with a live task: nothing to change, hand back the existing row
		const sel = `SELECT ` + taskColumns + ` FROM fulfillment_tasks WHERE kind=$1 AND subject_id=$2;`
		row, err := pickRow(ctx, r.pool, tx, sel, string(kind), subjectID)
		if err != nil {
			return nil, mapErr(err)
		}
		return scanTask(row)
	}
	return t, err
}

func (r *fulfillmentTaskRepo) ClaimDue(ctx context.Context, tx repository.Tx, now, stuckBefore time.Time, limit int) ([]*model.FulfillmentTask, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
UPDATE fulfillment_tasks t
   SET status = 'running',
       attempts = t.attempts + 1,
       updated_at = $1
 WHERE t.id IN (
       SELECT id FROM fulfillment_tasks
        WHERE (status = 'queued' AND next_run_at <= $1)
           OR (status = 'running' AND updated_at < $2)
        ORDER BY next_run_at ASC
        LIMIT $3
        FOR UPDATE SKIP LOCKED)
RETURNING ` + taskColumns + `;`

	rows, err := queryRows(ctx, r.pool, tx, q, now, stuckBefore, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectTasks(rows)
}

func (r *fulfillmentTaskRepo) ClaimByID(ctx context.Context, tx repository.Tx, id int64) (*model.FulfillmentTask, error) {
	const q = `
UPDATE fulfillment_tasks
   SET status = 'running', attempts = attempts + 1, updated_at = NOW()
 WHERE id = $1 AND status = 'queued'
RETURNING ` + taskColumns + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, mapErr(err)
	}
	t, err := scanTask(row)
	if errors.Is(err, domain.ErrNotFound) {
		if _, ferr := r.findByID(ctx, tx, id); ferr != nil {
			return nil, ferr
		}
		return nil, domain.ErrTaskNotClaimable
	}
	return t, err
}

func (r *fulfillmentTaskRepo) MarkDone(ctx context.Context, tx repository.Tx, id int64) error {
	const q = `UPDATE fulfillment_tasks SET status='done', last_error=NULL, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return mapErr(errNoRowsAffected)
	}
	return nil
}

func (r *fulfillmentTaskRepo) MarkFailed(ctx context.Context, tx repository.Tx, id int64, errMsg string, nextRunAt time.Time, dead bool) error {
	const q = `
UPDATE fulfillment_tasks
   SET status = CASE WHEN $4 THEN 'dead' ELSE 'queued' END,
       last_error = $2,
       next_run_at = $3,
       updated_at = NOW()
 WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, errMsg, nextRunAt, dead)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return mapErr(errNoRowsAffected)
	}
	return nil
}

// Requeue resets a finished or buried task for another round. Running tasks
// are left to their current worker.
func (r *fulfillmentTaskRepo) Requeue(ctx context.Context, tx repository.Tx, id int64) (*model.FulfillmentTask, error) {
	const q = `
UPDATE fulfillment_tasks
   SET status = 'queued', attempts = 0, next_run_at = NOW(), last_error = NULL, updated_at = NOW()
 WHERE id = $1 AND status <> 'running'
RETURNING ` + taskColumns + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, mapErr(err)
	}
	t, err := scanTask(row)
	if errors.Is(err, domain.ErrNotFound) {
		if _, ferr := r.findByID(ctx, tx, id); ferr != nil {
			return nil, ferr
		}
		return nil, domain.ErrTaskNotClaimable
	}
	return t, err
}

func (r *fulfillmentTaskRepo) List(ctx context.Context, tx repository.Tx, status model.TaskStatus, limit int) ([]*model.FulfillmentTask, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		const q = `SELECT ` + taskColumns + ` FROM fulfillment_tasks ORDER BY updated_at DESC LIMIT $1;`
		rows, err = queryRows(ctx, r.pool, tx, q, limit)
	} else {
		const q = `SELECT ` + taskColumns + ` FROM fulfillment_tasks WHERE status=$1 ORDER BY updated_at DESC LIMIT $2;`
		rows, err = queryRows(ctx, r.pool, tx, q, string(status), limit)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return collectTasks(rows)
}

func (r *fulfillmentTaskRepo) findByID(ctx context.Context, tx repository.Tx, id int64) (*model.FulfillmentTask, error) {
	const q = `SELECT ` + taskColumns + ` FROM fulfillment_tasks WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanTask(row)
}
