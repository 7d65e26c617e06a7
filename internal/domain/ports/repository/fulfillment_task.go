package repository

import (
	"context"
	"time"

	"earlykickoff-backend/internal/domain/model"
)

type FulfillmentTaskRepository interface {
	// Enqueue inserts a queued task, or requeues an existing (kind, subject)
	// row that is done or dead. A queued/running row is left as is.
	Enqueue(ctx context.Context, tx Tx, kind model.TaskKind, subjectID string, maxAttempts int) (*model.FulfillmentTask, error)
	// ClaimDue moves up to limit due tasks to running, including running tasks
	// whose lease is older than stuckBefore.
	ClaimDue(ctx context.Context, tx Tx, now, stuckBefore time.Time, limit int) ([]*model.FulfillmentTask, error)
	// ClaimByID claims one specific queued task; ErrTaskNotClaimable otherwise.
	ClaimByID(ctx context.Context, tx Tx, id int64) (*model.FulfillmentTask, error)
	MarkDone(ctx context.Context, tx Tx, id int64) error
	// MarkFailed records the error and either reschedules at nextRunAt or buries the task.
	MarkFailed(ctx context.Context, tx Tx, id int64, errMsg string, nextRunAt time.Time, dead bool) error
	Requeue(ctx context.Context, tx Tx, id int64) (*model.FulfillmentTask, error)
	List(ctx context.Context, tx Tx, status model.TaskStatus, limit int) ([]*model.FulfillmentTask, error)
}
