package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
	"earlykickoff-backend/internal/infra/logging"
	"earlykickoff-backend/internal/infra/metrics"
)

// Compile-time check
var _ FulfillmentUseCase = (*fulfillmentUC)(nil)

// RetryPolicy controls how failed tasks are rescheduled.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// StuckAfter is how long a running task may go silent before another
	// worker may claim it again.
	StuckAfter time.Duration
}

type FulfillmentUseCase interface {
	// Process runs one claimed task and records the outcome on it.
	Process(ctx context.Context, t *model.FulfillmentTask) error
	// RunNow claims a specific queued task and processes it in the caller's goroutine.
	RunNow(ctx context.Context, taskID int64) error
	ClaimDue(ctx context.Context, limit int) ([]*model.FulfillmentTask, error)
	EnqueueOrderQR(ctx context.Context, orderID int64) (*model.FulfillmentTask, error)
	// Retry requeues a finished or dead task and runs it once.
	Retry(ctx context.Context, taskID int64) (*model.FulfillmentTask, error)
	ListTasks(ctx context.Context, status model.TaskStatus, limit int) ([]*model.FulfillmentTask, error)
}

type fulfillmentUC struct {
	tasks    repository.FulfillmentTaskRepository
	payments repository.PaymentRepository
	orders   repository.OrderRepository
	users    repository.UserRepository
	tickets  TicketUseCase
	subs     SubscriptionUseCase
	qr       QRService
	policy   RetryPolicy
	now      func() time.Time
	log      *zerolog.Logger
}

func NewFulfillmentUseCase(
	tasks repository.FulfillmentTaskRepository,
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	users repository.UserRepository,
	tickets TicketUseCase,
	subs SubscriptionUseCase,
	qr QRService,
	policy RetryPolicy,
	logger *zerolog.Logger,
) *fulfillmentUC {
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = 10 * time.Second
	}
	if policy.MaxBackoff < policy.BaseBackoff {
		policy.MaxBackoff = policy.BaseBackoff
	}
	if policy.StuckAfter <= 0 {
		policy.StuckAfter = 5 * time.Minute
	}
	l := logger.With().Str("component", "FulfillmentUC").Logger()
	return &fulfillmentUC{
		tasks:    tasks,
		payments: payments,
		orders:   orders,
		users:    users,
		tickets:  tickets,
		subs:     subs,
		qr:       qr,
		policy:   policy,
		now:      time.Now,
		log:      &l,
	}
}

func (u *fulfillmentUC) Process(ctx context.Context, t *model.FulfillmentTask) error {
	defer logging.TraceDuration(u.log, "FulfillmentUC.Process")()
	log := logging.With(ctx, u.log).With().
		Int64("task_id", t.ID).
		Str("kind", string(t.Kind)).
		Str("subject", t.SubjectID).
		Int("attempt", t.Attempts).
		Logger()

	runErr := u.execute(ctx, t)
	if runErr == nil {
		if err := u.tasks.MarkDone(ctx, repository.NoTX, t.ID); err != nil {
			return fmt.Errorf("mark task done: %w", err)
		}
		metrics.IncFulfillmentTask(string(t.Kind), "done")
		log.Debug().Msg("task done")
		return nil
	}

	dead := t.Exhausted() || isPermanent(runErr)
	next := u.now().Add(u.backoff(t.Attempts))
	if err := u.tasks.MarkFailed(ctx, repository.NoTX, t.ID, runErr.Error(), next, dead); err != nil {
		// the lease expires after StuckAfter and the task is picked up again
		log.Error().Err(err).Msg("record task failure")
	}
	if dead {
		metrics.IncFulfillmentTask(string(t.Kind), "dead")
		log.Error().Err(runErr).Msg("task dead, needs an operator")
	} else {
		metrics.IncFulfillmentTask(string(t.Kind), "retry")
		log.Warn().Err(runErr).Time("next_run_at", next).Msg("task failed, rescheduled")
	}
	return runErr
}

func (u *fulfillmentUC) execute(ctx context.Context, t *model.FulfillmentTask) error {
	switch t.Kind {
	case model.TaskPaymentFulfillment:
		id, err := parseSubjectID(t.SubjectID)
		if err != nil {
			return err
		}
		return u.fulfillPayment(ctx, id)
	case model.TaskOrderQR:
		id, err := parseSubjectID(t.SubjectID)
		if err != nil {
			return err
		}
		return u.issueOrderQR(ctx, id)
	case model.TaskTicketQR:
		return u.tickets.ReissueQR(ctx, t.SubjectID)
	}
	return fmt.Errorf("%w: task kind %q", domain.ErrInvalidArgument, t.Kind)
}

// fulfillPayment grants whatever the payment bought. Every branch is
// idempotent so a retried task never doubles the effect.
func (u *fulfillmentUC) fulfillPayment(ctx context.Context, paymentID int64) error {
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return fmt.Errorf("find payment: %w", err)
	}
	if p.Status != model.PaymentStatusSuccess {
		return fmt.Errorf("%w: payment %d is %s", domain.ErrPaymentNotSettled, p.ID, p.Status)
	}
	ctx = logging.WithPaymentID(ctx, p.ID)

	switch in := p.Intent.(type) {
	case model.EventTicketIntent:
		_, err := u.tickets.IssueBatch(ctx, p, in)
		return err
	case model.VIPPlanIntent:
		authID, err := u.vipOwner(ctx, p, in)
		if err != nil {
			return err
		}
		_, err = u.subs.Activate(ctx, authID, p.ID)
		return err
	case model.StoreOrderIntent:
		return u.fulfillOrder(ctx, in.OrderID)
	}
	return fmt.Errorf("%w: payment %d", domain.ErrUnknownIntent, p.ID)
}

func (u *fulfillmentUC) vipOwner(ctx context.Context, p *model.Payment, in model.VIPPlanIntent) (string, error) {
	if in.UserID != "" {
		return in.UserID, nil
	}
	if p.UserID == nil {
		return "", fmt.Errorf("%w: vip payment %d has no user", domain.ErrUnknownIntent, p.ID)
	}
	user, err := u.users.FindByID(ctx, repository.NoTX, *p.UserID)
	if err != nil {
		return "", fmt.Errorf("find vip owner: %w", err)
	}
	return user.AuthID, nil
}

// fulfillOrder marks the order paid, then tries the QR inline. A QR failure
// becomes its own order_qr task; the order stays paid either way.
func (u *fulfillmentUC) fulfillOrder(ctx context.Context, orderID int64) error {
	log := logging.With(ctx, u.log)

	changed, err := u.orders.MarkPaid(ctx, repository.NoTX, orderID)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if changed {
		log.Info().Int64("order_id", orderID).Msg("order paid")
	}

	if err := u.issueOrderQR(ctx, orderID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		log.Warn().Err(err).Int64("order_id", orderID).Msg("order qr failed, queued for retry")
		if _, qerr := u.tasks.Enqueue(ctx, repository.NoTX, model.TaskOrderQR, strconv.FormatInt(orderID, 10), u.policy.MaxAttempts); qerr != nil {
			return fmt.Errorf("enqueue order qr: %w", qerr)
		}
	}
	return nil
}

func (u *fulfillmentUC) issueOrderQR(ctx context.Context, orderID int64) error {
	o, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return fmt.Errorf("find order: %w", err)
	}
	if o.Status == model.OrderStatusCancelled {
		logging.With(ctx, u.log).Warn().Int64("order_id", o.ID).Msg("payment settled for a cancelled order, no qr issued")
		return nil
	}
	if o.HasCanonicalQR() && o.QRObjectPath() != "" {
		return nil
	}
	issue, err := u.qr.Issue(ctx, orderQRRequest(o.ID, ulid.Make().String()))
	if err != nil {
		return err
	}
	return u.orders.AttachQR(ctx, repository.NoTX, o.ID, issue.ObjectPath, issue.FriendlyURL)
}

func (u *fulfillmentUC) RunNow(ctx context.Context, taskID int64) error {
	t, err := u.tasks.ClaimByID(ctx, repository.NoTX, taskID)
	if err != nil {
		return err
	}
	return u.Process(ctx, t)
}

func (u *fulfillmentUC) ClaimDue(ctx context.Context, limit int) ([]*model.FulfillmentTask, error) {
	now := u.now()
	return u.tasks.ClaimDue(ctx, repository.NoTX, now, now.Add(-u.policy.StuckAfter), limit)
}

func (u *fulfillmentUC) EnqueueOrderQR(ctx context.Context, orderID int64) (*model.FulfillmentTask, error) {
	if orderID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := u.orders.FindByID(ctx, repository.NoTX, orderID); err != nil {
		return nil, err
	}
	return u.tasks.Enqueue(ctx, repository.NoTX, model.TaskOrderQR, strconv.FormatInt(orderID, 10), u.policy.MaxAttempts)
}

func (u *fulfillmentUC) Retry(ctx context.Context, taskID int64) (*model.FulfillmentTask, error) {
	defer logging.TraceDuration(u.log, "FulfillmentUC.Retry")()

	t, err := u.tasks.Requeue(ctx, repository.NoTX, taskID)
	if err != nil {
		return nil, err
	}
	if err := u.RunNow(ctx, t.ID); err != nil && !errors.Is(err, domain.ErrTaskNotClaimable) {
		// still recorded on the task; the worker carries on from here
		logging.With(ctx, u.log).Warn().Err(err).Int64("task_id", t.ID).Msg("retry run failed")
	}
	return t, nil
}

func (u *fulfillmentUC) ListTasks(ctx context.Context, status model.TaskStatus, limit int) ([]*model.FulfillmentTask, error) {
	switch status {
	case "", model.TaskStatusQueued, model.TaskStatusRunning, model.TaskStatusDone, model.TaskStatusDead:
	default:
		return nil, domain.ErrInvalidArgument
	}
	return u.tasks.List(ctx, repository.NoTX, status, limit)
}

// backoff is BaseBackoff doubled per attempt already spent, capped at MaxBackoff.
func (u *fulfillmentUC) backoff(attempts int) time.Duration {
	d := u.policy.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= u.policy.MaxBackoff {
			return u.policy.MaxBackoff
		}
	}
	return d
}

// isPermanent lists failures another attempt cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrUnknownIntent) ||
		errors.Is(err, domain.ErrPaymentNotSettled) ||
		errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, domain.ErrNotFound)
}

func parseSubjectID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: subject %q", domain.ErrInvalidArgument, s)
	}
	return id, nil
}
