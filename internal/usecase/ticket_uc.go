package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
	"earlykickoff-backend/internal/infra/logging"
	"earlykickoff-backend/internal/infra/metrics"
)

// Compile-time check
var _ TicketUseCase = (*ticketUC)(nil)

type TicketUseCase interface {
	// IssueBatch creates intent.Quantity tickets for a settled payment, or
	// returns the batch that already exists for it.
	IssueBatch(ctx context.Context, p *model.Payment, intent model.EventTicketIntent) ([]*model.Ticket, error)
	// ReissueQR renders and attaches the QR of one ticket.
	ReissueQR(ctx context.Context, uid string) error
}

type ticketUC struct {
	tickets     repository.TicketRepository
	payments    repository.PaymentRepository
	users       repository.UserRepository
	catalog     repository.CatalogRepository
	tasks       repository.FulfillmentTaskRepository
	tm          repository.TransactionManager
	qr          QRService
	verifyBase  string
	maxAttempts int
	log         *zerolog.Logger
}

func NewTicketUseCase(
	tickets repository.TicketRepository,
	payments repository.PaymentRepository,
	users repository.UserRepository,
	catalog repository.CatalogRepository,
	tasks repository.FulfillmentTaskRepository,
	tm repository.TransactionManager,
	qr QRService,
	verifyBase string,
	maxAttempts int,
	logger *zerolog.Logger,
) *ticketUC {
	l := logger.With().Str("component", "TicketUC").Logger()
	return &ticketUC{
		tickets:     tickets,
		payments:    payments,
		users:       users,
		catalog:     catalog,
		tasks:       tasks,
		tm:          tm,
		qr:          qr,
		verifyBase:  verifyBase,
		maxAttempts: maxAttempts,
		log:         &l,
	}
}

func (u *ticketUC) IssueBatch(ctx context.Context, p *model.Payment, intent model.EventTicketIntent) ([]*model.Ticket, error) {
	defer logging.TraceDuration(u.log, "TicketUC.IssueBatch")()
	log := logging.With(ctx, u.log)

	// legacy rows may lack user_id; resolveBuyer falls back to the payment
	if intent.EventID <= 0 || intent.Quantity <= 0 {
		return nil, fmt.Errorf("%w: ticket intent", domain.ErrInvalidArgument)
	}
	if existing, err := u.tickets.ListByPayment(ctx, repository.NoTX, p.ID); err != nil {
		return nil, err
	} else if len(existing) > 0 {
		if _, err := u.attachMissingQR(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	buyer, err := u.resolveBuyer(ctx, p, intent)
	if err != nil {
		return nil, err
	}
	event, err := u.catalog.FindEvent(ctx, repository.NoTX, intent.EventID)
	if err != nil {
		return nil, fmt.Errorf("find event %d: %w", intent.EventID, err)
	}

	batch := make([]*model.Ticket, 0, intent.Quantity)
	pid := p.ID
	for i := 0; i < intent.Quantity; i++ {
		t := &model.Ticket{
			TicketUID:   uuid.NewString(),
			EventID:     event.ID,
			UserID:      buyer,
			PaymentID:   &pid,
			Price:       event.TicketPrice,
			Status:      model.TicketStatusValid,
			PurchasedAt: p.UpdatedAt,
		}
		if p.PaidAt != nil {
			t.PurchasedAt = *p.PaidAt
		}
		batch = append(batch, t)
	}

	var (
		out     []*model.Ticket
		created bool
	)
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// lock the payment so a concurrent run of the same task waits here
		if _, err := u.payments.FindByID(ctx, tx, p.ID); err != nil {
			return err
		}
		existing, err := u.tickets.ListByPayment(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			out = existing
			return nil
		}
		if err := u.tickets.CreateBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("create tickets: %w", err)
		}
		out, created = batch, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		metrics.AddTicketsIssued(len(out))
	}

	// Images are only rendered for committed rows. A rerun after a crash lands
	// in the existing-batch branch above and picks up whatever is still missing.
	pending, err := u.attachMissingQR(ctx, out)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("event_id", event.ID).Int("count", len(out)).Int("qr_pending", pending).Msg("tickets issued")
	return out, nil
}

// attachMissingQR renders the QR of every ticket that has none. A failed
// render queues a ticket_qr task instead of failing the batch; only a failed
// enqueue is returned, so the caller's task runs again.
func (u *ticketUC) attachMissingQR(ctx context.Context, tickets []*model.Ticket) (int, error) {
	log := logging.With(ctx, u.log)
	pending := 0
	for _, t := range tickets {
		if t.QRObjectPath != nil {
			continue
		}
		err := u.attachQR(ctx, t)
		if err == nil {
			continue
		}
		pending++
		log.Warn().Err(err).Str("ticket_uid", t.TicketUID).Msg("ticket qr failed, queued for retry")
		if _, err := u.tasks.Enqueue(ctx, repository.NoTX, model.TaskTicketQR, t.TicketUID, u.maxAttempts); err != nil {
			return pending, fmt.Errorf("enqueue ticket qr: %w", err)
		}
	}
	return pending, nil
}

func (u *ticketUC) attachQR(ctx context.Context, t *model.Ticket) error {
	issue, err := u.qr.Issue(ctx, ticketQRRequest(u.verifyBase, t.EventID, t.TicketUID))
	if err != nil {
		return err
	}
	if err := u.tickets.AttachQR(ctx, repository.NoTX, t.TicketUID, issue.ObjectPath, issue.FriendlyURL); err != nil {
		return err
	}
	t.QRObjectPath = &issue.ObjectPath
	t.QRCodeURL = &issue.FriendlyURL
	return nil
}

// resolveBuyer maps the intent's auth user onto the internal users row,
// falling back to the user recorded on the payment.
func (u *ticketUC) resolveBuyer(ctx context.Context, p *model.Payment, intent model.EventTicketIntent) (int64, error) {
	if intent.UserID != "" {
		user, err := u.users.FindByAuthID(ctx, repository.NoTX, intent.UserID)
		if err != nil {
			return 0, fmt.Errorf("find buyer: %w", err)
		}
		return user.ID, nil
	}
	if p.UserID != nil {
		return *p.UserID, nil
	}
	return 0, fmt.Errorf("%w: payment %d has no buyer", domain.ErrInvalidArgument, p.ID)
}

func (u *ticketUC) ReissueQR(ctx context.Context, uid string) error {
	defer logging.TraceDuration(u.log, "TicketUC.ReissueQR")()

	t, err := u.tickets.FindByUID(ctx, repository.NoTX, uid)
	if err != nil {
		return err
	}
	return u.attachQR(ctx, t)
}
