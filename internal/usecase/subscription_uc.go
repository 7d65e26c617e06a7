package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
	"earlykickoff-backend/internal/infra/logging"
	"earlykickoff-backend/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// VIPStatus is the read-time view of a user's membership.
type VIPStatus struct {
	IsVIP     bool       `json:"is_vip"`
	Role      model.Role `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type SubscriptionUseCase interface {
	// CreatePending records the intent to buy VIP before the STK push.
	CreatePending(ctx context.Context, authUserID string) (*model.Subscription, error)
	// Activate grants VIP for one interval. Repeating it for the same
	// payment returns the already active row.
	Activate(ctx context.Context, authUserID string, paymentID int64) (*model.Subscription, error)
	IsVIP(ctx context.Context, authUserID string) (VIPStatus, error)
	// FinishExpired tidies rows whose end_date passed; IsVIP does not depend on it.
	FinishExpired(ctx context.Context) (int, error)
}

type subscriptionUC struct {
	users        repository.UserRepository
	subs         repository.SubscriptionRepository
	tm           repository.TransactionManager
	price        decimal.Decimal
	intervalDays int
	now          func() time.Time
	log          *zerolog.Logger
}

func NewSubscriptionUseCase(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	tm repository.TransactionManager,
	price decimal.Decimal,
	intervalDays int,
	logger *zerolog.Logger,
) *subscriptionUC {
	if intervalDays <= 0 {
		intervalDays = model.DefaultIntervalDays
	}
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{
		users:        users,
		subs:         subs,
		tm:           tm,
		price:        price,
		intervalDays: intervalDays,
		now:          time.Now,
		log:          &l,
	}
}

func (u *subscriptionUC) CreatePending(ctx context.Context, authUserID string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.CreatePending")()

	user, err := u.users.FindByAuthID(ctx, repository.NoTX, authUserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	s, err := model.NewPendingSubscription(user.ID, u.price, u.intervalDays)
	if err != nil {
		return nil, err
	}
	if err := u.subs.Save(ctx, repository.NoTX, s); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	return s, nil
}

func (u *subscriptionUC) Activate(ctx context.Context, authUserID string, paymentID int64) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.Activate")()

	if authUserID == "" || paymentID <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	var (
		out       *model.Subscription
		activated bool
		created   bool
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		user, err := u.users.FindByAuthID(ctx, tx, authUserID)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		existing, err := u.subs.FindByLastPayment(ctx, tx, paymentID)
		switch {
		case err == nil:
			out = existing
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		s, err := u.subs.FindLatestPending(ctx, tx, user.ID)
		if errors.Is(err, domain.ErrNotFound) {
			// the pending row was never created; activate a fresh one
			s, err = model.NewPendingSubscription(user.ID, u.price, u.intervalDays)
			created = true
		}
		if err != nil {
			return err
		}

		s.Activate(u.now(), paymentID)
		if err := u.subs.Save(ctx, tx, s); err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
		if err := u.users.SetVIP(ctx, tx, user.ID, *s.EndDate); err != nil {
			return fmt.Errorf("set vip: %w", err)
		}
		out, activated = s, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !activated {
		return out, nil
	}

	metrics.IncSubscriptionsActivated()
	logging.With(ctx, u.log).Info().
		Int64("subscription_id", out.ID).
		Bool("fallback_insert", created).
		Time("end_date", *out.EndDate).
		Msg("vip activated")
	return out, nil
}

func (u *subscriptionUC) IsVIP(ctx context.Context, authUserID string) (VIPStatus, error) {
	user, err := u.users.FindByAuthID(ctx, repository.NoTX, authUserID)
	if err != nil {
		return VIPStatus{}, err
	}
	return VIPStatus{
		IsVIP:     user.IsVIP(u.now()),
		Role:      user.Role,
		ExpiresAt: user.VIPExpiresAt,
	}, nil
}

func (u *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.FinishExpired")()

	now := u.now()
	var demoted int
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ids, err := u.subs.ExpireEnded(ctx, tx, now)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		metrics.IncSubscriptionsExpired(len(ids))
		demoted, err = u.users.ClearExpiredVIP(ctx, tx, ids, now)
		return err
	})
	return demoted, err
}
