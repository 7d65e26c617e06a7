package repository

import (
	"context"
	"time"

	"earlykickoff-backend/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	// FindLatestPending returns the newest pending row for the user (FOR UPDATE inside a tx).
	FindLatestPending(ctx context.Context, tx Tx, userID int64) (*model.Subscription, error)
	FindByLastPayment(ctx context.Context, tx Tx, paymentID int64) (*model.Subscription, error)
	FindCurrent(ctx context.Context, tx Tx, userID int64) (*model.Subscription, error)
	// ExpireEnded marks active rows whose end_date passed as expired and
	// returns the affected user ids.
	ExpireEnded(ctx context.Context, tx Tx, now time.Time) ([]int64, error)
}
