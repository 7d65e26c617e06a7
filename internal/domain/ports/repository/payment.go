package repository

import (
	"context"
	"time"

	"earlykickoff-backend/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	// Create inserts a pending payment and sets p.ID.
	Create(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Payment, error)
	// FindByProviderRef matches either provider_transaction_id or the
	// original checkout_request_id, so redeliveries after the receipt swap still hit.
	FindByProviderRef(ctx context.Context, tx Tx, ref string) (*model.Payment, error)
	SetCheckoutRequestID(ctx context.Context, tx Tx, id int64, checkoutRequestID string) error
	// TransitionIfPending writes a terminal status only while the row is still
	// pending and reports whether this call won.
	TransitionIfPending(ctx context.Context, tx Tx, id int64, t model.PaymentTransition) (bool, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}

// -----------------------------
// Webhook audit log
// -----------------------------

type WebhookEventRepository interface {
	Save(ctx context.Context, tx Tx, e *model.WebhookEvent) error
}
