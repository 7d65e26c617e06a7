package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

func (r *webhookEventRepo) Save(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	const q = `
INSERT INTO webhook_events (id, provider, checkout_request_id, payment_id, result_code, outcome, payload, received_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.Provider, e.CheckoutRequestID, e.PaymentID, e.ResultCode,
		string(e.Outcome), jsonArg(e.Payload), e.ReceivedAt)
	return mapErr(err)
}
