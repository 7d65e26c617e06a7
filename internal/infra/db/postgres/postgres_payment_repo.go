package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, order_id, user_id, amount, phone_number, provider, status, provider_transaction_id, checkout_request_id, intent, raw_payload, created_at, updated_at, paid_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var intent, raw []byte
	if err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.PhoneNumber, &p.Provider, &p.Status,
		&p.ProviderTransactionID, &p.CheckoutRequestID, &intent, &raw, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt); err != nil {
		return nil, scanErr(err)
	}
	p.RawPayload = raw
	// an unreadable intent is left nil; the dispatcher reports it per task
	if in, err := model.DecodeIntent(p.OrderID, intent, raw); err == nil {
		p.Intent = in
	}
	return p, nil
}

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	intent, err := model.EncodeIntent(p.Intent)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO payments (
  order_id, user_id, amount, phone_number, provider, status, provider_transaction_id, checkout_request_id, intent, raw_payload, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) RETURNING id;`

	row, err := pickRow(ctx, r.pool, tx, q, p.OrderID, p.UserID, p.Amount, p.PhoneNumber, p.Provider, string(p.Status),
		p.ProviderTransactionID, p.CheckoutRequestID, intent, jsonArg(p.RawPayload), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if err := row.Scan(&p.ID); err != nil {
		return mapErr(err)
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, ref string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_transaction_id=$1 OR checkout_request_id=$1 ORDER BY id LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, ref)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanPayment(row)
}

// SetCheckoutRequestID stores the push id in both lookup columns; the
// transaction id is later replaced by the receipt number.
func (r *paymentRepo) SetCheckoutRequestID(ctx context.Context, tx repository.Tx, id int64, checkoutRequestID string) error {
	const q = `UPDATE payments SET checkout_request_id=$2, provider_transaction_id=COALESCE(provider_transaction_id, $2), updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, checkoutRequestID)
	return mapErr(err)
}

func (r *paymentRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, id int64, t model.PaymentTransition) (bool, error) {
	var intent []byte
	if t.Intent != nil {
		b, err := model.EncodeIntent(t.Intent)
		if err != nil {
			return false, err
		}
		intent = b
	}
	const q = `
UPDATE payments
   SET status = $2,
       provider_transaction_id = COALESCE($3, provider_transaction_id),
       raw_payload = COALESCE($4, raw_payload),
       paid_at = COALESCE($5, paid_at),
       intent = COALESCE(intent, $6),
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending'`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(t.Status), t.ProviderTransactionID, jsonArg(t.RawPayload), t.PaidAt, jsonArg(intent))
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err())
}
