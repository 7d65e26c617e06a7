package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Order, error) {
	q := `SELECT id, user_id, status, metadata, qr_image_url, qr_code, created_at, updated_at FROM orders WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, mapErr(err)
	}

	o := &model.Order{}
	var meta []byte
	if err := row.Scan(&o.ID, &o.UserID, &o.Status, &meta, &o.QRImageURL, &o.QRCode, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	o.Metadata = decodeMap(meta)
	return o, nil
}

func (r *orderRepo) MarkPaid(ctx context.Context, tx repository.Tx, id int64) (bool, error) {
	const q = `UPDATE orders SET status='paid', updated_at=NOW() WHERE id=$1 AND status IN ('pending','failed');`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *orderRepo) AttachQR(ctx context.Context, tx repository.Tx, id int64, objectPath, friendlyURL string) error {
	const q = `
UPDATE orders
   SET metadata = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object('qr_object_path', $2::text),
       qr_code = $2,
       qr_image_url = $3,
       updated_at = NOW()
 WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, objectPath, friendlyURL)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return mapErr(errNoRowsAffected)
	}
	return nil
}
