package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, plan, price, interval_days, status, start_date, end_date, last_payment_id, auto_renew, created_at, updated_at`

func scanSub(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	if err := row.Scan(&s.ID, &s.UserID, &s.Plan, &s.Price, &s.IntervalDays, &s.Status, &s.StartDate, &s.EndDate,
		&s.LastPaymentID, &s.AutoRenew, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return s, nil
}

// Save inserts when s.ID is zero and updates the row otherwise.
func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if s.ID == 0 {
		const q = `
INSERT INTO subscriptions (
  user_id, plan, price, interval_days, status, start_date, end_date, last_payment_id, auto_renew, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id;`
		row, err := pickRow(ctx, r.pool, tx, q, s.UserID, s.Plan, s.Price, s.IntervalDays, string(s.Status),
			s.StartDate, s.EndDate, s.LastPaymentID, s.AutoRenew, s.CreatedAt, s.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}
		return mapErr(row.Scan(&s.ID))
	}

	const q = `
UPDATE subscriptions
   SET plan=$2, price=$3, interval_days=$4, status=$5, start_date=$6, end_date=$7,
       last_payment_id=$8, auto_renew=$9, updated_at=$10
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, s.ID, s.Plan, s.Price, s.IntervalDays, string(s.Status),
		s.StartDate, s.EndDate, s.LastPaymentID, s.AutoRenew, s.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return mapErr(errNoRowsAffected)
	}
	return nil
}

func (r *subscriptionRepo) FindLatestPending(ctx context.Context, tx repository.Tx, userID int64) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id=$1 AND status='pending' ORDER BY created_at DESC, id DESC LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) FindByLastPayment(ctx context.Context, tx repository.Tx, paymentID int64) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE last_payment_id=$1;`
	return r.queryOne(ctx, tx, q, paymentID)
}

func (r *subscriptionRepo) FindCurrent(ctx context.Context, tx repository.Tx, userID int64) (*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND status='active'
 ORDER BY end_date DESC NULLS LAST
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) ExpireEnded(ctx context.Context, tx repository.Tx, now time.Time) ([]int64, error) {
	const q = `
UPDATE subscriptions
   SET status='expired', updated_at=$1
 WHERE status='active' AND end_date IS NOT NULL AND end_date <= $1
RETURNING user_id;`
	rows, err := queryRows(ctx, r.pool, tx, q, now)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	seen := map[int64]struct{}{}
	var out []int64
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, scanErr(err)
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out, mapErr(rows.Err())
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanSub(row)
}
