package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userColumns = `id, auth_id, COALESCE(email, ''), role, vip_expires_at, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.AuthID, &u.Email, &u.Role, &u.VIPExpiresAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &u, nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanUser(row)
}

func (r *PostgresUserRepo) FindByAuthID(ctx context.Context, tx repository.Tx, authID string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE auth_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, authID)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanUser(row)
}

// SetVIP promotes the user; admins keep their role and only get the expiry.
func (r *PostgresUserRepo) SetVIP(ctx context.Context, tx repository.Tx, id int64, expiresAt time.Time) error {
	const q = `
UPDATE users
   SET role = CASE WHEN role = 'admin' THEN role ELSE 'vip' END,
       vip_expires_at = $2,
       updated_at = NOW()
 WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, expiresAt)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return mapErr(errNoRowsAffected)
	}
	return nil
}

func (r *PostgresUserRepo) ClearExpiredVIP(ctx context.Context, tx repository.Tx, ids []int64, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const q = `
UPDATE users
   SET role='user', updated_at=NOW()
 WHERE id = ANY($1)
   AND role='vip'
   AND (vip_expires_at IS NULL OR vip_expires_at <= $2);`
	cmd, err := execSQL(ctx, r.pool, tx, q, ids, now)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(cmd.RowsAffected()), nil
}
