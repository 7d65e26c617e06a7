package repository

import (
	"context"
	"time"

	"earlykickoff-backend/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id int64) (*model.User, error)
	FindByAuthID(ctx context.Context, tx Tx, authID string) (*model.User, error)
	SetVIP(ctx context.Context, tx Tx, id int64, expiresAt time.Time) error
	// ClearExpiredVIP demotes the given users if their vip expiry has passed.
	ClearExpiredVIP(ctx context.Context, tx Tx, ids []int64, now time.Time) (int, error)
}
