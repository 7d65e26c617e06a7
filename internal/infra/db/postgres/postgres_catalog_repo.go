package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
)

var _ repository.CatalogRepository = (*catalogRepo)(nil)

type catalogRepo struct{ pool *pgxpool.Pool }

func NewCatalogRepo(pool *pgxpool.Pool) *catalogRepo {
	return &catalogRepo{pool: pool}
}

func (r *catalogRepo) FindEvent(ctx context.Context, tx repository.Tx, id int64) (*model.Event, error) {
	const q = `SELECT id, name, image_url, ticket_price FROM events WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, mapErr(err)
	}
	e := &model.Event{}
	if err := row.Scan(&e.ID, &e.Name, &e.ImageURL, &e.TicketPrice); err != nil {
		return nil, scanErr(err)
	}
	return e, nil
}

func (r *catalogRepo) FindProduct(ctx context.Context, tx repository.Tx, id int64) (*model.Product, error) {
	const q = `SELECT id, name, image_url FROM products WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, mapErr(err)
	}
	p := &model.Product{}
	if err := row.Scan(&p.ID, &p.Name, &p.ImageURL); err != nil {
		return nil, scanErr(err)
	}
	return p, nil
}
