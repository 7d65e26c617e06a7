package repository

import (
	"context"

	"earlykickoff-backend/internal/domain/model"
)

// CatalogRepository serves the read-only catalog rows the payment and image
// flows need (ticket price, image_url).
type CatalogRepository interface {
	FindEvent(ctx context.Context, tx Tx, id int64) (*model.Event, error)
	FindProduct(ctx context.Context, tx Tx, id int64) (*model.Product, error)
}
