package repository

import (
	"context"

	"earlykickoff-backend/internal/domain/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Order, error)
	// MarkPaid moves a pending or failed order to paid and reports whether the
	// row changed. Cancelled orders are left alone.
	MarkPaid(ctx context.Context, tx Tx, id int64) (bool, error)
	// AttachQR merges qr_object_path into metadata, stores the object path in
	// qr_code and the proxy URL in qr_image_url.
	AttachQR(ctx context.Context, tx Tx, id int64, objectPath, friendlyURL string) error
}
