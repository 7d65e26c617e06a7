package repository

import (
	"context"

	"earlykickoff-backend/internal/domain/model"
)

type TicketRepository interface {
	// CreateBatch inserts all tickets or none; IDs are filled in on success.
	CreateBatch(ctx context.Context, tx Tx, tickets []*model.Ticket) error
	FindByUID(ctx context.Context, tx Tx, uid string) (*model.Ticket, error)
	ListByPayment(ctx context.Context, tx Tx, paymentID int64) ([]*model.Ticket, error)
	AttachQR(ctx context.Context, tx Tx, uid, objectPath, friendlyURL string) error
}
