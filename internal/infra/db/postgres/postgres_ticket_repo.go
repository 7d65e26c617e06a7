package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
)

var _ repository.TicketRepository = (*ticketRepo)(nil)

type ticketRepo struct{ pool *pgxpool.Pool }

func NewTicketRepo(pool *pgxpool.Pool) *ticketRepo {
	return &ticketRepo{pool: pool}
}

const ticketColumns = `id, ticket_uid, event_id, user_id, payment_id, price, is_used, status, qr_object_path, qr_code_url, purchased_at`

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	t := &model.Ticket{}
	if err := row.Scan(&t.ID, &t.TicketUID, &t.EventID, &t.UserID, &t.PaymentID, &t.Price, &t.IsUsed, &t.Status,
		&t.QRObjectPath, &t.QRCodeURL, &t.PurchasedAt); err != nil {
		return nil, scanErr(err)
	}
	return t, nil
}

// CreateBatch writes the whole batch in a single INSERT so it lands
// all-or-nothing even without a surrounding transaction.
func (r *ticketRepo) CreateBatch(ctx context.Context, tx repository.Tx, tickets []*model.Ticket) error {
	if len(tickets) == 0 {
		return domain.ErrInvalidArgument
	}
	const cols = 10
	var sb strings.Builder
	sb.WriteString(`INSERT INTO tickets (ticket_uid, event_id, user_id, payment_id, price, is_used, status, qr_object_path, qr_code_url, purchased_at) VALUES `)
	args := make([]interface{}, 0, len(tickets)*cols)
	for i, t := range tickets {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i * cols
		sb.WriteString("(")
		for c := 1; c <= cols; c++ {
			if c > 1 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "$%d", base+c)
		}
		sb.WriteString(")")
		args = append(args, t.TicketUID, t.EventID, t.UserID, t.PaymentID, t.Price, t.IsUsed, t.Status, t.QRObjectPath, t.QRCodeURL, t.PurchasedAt)
	}
	sb.WriteString(" RETURNING id, ticket_uid;")

	rows, err := queryRows(ctx, r.pool, tx, sb.String(), args...)
	if err != nil {
		return mapErr(err)
	}
	defer rows.Close()

	byUID := make(map[string]*model.Ticket, len(tickets))
	for _, t := range tickets {
		byUID[t.TicketUID] = t
	}
	for rows.Next() {
		var id int64
		var uid string
		if err := rows.Scan(&id, &uid); err != nil {
			return scanErr(err)
		}
		if t, ok := byUID[uid]; ok {
			t.ID = id
		}
	}
	return mapErr(rows.Err())
}

func (r *ticketRepo) FindByUID(ctx context.Context, tx repository.Tx, uid string) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_uid=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, uid)
	if err != nil {
		return nil, mapErr(err)
	}
	return scanTicket(row)
}

func (r *ticketRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID int64) ([]*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE payment_id=$1 ORDER BY id;`
	rows, err := queryRows(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, mapErr(rows.Err())
}

func (r *ticketRepo) AttachQR(ctx context.Context, tx repository.Tx, uid, objectPath, friendlyURL string) error {
	const q = `UPDATE tickets SET qr_object_path=$2, qr_code_url=$3 WHERE ticket_uid=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, uid, objectPath, friendlyURL)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return mapErr(errNoRowsAffected)
	}
	return nil
}
