package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const TicketStatusValid = "valid"

type Ticket struct {
	ID           int64
	TicketUID    string
	EventID      int64
	UserID       int64
	PaymentID    *int64
	Price        decimal.Decimal
	IsUsed       bool
	Status       string
	QRObjectPath *string
	QRCodeURL    *string
	PurchasedAt  time.Time
}

// TicketQRKey is the storage key convention for ticket QR images.
func TicketQRKey(eventID int64, uid string) string {
	return fmt.Sprintf("tickets/%d/%s.png", eventID, uid)
}

// TicketQRPath is the proxy path that serves a ticket's QR image.
func TicketQRPath(eventID int64, uid string) string {
	return fmt.Sprintf("/images/ticket/%d/%s", eventID, uid)
}

type Event struct {
	ID          int64
	Name        string
	ImageURL    *string
	TicketPrice decimal.Decimal
}

type Product struct {
	ID       int64
	Name     string
	ImageURL *string
}
