package model

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"earlykickoff-backend/internal/domain"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // STK push sent, awaiting callback
	PaymentStatusSuccess PaymentStatus = "success" // gateway reported ResultCode 0
	PaymentStatusFailed  PaymentStatus = "failed"  // gateway reported any other code, or abandoned
)

const ProviderMpesa = "mpesa"

// Payment is one attempt to collect money for a purchase intent.
// Status only ever moves from pending to a terminal value.
type Payment struct {
	ID                    int64
	OrderID               *int64 // set only for store-order purchases
	UserID                *int64 // internal user id when known
	Amount                decimal.Decimal
	PhoneNumber           string
	Provider              string
	Status                PaymentStatus
	ProviderTransactionID *string // CheckoutRequestID, replaced by the receipt number on success
	CheckoutRequestID     *string // immutable lookup key for callbacks
	Intent                PurchaseIntent
	RawPayload            json.RawMessage // last gateway envelope, verbatim
	CreatedAt             time.Time
	UpdatedAt             time.Time
	PaidAt                *time.Time
}

// NewPendingPayment validates the minimum a payment needs before the STK push.
func NewPendingPayment(intent PurchaseIntent, amount decimal.Decimal, phone string) (*Payment, error) {
	if intent == nil || !amount.IsPositive() || strings.TrimSpace(phone) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	p := &Payment{
		Amount:      amount,
		PhoneNumber: phone,
		Provider:    ProviderMpesa,
		Status:      PaymentStatusPending,
		Intent:      intent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if o, ok := intent.(StoreOrderIntent); ok {
		id := o.OrderID
		p.OrderID = &id
	}
	return p, nil
}

func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusSuccess || p.Status == PaymentStatusFailed
}

// PaymentTransition describes a terminal status write applied atomically by the ledger.
type PaymentTransition struct {
	Status                PaymentStatus
	ProviderTransactionID *string
	RawPayload            json.RawMessage
	PaidAt                *time.Time
	// Intent backfills the tagged intent column when it is still empty, so a
	// legacy row stays decodable after RawPayload replaces its loose keys.
	Intent PurchaseIntent
}

// NormalizeMSISDN turns the local shapes customers type (07XX, 7XX, +2547XX,
// with spaces or dashes) into the 2547XXXXXXXX form the gateway expects.
func NormalizeMSISDN(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", domain.ErrInvalidArgument
		}
	}
	d := b.String()
	switch {
	case strings.HasPrefix(d, "254") && len(d) == 12:
	case strings.HasPrefix(d, "0") && len(d) == 10:
		d = "254" + d[1:]
	case len(d) == 9 && (d[0] == '7' || d[0] == '1'):
		d = "254" + d
	default:
		return "", domain.ErrInvalidArgument
	}
	return d, nil
}
