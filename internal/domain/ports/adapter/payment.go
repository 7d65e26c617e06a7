package adapter

import (
	"context"

	"github.com/shopspring/decimal"
)

// STKPushRequest asks the gateway to prompt the customer's phone for payment.
type STKPushRequest struct {
	Amount           decimal.Decimal
	PhoneNumber      string // normalised 2547XXXXXXXX
	AccountReference string
	Description      string
}

// STKPushResult carries the ids the gateway will echo back in its callback.
type STKPushResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	CustomerMessage   string
}

// STKQueryResult is the gateway's view of an earlier push.
// Final is false while the customer has not answered yet.
type STKQueryResult struct {
	Final      bool
	ResultCode int
	ResultDesc string
}

// PaymentGateway is the hex port for the mobile-money provider.
type PaymentGateway interface {
	Name() string
	// Simulated gateways settle immediately; the caller applies the result itself.
	Simulated() bool
	InitiateSTKPush(ctx context.Context, req STKPushRequest) (STKPushResult, error)
	QuerySTKPush(ctx context.Context, checkoutRequestID string) (STKQueryResult, error)
}
