//go:build !integration

package usecase_test

import (
	"time"

	"github.com/shopspring/decimal"

	"earlykickoff-backend/internal/usecase"
)

const (
	testPublicBase = "https://shop.test"
	testVerifyBase = "https://shop.test/tickets/verify"
)

// fixture wires the real use cases on top of in-memory ports.
type fixture struct {
	users    *MockUserRepo
	subsRepo *MockSubscriptionRepo
	payments *MockPaymentRepo
	webhooks *MockWebhookEventRepo
	tasks    *MockTaskRepo
	orders   *MockOrderRepo
	tickets  *MockTicketRepo
	catalog  *MockCatalogRepo
	storage  *MockStorage
	encoder  *MockQREncoder
	gateway  *MockPaymentGateway
	tm       *MockTxManager

	qr          usecase.QRService
	subs        usecase.SubscriptionUseCase
	ticketUC    usecase.TicketUseCase
	fulfillment usecase.FulfillmentUseCase
	payment     usecase.PaymentUseCase
}

func newFixture() *fixture {
	f := &fixture{
		users:    NewMockUserRepo(),
		subsRepo: NewMockSubscriptionRepo(),
		payments: NewMockPaymentRepo(),
		webhooks: &MockWebhookEventRepo{},
		tasks:    NewMockTaskRepo(),
		orders:   NewMockOrderRepo(),
		tickets:  NewMockTicketRepo(),
		catalog:  NewMockCatalogRepo(),
		storage:  NewMockStorage(),
		encoder:  &MockQREncoder{},
		gateway:  &MockPaymentGateway{},
		tm:       NewMockTxManager(),
	}
	log := newTestLogger()
	f.qr = usecase.NewQRService(f.encoder, f.storage, testPublicBase, 256, log)
	f.subs = usecase.NewSubscriptionUseCase(f.users, f.subsRepo, f.tm, decimal.NewFromInt(2000), 30, log)
	f.ticketUC = usecase.NewTicketUseCase(f.tickets, f.payments, f.users, f.catalog, f.tasks, f.tm, f.qr, testVerifyBase, 8, log)
	f.fulfillment = usecase.NewFulfillmentUseCase(f.tasks, f.payments, f.orders, f.users, f.ticketUC, f.subs, f.qr,
		usecase.RetryPolicy{MaxAttempts: 3, BaseBackoff: 10 * time.Second, MaxBackoff: time.Minute, StuckAfter: 5 * time.Minute}, log)
	f.payment = usecase.NewPaymentUseCase(f.payments, f.webhooks, f.tasks, f.orders, f.catalog, f.users, f.subs, f.fulfillment,
		f.gateway, f.tm, usecase.PaymentOptions{VIPPrice: decimal.NewFromInt(2000), MaxAttempts: 3, AbandonAfter: 24 * time.Hour}, log)
	return f
}
