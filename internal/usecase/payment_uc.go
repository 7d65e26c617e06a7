package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/adapter"
	"earlykickoff-backend/internal/domain/ports/repository"
	"earlykickoff-backend/internal/infra/logging"
	"earlykickoff-backend/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// Messages returned to the gateway; it only looks at the 200.
const (
	MsgPaymentIgnored   = "Payment ignored (not found)"
	MsgAlreadyProcessed = "Already processed"
	MsgPaymentProcessed = "Payment processed successfully"
	MsgPaymentFailed    = "Payment marked as failed"
)

type CallbackOutcome struct {
	Outcome   model.WebhookOutcome
	Message   string
	PaymentID int64
}

// InitiateRequest names exactly one purchase: an order, an event or the VIP plan.
type InitiateRequest struct {
	AuthUserID  string
	OrderID     int64
	EventID     int64
	Quantity    int
	Plan        string
	PhoneNumber string
}

type InitiateResult struct {
	PaymentID         int64               `json:"payment_id"`
	Status            model.PaymentStatus `json:"status"`
	CheckoutRequestID string              `json:"checkout_request_id,omitempty"`
	MerchantRequestID string              `json:"merchant_request_id,omitempty"`
	Message           string              `json:"message,omitempty"`
}

// PaymentView is what the checkout page polls.
type PaymentView struct {
	ID        int64               `json:"id"`
	Status    model.PaymentStatus `json:"status"`
	Amount    decimal.Decimal     `json:"amount"`
	Kind      model.IntentKind    `json:"kind,omitempty"`
	OrderID   *int64              `json:"order_id,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	PaidAt    *time.Time          `json:"paid_at,omitempty"`
}

type PaymentUseCase interface {
	// Initiate records a pending payment and sends the STK push to the customer's phone.
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	// HandleCallback applies a gateway result exactly once per payment.
	HandleCallback(ctx context.Context, cb *model.GatewayCallback, raw json.RawMessage) (CallbackOutcome, error)
	// Get returns the payment if it belongs to the caller; anyone else gets ErrNotFound.
	Get(ctx context.Context, authUserID string, id int64) (*PaymentView, error)
	// Reconcile asks the gateway about a payment still pending and applies a
	// final answer, or gives up on it once it is old enough.
	Reconcile(ctx context.Context, p *model.Payment) error
}

type PaymentOptions struct {
	VIPPrice     decimal.Decimal
	MaxAttempts  int
	AbandonAfter time.Duration
	Dev          bool
}

type paymentUC struct {
	payments    repository.PaymentRepository
	webhooks    repository.WebhookEventRepository
	tasks       repository.FulfillmentTaskRepository
	orders      repository.OrderRepository
	catalog     repository.CatalogRepository
	users       repository.UserRepository
	subs        SubscriptionUseCase
	fulfillment FulfillmentUseCase
	gateway     adapter.PaymentGateway
	tm          repository.TransactionManager
	opts        PaymentOptions
	now         func() time.Time
	log         *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	webhooks repository.WebhookEventRepository,
	tasks repository.FulfillmentTaskRepository,
	orders repository.OrderRepository,
	catalog repository.CatalogRepository,
	users repository.UserRepository,
	subs SubscriptionUseCase,
	fulfillment FulfillmentUseCase,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	opts PaymentOptions,
	logger *zerolog.Logger,
) *paymentUC {
	if opts.AbandonAfter <= 0 {
		opts.AbandonAfter = 24 * time.Hour
	}
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		payments:    payments,
		webhooks:    webhooks,
		tasks:       tasks,
		orders:      orders,
		catalog:     catalog,
		users:       users,
		subs:        subs,
		fulfillment: fulfillment,
		gateway:     gateway,
		tm:          tm,
		opts:        opts,
		now:         time.Now,
		log:         &l,
	}
}

func (u *paymentUC) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Initiate")()

	if err := validateInitiate(req); err != nil {
		return nil, err
	}
	phone, err := model.NormalizeMSISDN(req.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: phone number", domain.ErrInvalidArgument)
	}
	buyer, err := u.users.FindByAuthID(ctx, repository.NoTX, req.AuthUserID)
	if err != nil {
		return nil, fmt.Errorf("find buyer: %w", err)
	}

	intent, amount, reference, err := u.price(ctx, req, buyer)
	if err != nil {
		return nil, err
	}

	p, err := model.NewPendingPayment(intent, amount, phone)
	if err != nil {
		return nil, err
	}
	p.UserID = &buyer.ID
	if err := u.payments.Create(ctx, repository.NoTX, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	metrics.IncPayment(string(model.PaymentStatusPending))

	ctx = logging.WithPaymentID(ctx, p.ID)
	log := logging.With(ctx, u.log)

	push, err := u.gateway.InitiateSTKPush(ctx, adapter.STKPushRequest{
		Amount:           amount,
		PhoneNumber:      phone,
		AccountReference: reference,
		Description:      "Payment",
	})
	if err != nil {
		log.Error().Err(err).Str("phone", logging.Redact(phone, u.opts.Dev)).Msg("stk push failed")
		u.markFailed(ctx, p.ID, map[string]any{"error": "stk push failed"})
		return nil, fmt.Errorf("%w: stk push", domain.ErrGateway)
	}
	if err := u.payments.SetCheckoutRequestID(ctx, repository.NoTX, p.ID, push.CheckoutRequestID); err != nil {
		return nil, fmt.Errorf("store checkout request id: %w", err)
	}
	log.Info().
		Str("kind", string(intent.Kind())).
		Str("amount", amount.String()).
		Str("gateway", u.gateway.Name()).
		Msg("payment initiated")

	out := &InitiateResult{
		PaymentID:         p.ID,
		Status:            model.PaymentStatusPending,
		CheckoutRequestID: push.CheckoutRequestID,
		MerchantRequestID: push.MerchantRequestID,
		Message:           push.CustomerMessage,
	}
	if !u.gateway.Simulated() {
		return out, nil
	}

	// no real gateway will call back; settle through the same path a callback takes
	cb := &model.GatewayCallback{
		MerchantRequestID: push.MerchantRequestID,
		CheckoutRequestID: push.CheckoutRequestID,
		ResultCode:        0,
		ResultDesc:        "Simulated Success",
		Items:             map[string]any{"MpesaReceiptNumber": push.CheckoutRequestID},
	}
	res, err := u.HandleCallback(ctx, cb, syntheticEnvelope(cb, "simulation"))
	if err != nil {
		return nil, err
	}
	if res.Outcome == model.WebhookProcessed {
		out.Status = model.PaymentStatusSuccess
	}
	return out, nil
}

func validateInitiate(req InitiateRequest) error {
	if strings.TrimSpace(req.AuthUserID) == "" {
		return domain.ErrUnauthorized
	}
	n := 0
	if req.OrderID > 0 {
		n++
	}
	if req.EventID > 0 {
		n++
	}
	if req.Plan != "" {
		n++
	}
	if n != 1 {
		return fmt.Errorf("%w: exactly one of order_id, event_id or plan is required", domain.ErrInvalidArgument)
	}
	if req.Plan != "" && !strings.EqualFold(req.Plan, model.PlanVIP) {
		return fmt.Errorf("%w: unknown plan %q", domain.ErrInvalidArgument, req.Plan)
	}
	if req.Quantity < 0 || req.Quantity > 50 {
		return fmt.Errorf("%w: quantity", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return fmt.Errorf("%w: phone_number is required", domain.ErrInvalidArgument)
	}
	return nil
}

// price resolves the intent, the amount to charge and the account reference
// shown on the customer's phone.
func (u *paymentUC) price(ctx context.Context, req InitiateRequest, buyer *model.User) (model.PurchaseIntent, decimal.Decimal, string, error) {
	switch {
	case req.OrderID > 0:
		o, err := u.orders.FindByID(ctx, repository.NoTX, req.OrderID)
		if err != nil {
			return nil, decimal.Zero, "", fmt.Errorf("find order: %w", err)
		}
		if o.UserID != nil && *o.UserID != buyer.ID {
			return nil, decimal.Zero, "", fmt.Errorf("find order: %w", domain.ErrNotFound)
		}
		if o.Status != model.OrderStatusPending {
			return nil, decimal.Zero, "", fmt.Errorf("%w: order is %s", domain.ErrInvalidArgument, o.Status)
		}
		total, ok := o.TotalPrice()
		if !ok || !total.IsPositive() {
			return nil, decimal.Zero, "", fmt.Errorf("%w: order has no total", domain.ErrInvalidArgument)
		}
		return model.StoreOrderIntent{OrderID: o.ID}, total, fmt.Sprintf("Order %d", o.ID), nil

	case req.EventID > 0:
		ev, err := u.catalog.FindEvent(ctx, repository.NoTX, req.EventID)
		if err != nil {
			return nil, decimal.Zero, "", fmt.Errorf("find event: %w", err)
		}
		qty := req.Quantity
		if qty <= 0 {
			qty = 1
		}
		intent := model.EventTicketIntent{EventID: ev.ID, Quantity: qty, UserID: buyer.AuthID}
		return intent, ev.TicketPrice.Mul(decimal.NewFromInt(int64(qty))), fmt.Sprintf("Event %d", ev.ID), nil

	default:
		// a missing pending row is covered by Activate's fallback insert
		if _, err := u.subs.CreatePending(ctx, buyer.AuthID); err != nil {
			logging.With(ctx, u.log).Warn().Err(err).Msg("create pending subscription")
		}
		return model.VIPPlanIntent{UserID: buyer.AuthID, Plan: model.PlanVIP}, u.opts.VIPPrice, "VIP Subscription", nil
	}
}

func (u *paymentUC) HandleCallback(ctx context.Context, cb *model.GatewayCallback, raw json.RawMessage) (out CallbackOutcome, err error) {
	defer logging.TraceDuration(u.log, "PaymentUC.HandleCallback")()
	defer func() {
		if err != nil {
			metrics.IncPaymentCallback("error")
			return
		}
		metrics.IncPaymentCallback(string(out.Outcome))
	}()

	if cb == nil || cb.CheckoutRequestID == "" {
		return CallbackOutcome{}, model.ErrMissingCallback
	}
	log := logging.With(ctx, u.log).With().Str("checkout_request_id", cb.CheckoutRequestID).Logger()

	p, err := u.payments.FindByProviderRef(ctx, repository.NoTX, cb.CheckoutRequestID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Msg("callback for unknown payment")
		return CallbackOutcome{Outcome: model.WebhookIgnored, Message: MsgPaymentIgnored}, nil
	}
	if err != nil {
		return CallbackOutcome{}, fmt.Errorf("find payment: %w", err)
	}
	already := CallbackOutcome{Outcome: model.WebhookAlreadyProcessed, Message: MsgAlreadyProcessed, PaymentID: p.ID}
	if p.IsTerminal() {
		return already, nil
	}

	now := u.now()
	tr := model.PaymentTransition{Status: model.PaymentStatusFailed, RawPayload: raw, Intent: p.Intent}
	out = CallbackOutcome{Outcome: model.WebhookMarkedFailed, Message: MsgPaymentFailed, PaymentID: p.ID}
	if cb.Succeeded() {
		tr.Status = model.PaymentStatusSuccess
		tr.PaidAt = &now
		if receipt := cb.ReceiptNumber(); receipt != "" {
			tr.ProviderTransactionID = &receipt
		}
		out = CallbackOutcome{Outcome: model.WebhookProcessed, Message: MsgPaymentProcessed, PaymentID: p.ID}
	}

	var (
		won    bool
		taskID int64
	)
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		won, err = u.payments.TransitionIfPending(ctx, tx, p.ID, tr)
		if err != nil || !won {
			return err
		}
		pid := p.ID
		ev := &model.WebhookEvent{
			ID:                ulid.Make().String(),
			Provider:          model.ProviderMpesa,
			CheckoutRequestID: cb.CheckoutRequestID,
			PaymentID:         &pid,
			ResultCode:        cb.ResultCode,
			Outcome:           out.Outcome,
			Payload:           raw,
			ReceivedAt:        now,
		}
		if err := u.webhooks.Save(ctx, tx, ev); err != nil {
			return fmt.Errorf("save webhook event: %w", err)
		}
		if tr.Status != model.PaymentStatusSuccess {
			return nil
		}
		t, err := u.tasks.Enqueue(ctx, tx, model.TaskPaymentFulfillment, strconv.FormatInt(p.ID, 10), u.opts.MaxAttempts)
		if err != nil {
			return fmt.Errorf("enqueue fulfillment: %w", err)
		}
		taskID = t.ID
		return nil
	})
	if err != nil {
		return CallbackOutcome{}, err
	}
	if !won {
		// a concurrent delivery got there first
		return already, nil
	}

	metrics.IncPayment(string(tr.Status))
	log.Info().Int64("payment_id", p.ID).Int("result_code", cb.ResultCode).Str("outcome", string(out.Outcome)).Msg("payment settled")
	if tr.Status != model.PaymentStatusSuccess {
		return out, nil
	}
	metrics.AddPaymentRevenue(intentKind(p.Intent), p.Amount)

	// first attempt inline; whatever fails stays queued for the worker
	if err := u.fulfillment.RunNow(logging.WithPaymentID(ctx, p.ID), taskID); err != nil {
		log.Warn().Err(err).Int64("task_id", taskID).Msg("inline fulfillment did not complete")
	}
	return out, nil
}

func (u *paymentUC) Get(ctx context.Context, authUserID string, id int64) (*PaymentView, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	user, err := u.users.FindByAuthID(ctx, repository.NoTX, authUserID)
	if err != nil {
		return nil, err
	}
	if p.UserID == nil || *p.UserID != user.ID {
		return nil, domain.ErrNotFound
	}
	v := &PaymentView{
		ID:        p.ID,
		Status:    p.Status,
		Amount:    p.Amount,
		OrderID:   p.OrderID,
		CreatedAt: p.CreatedAt,
		PaidAt:    p.PaidAt,
	}
	if p.Intent != nil {
		v.Kind = p.Intent.Kind()
	}
	return v, nil
}

func (u *paymentUC) Reconcile(ctx context.Context, p *model.Payment) error {
	defer logging.TraceDuration(u.log, "PaymentUC.Reconcile")()

	if p.IsTerminal() {
		return nil
	}
	ctx = logging.WithPaymentID(ctx, p.ID)

	var queryErr error
	if p.CheckoutRequestID != nil && *p.CheckoutRequestID != "" {
		res, err := u.gateway.QuerySTKPush(ctx, *p.CheckoutRequestID)
		if err == nil && res.Final {
			cb := &model.GatewayCallback{
				CheckoutRequestID: *p.CheckoutRequestID,
				ResultCode:        res.ResultCode,
				ResultDesc:        res.ResultDesc,
			}
			_, err := u.HandleCallback(ctx, cb, syntheticEnvelope(cb, "stk_query"))
			return err
		}
		queryErr = err
	}

	if u.now().Sub(p.CreatedAt) < u.opts.AbandonAfter {
		if queryErr != nil {
			return queryErr
		}
		return domain.ErrGatewayPending
	}

	won := u.markFailed(ctx, p.ID, map[string]any{"abandoned": true, "reason": "no final result from gateway"})
	if won {
		logging.With(ctx, u.log).Warn().Time("created_at", p.CreatedAt).Msg("pending payment abandoned")
	}
	return nil
}

// markFailed moves a pending payment to failed outside the callback path.
func (u *paymentUC) markFailed(ctx context.Context, id int64, note map[string]any) bool {
	raw, _ := json.Marshal(note)
	won, err := u.payments.TransitionIfPending(ctx, repository.NoTX, id, model.PaymentTransition{
		Status:     model.PaymentStatusFailed,
		RawPayload: raw,
	})
	if err != nil {
		logging.With(ctx, u.log).Error().Err(err).Int64("payment_id", id).Msg("mark payment failed")
		return false
	}
	if won {
		metrics.IncPayment(string(model.PaymentStatusFailed))
	}
	return won
}

// syntheticEnvelope renders a locally produced result in the gateway's own
// callback shape so the stored payload reads the same as a real delivery.
func syntheticEnvelope(cb *model.GatewayCallback, source string) json.RawMessage {
	body := map[string]any{
		"MerchantRequestID": cb.MerchantRequestID,
		"CheckoutRequestID": cb.CheckoutRequestID,
		"ResultCode":        cb.ResultCode,
		"ResultDesc":        cb.ResultDesc,
	}
	if len(cb.Items) > 0 {
		items := make([]map[string]any, 0, len(cb.Items))
		for k, v := range cb.Items {
			items = append(items, map[string]any{"Name": k, "Value": v})
		}
		body["CallbackMetadata"] = map[string]any{"Item": items}
	}
	raw, _ := json.Marshal(map[string]any{"stkCallback": body, "source": source})
	return raw
}

func intentKind(in model.PurchaseIntent) string {
	if in == nil {
		return "unknown"
	}
	return string(in.Kind())
}
