package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"earlykickoff-backend/internal/domain"
)

type IntentKind string

const (
	IntentEventTicket IntentKind = "event_ticket"
	IntentVIPPlan     IntentKind = "vip_plan"
	IntentStoreOrder  IntentKind = "store_order"
)

// PlanVIP is the plan name carried by VIP purchase intents.
const PlanVIP = "vip"

// PurchaseIntent is what a payment was for. Exactly one variant per payment.
type PurchaseIntent interface {
	Kind() IntentKind
	Validate() error
}

type EventTicketIntent struct {
	EventID  int64  `json:"event_id"`
	Quantity int    `json:"quantity"`
	UserID   string `json:"user_id"` // external auth id of the buyer
}

type VIPPlanIntent struct {
	UserID string `json:"user_id"`
	Plan   string `json:"plan"`
}

type StoreOrderIntent struct {
	OrderID int64 `json:"order_id"`
}

func (EventTicketIntent) Kind() IntentKind { return IntentEventTicket }
func (VIPPlanIntent) Kind() IntentKind     { return IntentVIPPlan }
func (StoreOrderIntent) Kind() IntentKind  { return IntentStoreOrder }

func (i EventTicketIntent) Validate() error {
	if i.EventID <= 0 || i.Quantity <= 0 || strings.TrimSpace(i.UserID) == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

func (i VIPPlanIntent) Validate() error {
	if strings.TrimSpace(i.UserID) == "" || i.Plan == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

func (i StoreOrderIntent) Validate() error {
	if i.OrderID <= 0 {
		return domain.ErrInvalidArgument
	}
	return nil
}

type taggedIntent struct {
	Kind     IntentKind `json:"kind"`
	EventID  int64      `json:"event_id,omitempty"`
	Quantity int        `json:"quantity,omitempty"`
	UserID   string     `json:"user_id,omitempty"`
	Plan     string     `json:"plan,omitempty"`
	OrderID  int64      `json:"order_id,omitempty"`
}

// EncodeIntent produces the tagged JSON stored alongside the payment.
func EncodeIntent(i PurchaseIntent) ([]byte, error) {
	if i == nil {
		return nil, domain.ErrUnknownIntent
	}
	t := taggedIntent{Kind: i.Kind()}
	switch v := i.(type) {
	case EventTicketIntent:
		t.EventID, t.Quantity, t.UserID = v.EventID, v.Quantity, v.UserID
	case VIPPlanIntent:
		t.UserID, t.Plan = v.UserID, v.Plan
	case StoreOrderIntent:
		t.OrderID = v.OrderID
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrUnknownIntent, i)
	}
	return json.Marshal(t)
}

// DecodeIntent resolves a payment's intent once. The tagged column wins; rows
// written before it existed fall back to the loose keys in raw_payload and the
// order_id column, checked in the order event ticket, VIP plan, store order.
func DecodeIntent(orderID *int64, tagged []byte, legacy []byte) (PurchaseIntent, error) {
	if len(tagged) > 0 && string(tagged) != "null" {
		var t taggedIntent
		if err := json.Unmarshal(tagged, &t); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnknownIntent, err)
		}
		switch t.Kind {
		case IntentEventTicket:
			return EventTicketIntent{EventID: t.EventID, Quantity: orOne(t.Quantity), UserID: t.UserID}, nil
		case IntentVIPPlan:
			return VIPPlanIntent{UserID: t.UserID, Plan: t.Plan}, nil
		case IntentStoreOrder:
			return StoreOrderIntent{OrderID: t.OrderID}, nil
		}
		return nil, fmt.Errorf("%w: kind %q", domain.ErrUnknownIntent, t.Kind)
	}

	var raw map[string]any
	if len(legacy) > 0 {
		_ = json.Unmarshal(legacy, &raw)
	}
	if eventID, ok := looseInt(raw["event_id"]); ok && eventID > 0 {
		qty, _ := looseInt(raw["quantity"])
		uid, _ := raw["user_id"].(string)
		return EventTicketIntent{EventID: eventID, Quantity: orOne(int(qty)), UserID: uid}, nil
	}
	if plan, ok := raw["plan"].(string); ok && strings.EqualFold(plan, PlanVIP) {
		uid, _ := raw["user_id"].(string)
		return VIPPlanIntent{UserID: uid, Plan: PlanVIP}, nil
	}
	if orderID != nil && *orderID > 0 {
		return StoreOrderIntent{OrderID: *orderID}, nil
	}
	return nil, domain.ErrUnknownIntent
}

func orOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// looseInt accepts JSON numbers and numeric strings.
func looseInt(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	}
	return 0, false
}
