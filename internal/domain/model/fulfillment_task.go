package model

import (
	"encoding/json"
	"time"
)

type TaskKind string

const (
	TaskPaymentFulfillment TaskKind = "payment_fulfillment" // subject: payment id
	TaskOrderQR            TaskKind = "order_qr"            // subject: order id
	TaskTicketQR           TaskKind = "ticket_qr"           // subject: ticket uid
)

type TaskStatus string

const (
	TaskStatusQueued  TaskStatus = "queued"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusDead    TaskStatus = "dead"
)

// FulfillmentTask is an outbox row. (Kind, SubjectID) is unique, so enqueueing
// the same follow-up twice collapses into one task.
type FulfillmentTask struct {
	ID          int64      `json:"id"`
	Kind        TaskKind   `json:"kind"`
	SubjectID   string     `json:"subject_id"`
	Status      TaskStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	NextRunAt   time.Time  `json:"next_run_at"`
	LastError   *string    `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Exhausted reports whether another failure should bury the task.
func (t *FulfillmentTask) Exhausted() bool {
	return t.MaxAttempts > 0 && t.Attempts >= t.MaxAttempts
}

type WebhookOutcome string

const (
	WebhookIgnored          WebhookOutcome = "ignored"
	WebhookAlreadyProcessed WebhookOutcome = "already_processed"
	WebhookProcessed        WebhookOutcome = "processed"
	WebhookMarkedFailed     WebhookOutcome = "marked_failed"
)

// WebhookEvent is the audit log of callbacks that matched a payment.
type WebhookEvent struct {
	ID                string // ULID
	Provider          string
	CheckoutRequestID string
	PaymentID         *int64
	ResultCode        int
	Outcome           WebhookOutcome
	Payload           json.RawMessage
	ReceivedAt        time.Time
}
