package model

import (
	"time"

	"earlykickoff-backend/internal/domain"

	"github.com/shopspring/decimal"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending SubscriptionStatus = "pending"
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

const (
	SubscriptionPlanVIPMonthly = "vip_monthly"
	DefaultIntervalDays        = 30
)

type Subscription struct {
	ID            int64
	UserID        int64
	Plan          string
	Price         decimal.Decimal
	IntervalDays  int
	Status        SubscriptionStatus
	StartDate     *time.Time
	EndDate       *time.Time
	LastPaymentID *int64
	AutoRenew     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPendingSubscription is created at checkout and promoted on payment success.
func NewPendingSubscription(userID int64, price decimal.Decimal, intervalDays int) (*Subscription, error) {
	if userID <= 0 || price.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	if intervalDays <= 0 {
		intervalDays = DefaultIntervalDays
	}
	now := time.Now()
	return &Subscription{
		UserID:       userID,
		Plan:         SubscriptionPlanVIPMonthly,
		Price:        price,
		IntervalDays: intervalDays,
		Status:       SubscriptionStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Activate moves the row to active for [now, now+interval).
func (s *Subscription) Activate(now time.Time, paymentID int64) {
	if s.IntervalDays <= 0 {
		s.IntervalDays = DefaultIntervalDays
	}
	end := now.Add(time.Duration(s.IntervalDays) * 24 * time.Hour)
	start := now
	pid := paymentID
	s.Status = SubscriptionStatusActive
	s.StartDate = &start
	s.EndDate = &end
	s.LastPaymentID = &pid
	s.UpdatedAt = now
}
