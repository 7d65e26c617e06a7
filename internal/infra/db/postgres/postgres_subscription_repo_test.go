//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/model"
)

func TestSubscriptionAndUserRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	subs := NewSubscriptionRepo(testPool)
	users := NewPostgresUserRepo(testPool)
	payments := NewPaymentRepo(testPool)

	t.Run("pending subscription is promoted and found by payment", func(t *testing.T) {
		cleanup(t)
		uid := seedUser(t, "auth-s1")
		s, _ := model.NewPendingSubscription(uid, decimal.NewFromInt(2000), 30)
		if err := subs.Save(ctx, nil, s); err != nil {
			t.Fatalf("Save: %v", err)
		}

		pending, err := subs.FindLatestPending(ctx, nil, uid)
		if err != nil || pending.ID != s.ID {
			t.Fatalf("FindLatestPending: %+v (%v)", pending, err)
		}

		p, _ := model.NewPendingPayment(model.VIPPlanIntent{UserID: "auth-s1", Plan: model.PlanVIP}, decimal.NewFromInt(2000), "254700000003")
		if err := payments.Create(ctx, nil, p); err != nil {
			t.Fatalf("create payment: %v", err)
		}
		pending.Activate(time.Now(), p.ID)
		if err := subs.Save(ctx, nil, pending); err != nil {
			t.Fatalf("Save active: %v", err)
		}

		got, err := subs.FindByLastPayment(ctx, nil, p.ID)
		if err != nil || got.Status != model.SubscriptionStatusActive {
			t.Fatalf("FindByLastPayment: %+v (%v)", got, err)
		}
		if _, err := subs.FindLatestPending(ctx, nil, uid); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected no pending rows left, got %v", err)
		}
	})

	t.Run("SetVIP and ClearExpiredVIP", func(t *testing.T) {
		cleanup(t)
		uid := seedUser(t, "auth-s2")
		past := time.Now().Add(-time.Hour)
		if err := users.SetVIP(ctx, nil, uid, past); err != nil {
			t.Fatalf("SetVIP: %v", err)
		}
		u, err := users.FindByAuthID(ctx, nil, "auth-s2")
		if err != nil || u.Role != model.RoleVIP {
			t.Fatalf("FindByAuthID: %+v (%v)", u, err)
		}
		if u.IsVIP(time.Now()) {
			t.Fatal("expired vip must not count")
		}
		n, err := users.ClearExpiredVIP(ctx, nil, []int64{uid}, time.Now())
		if err != nil || n != 1 {
			t.Fatalf("ClearExpiredVIP: %d (%v)", n, err)
		}
	})

	t.Run("ExpireEnded returns the affected users", func(t *testing.T) {
		cleanup(t)
		uid := seedUser(t, "auth-s3")
		s, _ := model.NewPendingSubscription(uid, decimal.NewFromInt(2000), 30)
		s.Activate(time.Now().Add(-31*24*time.Hour), 0)
		s.LastPaymentID = nil
		if err := subs.Save(ctx, nil, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
		ids, err := subs.ExpireEnded(ctx, nil, time.Now())
		if err != nil || len(ids) != 1 || ids[0] != uid {
			t.Fatalf("ExpireEnded: %v (%v)", ids, err)
		}
	})
}
