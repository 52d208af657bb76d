package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/coursepass/internal/storetest"
	subscriptiondomain "github.com/smallbiznis/coursepass/internal/subscription/domain"
)

func newSubscription(status string, ts int64) *subscriptiondomain.Subscription {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return &subscriptiondomain.Subscription{
		ID:                     100,
		UserID:                 1,
		ExternalSubscriptionID: "sub_123",
		Status:                 status,
		PlanInterval:           subscriptiondomain.IntervalMonth,
		CurrentPeriodStart:     start,
		CurrentPeriodEnd:       start.AddDate(0, 1, 0),
		LastEventTS:            ts,
		CreatedAt:              start,
		UpdatedAt:              start,
	}
}

func TestUpsertInsertsOnce(t *testing.T) {
	db := storetest.Open(t)
	r := Provide()
	ctx := context.Background()

	res, err := r.Upsert(ctx, db, newSubscription(subscriptiondomain.StatusActive, 10), nil)
	if err != nil || res != subscriptiondomain.UpsertOK {
		t.Fatalf("expected insert, res=%v err=%v", res, err)
	}

	dup := newSubscription(subscriptiondomain.StatusPastDue, 20)
	dup.ID = 101
	res, err = r.Upsert(ctx, db, dup, nil)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if res != subscriptiondomain.UpsertConflict {
		t.Fatalf("expected conflict on existing external id")
	}
	if got := storetest.Count(t, db, "subscriptions"); got != 1 {
		t.Fatalf("expected 1 subscription, got %d", got)
	}
}

func TestUpsertCompareAndSwap(t *testing.T) {
	db := storetest.Open(t)
	r := Provide()
	ctx := context.Background()

	if _, err := r.Upsert(ctx, db, newSubscription(subscriptiondomain.StatusActive, 10), nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	wrong := int64(9)
	res, err := r.Upsert(ctx, db, newSubscription(subscriptiondomain.StatusCanceled, 30), &wrong)
	if err != nil {
		t.Fatalf("cas wrong: %v", err)
	}
	if res != subscriptiondomain.UpsertConflict {
		t.Fatalf("expected conflict on stale expectation")
	}

	expected := int64(10)
	update := newSubscription(subscriptiondomain.StatusPastDue, 20)
	update.CancelAtPeriodEnd = true
	res, err = r.Upsert(ctx, db, update, &expected)
	if err != nil || res != subscriptiondomain.UpsertOK {
		t.Fatalf("expected cas update, res=%v err=%v", res, err)
	}

	stored, err := r.FindByExternalID(ctx, db, "sub_123")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Status != subscriptiondomain.StatusPastDue || stored.LastEventTS != 20 || !stored.CancelAtPeriodEnd {
		t.Fatalf("unexpected stored subscription %+v", stored)
	}
	if stored.ID != 100 {
		t.Fatalf("expected id to be preserved, got %d", stored.ID)
	}
}

func TestDelete(t *testing.T) {
	db := storetest.Open(t)
	r := Provide()
	ctx := context.Background()

	if _, err := r.Upsert(ctx, db, newSubscription(subscriptiondomain.StatusActive, 10), nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := r.Delete(ctx, db, 100); err != nil {
		t.Fatalf("delete: %v", err)
	}
	sub, err := r.FindByID(ctx, db, 100)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if sub != nil {
		t.Fatalf("expected subscription to be gone")
	}
}
