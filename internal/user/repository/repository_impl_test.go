package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepass/internal/storetest"
	userdomain "github.com/smallbiznis/coursepass/internal/user/domain"
)

func TestFindByExternalCustomerID(t *testing.T) {
	db := storetest.Open(t)
	storetest.SeedUser(t, db, 1, "ada@example.com", "cus_ada")
	r := Provide()
	ctx := context.Background()

	user, err := r.FindByExternalCustomerID(ctx, db, "cus_ada")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if user == nil || user.ID != 1 {
		t.Fatalf("expected user 1, got %+v", user)
	}

	missing, err := r.FindByExternalCustomerID(ctx, db, "cus_other")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown customer")
	}
}

func TestSetExternalCustomerIDIsWriteOnce(t *testing.T) {
	db := storetest.Open(t)
	storetest.SeedUser(t, db, 1, "ada@example.com", "")
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	changed, err := r.SetExternalCustomerID(ctx, db, 1, "cus_first", now)
	if err != nil || !changed {
		t.Fatalf("expected first link to land, changed=%v err=%v", changed, err)
	}

	changed, err = r.SetExternalCustomerID(ctx, db, 1, "cus_second", now)
	if err != nil {
		t.Fatalf("second link: %v", err)
	}
	if changed {
		t.Fatalf("expected second link to be a no-op")
	}

	user, err := r.FindByID(ctx, db, 1)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if user.ExternalCustomerID == nil || *user.ExternalCustomerID != "cus_first" {
		t.Fatalf("expected cus_first, got %v", user.ExternalCustomerID)
	}
}

func TestClearCurrentSubscriptionOnlyWhenMatching(t *testing.T) {
	db := storetest.Open(t)
	storetest.SeedUser(t, db, 1, "ada@example.com", "cus_ada")
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := r.SetCurrentSubscription(ctx, db, 1, snowflake.ID(50), now); err != nil {
		t.Fatalf("set: %v", err)
	}

	cleared, err := r.ClearCurrentSubscription(ctx, db, 1, snowflake.ID(99), now)
	if err != nil {
		t.Fatalf("clear other: %v", err)
	}
	if cleared {
		t.Fatalf("expected mismatched clear to be a no-op")
	}

	cleared, err = r.ClearCurrentSubscription(ctx, db, 1, snowflake.ID(50), now)
	if err != nil || !cleared {
		t.Fatalf("expected clear, cleared=%v err=%v", cleared, err)
	}

	user, err := r.FindByID(ctx, db, 1)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if user.CurrentSubscriptionID != nil {
		t.Fatalf("expected nil reference, got %v", *user.CurrentSubscriptionID)
	}
}

func TestInsertAndFindByEmail(t *testing.T) {
	db := storetest.Open(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	err := r.Insert(ctx, db, &userdomain.User{
		ID:           10,
		Email:        "grace@example.com",
		Name:         "Grace",
		PasswordHash: "hash",
		Role:         userdomain.RoleStudent,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	user, err := r.FindByEmail(ctx, db, " Grace@Example.com ")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if user == nil || user.ID != 10 || user.HasExternalCustomer() {
		t.Fatalf("unexpected user %+v", user)
	}
}
