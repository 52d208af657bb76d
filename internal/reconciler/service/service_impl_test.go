package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepass/internal/clock"
	courserepo "github.com/smallbiznis/coursepass/internal/course/repository"
	paymentdomain "github.com/smallbiznis/coursepass/internal/payment/domain"
	purchaserepo "github.com/smallbiznis/coursepass/internal/purchase/repository"
	"github.com/smallbiznis/coursepass/internal/reconciler/domain"
	"github.com/smallbiznis/coursepass/internal/storetest"
	subscriptiondomain "github.com/smallbiznis/coursepass/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/coursepass/internal/subscription/repository"
	userrepo "github.com/smallbiznis/coursepass/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	userID   snowflake.ID = 1001
	courseID snowflake.ID = 2001
)

var baseTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	svc     domain.Service
	subRepo subscriptiondomain.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureWithRepo(t, subscriptionrepo.Provide())
}

func newFixtureWithRepo(t *testing.T, subRepo subscriptiondomain.Repository) fixture {
	t.Helper()
	db := storetest.Open(t)
	storetest.SeedUser(t, db, userID, "ada@example.com", "cus_ada")
	storetest.SeedCourse(t, db, courseID, "Go in Production", 4900)

	svc := NewService(Params{
		DB:               db,
		Log:              zap.NewNop(),
		GenID:            storetest.Node(t),
		Clock:            clock.NewFakeClock(baseTime),
		UserRepo:         userrepo.Provide(),
		CourseRepo:       courserepo.Provide(),
		SubscriptionRepo: subRepo,
		PurchaseRepo:     purchaserepo.Provide(),
	})
	return fixture{db: db, svc: svc, subRepo: subRepo}
}

func checkoutEvent(checkoutID string) paymentdomain.VerifiedEvent {
	return paymentdomain.VerifiedEvent{
		ID:         "evt_" + checkoutID,
		Provider:   "stripe",
		Type:       "checkout.session.completed",
		OccurredAt: baseTime,
		Payload: paymentdomain.CheckoutCompleted{
			CheckoutID:         checkoutID,
			CourseID:           courseID.String(),
			UserID:             userID.String(),
			ExternalCustomerID: "cus_ada",
			Amount:             4900,
			Currency:           "usd",
			Mode:               paymentdomain.CheckoutModePayment,
		},
	}
}

func subscriptionEvent(created bool, customer, status string, at time.Time) paymentdomain.VerifiedEvent {
	return paymentdomain.VerifiedEvent{
		ID:         "evt_sub_" + status + at.Format(time.RFC3339Nano),
		Provider:   "stripe",
		Type:       "customer.subscription.updated",
		OccurredAt: at,
		Payload: paymentdomain.SubscriptionChanged{
			Created:                created,
			ExternalSubscriptionID: "sub_ada",
			ExternalCustomerID:     customer,
			Status:                 status,
			PlanInterval:           subscriptiondomain.IntervalMonth,
			PeriodStart:            baseTime,
			PeriodEnd:              baseTime.AddDate(0, 1, 0),
		},
	}
}

func currentSubscriptionID(t *testing.T, db *gorm.DB) *int64 {
	t.Helper()
	var ref *int64
	require.NoError(t, db.Raw(`SELECT current_subscription_id FROM users WHERE id = ?`, userID).Row().Scan(&ref))
	return ref
}

func storedStatus(t *testing.T, db *gorm.DB) string {
	t.Helper()
	var status string
	require.NoError(t, db.Raw(`SELECT status FROM subscriptions WHERE external_subscription_id = ?`, "sub_ada").Row().Scan(&status))
	return status
}

func TestCheckoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.svc.Apply(ctx, checkoutEvent("cs_1"))
	require.True(t, first.IsApplied(), first.String())

	second := f.svc.Apply(ctx, checkoutEvent("cs_1"))
	assert.True(t, second.IsIgnored())
	assert.Equal(t, domain.ReasonDuplicateCheckout, second.Reason)
	assert.Equal(t, int64(1), storetest.Count(t, f.db, "purchases"))

	var amount int64
	require.NoError(t, f.db.Raw(`SELECT amount FROM purchases WHERE external_checkout_id = ?`, "cs_1").Row().Scan(&amount))
	assert.Equal(t, int64(4900), amount)
}

func TestCheckoutMissingMetadataFails(t *testing.T) {
	f := newFixture(t)

	cases := map[string]func(*paymentdomain.CheckoutCompleted){
		"no course":      func(p *paymentdomain.CheckoutCompleted) { p.CourseID = "" },
		"no customer":    func(p *paymentdomain.CheckoutCompleted) { p.ExternalCustomerID = "" },
		"invalid course": func(p *paymentdomain.CheckoutCompleted) { p.CourseID = "not-a-number" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			event := checkoutEvent("cs_" + name)
			payload := event.Payload.(paymentdomain.CheckoutCompleted)
			mutate(&payload)
			event.Payload = payload

			res := f.svc.Apply(context.Background(), event)
			require.True(t, res.IsFailed())
			assert.ErrorIs(t, res.Err, domain.ErrMissingMetadata)
			assert.True(t, res.IsConsistencyFault())
		})
	}
	assert.Equal(t, int64(0), storetest.Count(t, f.db, "purchases"))
}

func TestCheckoutForUnknownCourseFails(t *testing.T) {
	f := newFixture(t)

	event := checkoutEvent("cs_ghost_course")
	payload := event.Payload.(paymentdomain.CheckoutCompleted)
	payload.CourseID = "999999"
	event.Payload = payload

	res := f.svc.Apply(context.Background(), event)
	require.True(t, res.IsFailed())
	assert.ErrorIs(t, res.Err, domain.ErrCourseNotFound)
	assert.True(t, res.IsConsistencyFault())
	assert.Equal(t, int64(0), storetest.Count(t, f.db, "purchases"))
}

func TestCheckoutUnknownCustomerFails(t *testing.T) {
	f := newFixture(t)
	event := checkoutEvent("cs_2")
	payload := event.Payload.(paymentdomain.CheckoutCompleted)
	payload.ExternalCustomerID = "cus_unknown"
	event.Payload = payload

	res := f.svc.Apply(context.Background(), event)
	require.True(t, res.IsFailed())
	assert.ErrorIs(t, res.Err, domain.ErrUserNotFound)
	assert.Equal(t, "user_not_found", res.Reason)
	assert.Equal(t, int64(0), storetest.Count(t, f.db, "purchases"))
}

func TestSubscriptionModeCheckoutIsIgnored(t *testing.T) {
	f := newFixture(t)
	event := checkoutEvent("cs_plan")
	payload := event.Payload.(paymentdomain.CheckoutCompleted)
	payload.Mode = paymentdomain.CheckoutModeSubscription
	payload.CourseID = ""
	event.Payload = payload

	res := f.svc.Apply(context.Background(), event)
	assert.True(t, res.IsIgnored())
	assert.Equal(t, domain.ReasonSubscriptionCheckout, res.Reason)
}

func TestSubscriptionCreatedSetsCurrentReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.svc.Apply(ctx, subscriptionEvent(true, "cus_ada", subscriptiondomain.StatusActive, baseTime))
	require.True(t, res.IsApplied(), res.String())

	sub, err := f.subRepo.FindByExternalID(ctx, f.db, "sub_ada")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, userID, sub.UserID)
	assert.Equal(t, baseTime.UnixNano(), sub.LastEventTS)

	ref := currentSubscriptionID(t, f.db)
	require.NotNil(t, ref)
	assert.Equal(t, int64(sub.ID), *ref)
}

func TestStaleSubscriptionUpdateIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := baseTime
	t2 := baseTime.Add(time.Minute)

	require.True(t, f.svc.Apply(ctx, subscriptionEvent(false, "cus_ada", subscriptiondomain.StatusPastDue, t2)).IsApplied())

	res := f.svc.Apply(ctx, subscriptionEvent(false, "cus_ada", subscriptiondomain.StatusActive, t1))
	assert.True(t, res.IsIgnored())
	assert.Equal(t, domain.ReasonStaleEvent, res.Reason)
	assert.Equal(t, subscriptiondomain.StatusPastDue, storedStatus(t, f.db))
}

func TestSubscriptionUpdateWithEqualTimestampApplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.True(t, f.svc.Apply(ctx, subscriptionEvent(true, "cus_ada", subscriptiondomain.StatusIncomplete, baseTime)).IsApplied())
	res := f.svc.Apply(ctx, subscriptionEvent(false, "cus_ada", subscriptiondomain.StatusActive, baseTime))
	assert.True(t, res.IsApplied())
	assert.Equal(t, subscriptiondomain.StatusActive, storedStatus(t, f.db))
}

func TestSubscriptionCreatedTyingWithUpdateIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.True(t, f.svc.Apply(ctx, subscriptionEvent(false, "cus_ada", subscriptiondomain.StatusActive, baseTime)).IsApplied())
	res := f.svc.Apply(ctx, subscriptionEvent(true, "cus_ada", subscriptiondomain.StatusIncomplete, baseTime))
	assert.True(t, res.IsIgnored())
	assert.Equal(t, domain.ReasonStaleEvent, res.Reason)
	assert.Equal(t, subscriptiondomain.StatusActive, storedStatus(t, f.db))
}

func TestSubscriptionUpdateUnknownCustomerDoesNotMutate(t *testing.T) {
	f := newFixture(t)

	res := f.svc.Apply(context.Background(), subscriptionEvent(false, "cus_ghost", subscriptiondomain.StatusActive, baseTime))
	require.True(t, res.IsFailed())
	assert.ErrorIs(t, res.Err, domain.ErrUserNotFound)
	assert.Equal(t, int64(0), storetest.Count(t, f.db, "subscriptions"))
	assert.Nil(t, currentSubscriptionID(t, f.db))
}

func TestSubscriptionOwnedByAnotherUserFails(t *testing.T) {
	f := newFixture(t)
	storetest.SeedUser(t, f.db, 1002, "bob@example.com", "cus_bob")
	ctx := context.Background()

	require.True(t, f.svc.Apply(ctx, subscriptionEvent(true, "cus_ada", subscriptiondomain.StatusActive, baseTime)).IsApplied())

	res := f.svc.Apply(ctx, subscriptionEvent(false, "cus_bob", subscriptiondomain.StatusCanceled, baseTime.Add(time.Minute)))
	require.True(t, res.IsFailed())
	assert.ErrorIs(t, res.Err, domain.ErrSubscriptionOwnerMismatch)
	assert.Equal(t, subscriptiondomain.StatusActive, storedStatus(t, f.db))
}

func TestConcurrentSubscriptionUpdatesKeepNewest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.svc.Apply(ctx, subscriptionEvent(true, "cus_ada", subscriptiondomain.StatusIncomplete, baseTime)).IsApplied())

	statuses := []string{
		subscriptiondomain.StatusTrialing,
		subscriptiondomain.StatusPastDue,
		subscriptiondomain.StatusUnpaid,
		subscriptiondomain.StatusActive,
	}
	var wg sync.WaitGroup
	results := make([]domain.Result, len(statuses))
	for i, status := range statuses {
		wg.Add(1)
		go func(i int, status string) {
			defer wg.Done()
			at := baseTime.Add(time.Duration(i+1) * time.Second)
			results[i] = f.svc.Apply(ctx, subscriptionEvent(false, "cus_ada", status, at))
		}(i, status)
	}
	wg.Wait()

	for _, res := range results {
		assert.False(t, res.IsFailed(), res.String())
	}
	assert.Equal(t, subscriptiondomain.StatusActive, storedStatus(t, f.db))

	sub, err := f.subRepo.FindByExternalID(ctx, f.db, "sub_ada")
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(4*time.Second).UnixNano(), sub.LastEventTS)
}

// conflictingRepo loses every compare-and-swap after the first insert.
type conflictingRepo struct {
	subscriptiondomain.Repository
	conflicts int
}

func (r *conflictingRepo) Upsert(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription, expected *int64) (subscriptiondomain.UpsertResult, error) {
	if expected != nil {
		r.conflicts++
		return subscriptiondomain.UpsertConflict, nil
	}
	return r.Repository.Upsert(ctx, db, sub, expected)
}

func TestSubscriptionUpdateGivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := &conflictingRepo{Repository: subscriptionrepo.Provide()}
	f := newFixtureWithRepo(t, repo)
	ctx := context.Background()

	require.True(t, f.svc.Apply(ctx, subscriptionEvent(true, "cus_ada", subscriptiondomain.StatusActive, baseTime)).IsApplied())

	res := f.svc.Apply(ctx, subscriptionEvent(false, "cus_ada", subscriptiondomain.StatusCanceled, baseTime.Add(time.Minute)))
	require.True(t, res.IsFailed())
	assert.ErrorIs(t, res.Err, domain.ErrConcurrentUpdate)
	assert.Equal(t, maxCASAttempts, repo.conflicts)
	assert.Equal(t, subscriptiondomain.StatusActive, storedStatus(t, f.db))
}

func TestSubscriptionDeletedClearsReferenceThenDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.svc.Apply(ctx, subscriptionEvent(true, "cus_ada", subscriptiondomain.StatusActive, baseTime)).IsApplied())

	res := f.svc.Apply(ctx, paymentdomain.VerifiedEvent{
		ID:         "evt_del",
		Provider:   "stripe",
		Type:       "customer.subscription.deleted",
		OccurredAt: baseTime.Add(time.Hour),
		Payload:    paymentdomain.SubscriptionDeleted{ExternalSubscriptionID: "sub_ada"},
	})
	require.True(t, res.IsApplied(), res.String())
	assert.Nil(t, currentSubscriptionID(t, f.db))
	assert.Equal(t, int64(0), storetest.Count(t, f.db, "subscriptions"))

	again := f.svc.Apply(ctx, paymentdomain.VerifiedEvent{
		ID:      "evt_del_2",
		Payload: paymentdomain.SubscriptionDeleted{ExternalSubscriptionID: "sub_ada"},
	})
	require.True(t, again.IsFailed())
	assert.ErrorIs(t, again.Err, domain.ErrSubscriptionNotFound)
}

func TestUnhandledEventIsIgnored(t *testing.T) {
	f := newFixture(t)
	res := f.svc.Apply(context.Background(), paymentdomain.VerifiedEvent{
		ID:      "evt_other",
		Type:    "invoice.paid",
		Payload: paymentdomain.Other{Type: "invoice.paid"},
	})
	assert.True(t, res.IsIgnored())
	assert.Equal(t, domain.ReasonUnhandledEventType, res.Reason)
	assert.Equal(t, "ignored(unhandled_event_type)", res.String())
}
