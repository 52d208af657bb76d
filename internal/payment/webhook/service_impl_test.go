package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/smallbiznis/coursepass/internal/clock"
	"github.com/smallbiznis/coursepass/internal/config"
	courserepo "github.com/smallbiznis/coursepass/internal/course/repository"
	"github.com/smallbiznis/coursepass/internal/payment/adapters"
	"github.com/smallbiznis/coursepass/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/coursepass/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/coursepass/internal/payment/repository"
	paymentwebhook "github.com/smallbiznis/coursepass/internal/payment/webhook"
	purchaserepo "github.com/smallbiznis/coursepass/internal/purchase/repository"
	reconcilerdomain "github.com/smallbiznis/coursepass/internal/reconciler/domain"
	reconcilerservice "github.com/smallbiznis/coursepass/internal/reconciler/service"
	"github.com/smallbiznis/coursepass/internal/storetest"
	subscriptionrepo "github.com/smallbiznis/coursepass/internal/subscription/repository"
	userrepo "github.com/smallbiznis/coursepass/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string, string) (func(), bool, error) {
	return func() {}, false, nil
}

func newService(t *testing.T, db *gorm.DB, locker paymentdomain.EventLocker) *paymentwebhook.Service {
	t.Helper()
	storetest.SeedCourse(t, db, 2001, "Go in Production", 4900)
	node := storetest.Node(t)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	reconciler := reconcilerservice.NewService(reconcilerservice.Params{
		DB:               db,
		Log:              zap.NewNop(),
		GenID:            node,
		Clock:            clk,
		UserRepo:         userrepo.Provide(),
		CourseRepo:       courserepo.Provide(),
		SubscriptionRepo: subscriptionrepo.Provide(),
		PurchaseRepo:     purchaserepo.Provide(),
	})
	return paymentwebhook.NewService(paymentwebhook.Params{
		DB:         db,
		Log:        zap.NewNop(),
		Cfg:        config.Config{Stripe: config.StripeConfig{WebhookSecret: webhookSecret}},
		GenID:      node,
		Clock:      clk,
		Adapters:   adapters.NewRegistry(stripe.NewFactory()),
		Repo:       paymentrepo.Provide(),
		Reconciler: reconciler,
		Locker:     locker,
	})
}

func checkoutPayload(t *testing.T, eventID, checkoutID string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":      eventID,
		"object":  "event",
		"type":    "checkout.session.completed",
		"created": time.Now().Unix(),
		"data": map[string]any{"object": map[string]any{
			"id":           checkoutID,
			"mode":         "payment",
			"customer":     "cus_ada",
			"amount_total": 4900,
			"currency":     "usd",
			"metadata":     map[string]string{"courseId": "2001", "userId": "1001"},
		}},
	})
	require.NoError(t, err)
	return body
}

func sign(payload []byte) http.Header {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	headers := http.Header{}
	headers.Set("Stripe-Signature", signed.Header)
	return headers
}

func journalRow(t *testing.T, db *gorm.DB, eventID string) (string, *time.Time) {
	t.Helper()
	var row struct {
		Result      string
		ProcessedAt *time.Time
	}
	require.NoError(t, db.Raw(`SELECT result, processed_at FROM billing_events WHERE provider_event_id = ?`, eventID).Scan(&row).Error)
	return row.Result, row.ProcessedAt
}

func TestIngestAppliesAndShortCircuitsRedelivery(t *testing.T) {
	db := storetest.Open(t)
	storetest.SeedUser(t, db, 1001, "ada@example.com", "cus_ada")
	svc := newService(t, db, nil)
	ctx := context.Background()

	payload := checkoutPayload(t, "evt_1", "cs_1")
	res, err := svc.IngestWebhook(ctx, "stripe", payload, sign(payload))
	require.NoError(t, err)
	assert.True(t, res.IsApplied(), res.String())

	result, processedAt := journalRow(t, db, "evt_1")
	assert.Equal(t, paymentdomain.ResultApplied, result)
	assert.NotNil(t, processedAt)

	res, err = svc.IngestWebhook(ctx, "Stripe", payload, sign(payload))
	require.NoError(t, err)
	assert.True(t, res.IsIgnored())
	assert.Equal(t, reconcilerdomain.ReasonDuplicateEvent, res.Reason)
	assert.Equal(t, int64(1), storetest.Count(t, db, "purchases"))
	assert.Equal(t, int64(1), storetest.Count(t, db, "billing_events"))
}

func TestIngestSameCheckoutUnderNewEventIsIgnored(t *testing.T) {
	db := storetest.Open(t)
	storetest.SeedUser(t, db, 1001, "ada@example.com", "cus_ada")
	svc := newService(t, db, nil)
	ctx := context.Background()

	first := checkoutPayload(t, "evt_1", "cs_1")
	_, err := svc.IngestWebhook(ctx, "stripe", first, sign(first))
	require.NoError(t, err)

	second := checkoutPayload(t, "evt_2", "cs_1")
	res, err := svc.IngestWebhook(ctx, "stripe", second, sign(second))
	require.NoError(t, err)
	assert.Equal(t, reconcilerdomain.ReasonDuplicateCheckout, res.Reason)
	assert.Equal(t, int64(1), storetest.Count(t, db, "purchases"))
}

func TestIngestRejectsForgedBodyWithoutMutation(t *testing.T) {
	db := storetest.Open(t)
	storetest.SeedUser(t, db, 1001, "ada@example.com", "cus_ada")
	svc := newService(t, db, nil)

	payload := checkoutPayload(t, "evt_1", "cs_1")
	headers := sign(payload)
	forged := checkoutPayload(t, "evt_1", "cs_forged")

	_, err := svc.IngestWebhook(context.Background(), "stripe", forged, headers)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
	assert.Equal(t, int64(0), storetest.Count(t, db, "billing_events"))
	assert.Equal(t, int64(0), storetest.Count(t, db, "purchases"))
}

func TestIngestFailedEventIsRetriedOnRedelivery(t *testing.T) {
	db := storetest.Open(t)
	svc := newService(t, db, nil)
	ctx := context.Background()

	payload := checkoutPayload(t, "evt_1", "cs_1")
	res, err := svc.IngestWebhook(ctx, "stripe", payload, sign(payload))
	require.NoError(t, err)
	require.True(t, res.IsFailed())
	assert.ErrorIs(t, res.Err, reconcilerdomain.ErrUserNotFound)

	result, processedAt := journalRow(t, db, "evt_1")
	assert.Equal(t, paymentdomain.ResultFailed, result)
	assert.Nil(t, processedAt)

	storetest.SeedUser(t, db, 1001, "ada@example.com", "cus_ada")
	res, err = svc.IngestWebhook(ctx, "stripe", payload, sign(payload))
	require.NoError(t, err)
	assert.True(t, res.IsApplied(), res.String())
	assert.Equal(t, int64(1), storetest.Count(t, db, "purchases"))
}

func TestIngestUnknownProvider(t *testing.T) {
	svc := newService(t, storetest.Open(t), nil)
	_, err := svc.IngestWebhook(context.Background(), "paypal", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrProviderNotFound)

	_, err = svc.IngestWebhook(context.Background(), " ", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidProvider)
}

func TestIngestHeldLockAsksForRetry(t *testing.T) {
	db := storetest.Open(t)
	storetest.SeedUser(t, db, 1001, "ada@example.com", "cus_ada")
	svc := newService(t, db, heldLocker{})

	payload := checkoutPayload(t, "evt_1", "cs_1")
	_, err := svc.IngestWebhook(context.Background(), "stripe", payload, sign(payload))
	assert.ErrorIs(t, err, paymentdomain.ErrEventInFlight)
	assert.Equal(t, int64(0), storetest.Count(t, db, "billing_events"))
}

func TestIngestUnhandledTypeIsJournaledAsIgnored(t *testing.T) {
	db := storetest.Open(t)
	svc := newService(t, db, nil)

	payload := []byte(`{"id":"evt_9","object":"event","type":"invoice.paid","created":1700000000,"data":{"object":{"id":"in_1"}}}`)
	res, err := svc.IngestWebhook(context.Background(), "stripe", payload, sign(payload))
	require.NoError(t, err)
	assert.Equal(t, reconcilerdomain.ReasonUnhandledEventType, res.Reason)

	result, processedAt := journalRow(t, db, "evt_9")
	assert.Equal(t, paymentdomain.ResultIgnored, result)
	assert.NotNil(t, processedAt)
}
