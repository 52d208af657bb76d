package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	paymentdomain "github.com/smallbiznis/coursepass/internal/payment/domain"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test"

func signedHeaders(t *testing.T, secret string, payload []byte, ts time.Time) http.Header {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: ts,
		Scheme:    "v1",
	})
	h := http.Header{}
	h.Set("Stripe-Signature", signed.Header)
	return h
}

func newAdapter(t *testing.T) paymentdomain.Verifier {
	t.Helper()
	v, err := NewFactory().NewVerifier(paymentdomain.AdapterConfig{WebhookSecret: testSecret})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

func eventJSON(t *testing.T, id, typ string, created int64, object map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        typ,
		"created":     created,
		"api_version": "2025-08-27.basil",
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewFactory().NewVerifier(paymentdomain.AdapterConfig{}); !errors.Is(err, paymentdomain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestVerifyCheckoutCompleted(t *testing.T) {
	created := time.Now().Unix()
	payload := eventJSON(t, "evt_1", "checkout.session.completed", created, map[string]any{
		"id":           "cs_test_1",
		"object":       "checkout.session",
		"mode":         "payment",
		"customer":     "cus_1",
		"amount_total": 4900,
		"currency":     "USD",
		"metadata":     map[string]string{"courseId": "123", "userId": "77"},
	})

	evt, err := newAdapter(t).Verify(context.Background(), payload, signedHeaders(t, testSecret, payload, time.Now()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if evt.Kind() != paymentdomain.EventKindCheckoutCompleted {
		t.Fatalf("unexpected kind %s", evt.Kind())
	}
	if !evt.OccurredAt.Equal(time.Unix(created, 0)) {
		t.Fatalf("unexpected occurred_at %s", evt.OccurredAt)
	}
	checkout := evt.Payload.(paymentdomain.CheckoutCompleted)
	if checkout.CheckoutID != "cs_test_1" || checkout.CourseID != "123" || checkout.UserID != "77" {
		t.Fatalf("unexpected checkout %+v", checkout)
	}
	if checkout.ExternalCustomerID != "cus_1" || checkout.Amount != 4900 || checkout.Currency != "usd" {
		t.Fatalf("unexpected checkout amounts %+v", checkout)
	}
}

func TestVerifySubscriptionReadsItemPeriods(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	payload := eventJSON(t, "evt_2", "customer.subscription.updated", time.Now().Unix(), map[string]any{
		"id":                   "sub_1",
		"object":               "subscription",
		"customer":             map[string]any{"id": "cus_1", "object": "customer"},
		"status":               "past_due",
		"cancel_at_period_end": true,
		"items": map[string]any{
			"data": []map[string]any{{
				"current_period_start": start.Unix(),
				"current_period_end":   end.Unix(),
				"price":                map[string]any{"recurring": map[string]any{"interval": "year"}},
			}},
		},
	})

	evt, err := newAdapter(t).Verify(context.Background(), payload, signedHeaders(t, testSecret, payload, time.Now()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if evt.Kind() != paymentdomain.EventKindSubscriptionUpdated {
		t.Fatalf("unexpected kind %s", evt.Kind())
	}
	sub := evt.Payload.(paymentdomain.SubscriptionChanged)
	if sub.ExternalCustomerID != "cus_1" || sub.Status != "past_due" || !sub.CancelAtPeriodEnd {
		t.Fatalf("unexpected subscription %+v", sub)
	}
	if sub.PlanInterval != "year" || !sub.PeriodStart.Equal(start) || !sub.PeriodEnd.Equal(end) {
		t.Fatalf("unexpected period %+v", sub)
	}
}

func TestVerifySubscriptionCreatedAndDeleted(t *testing.T) {
	now := time.Now()
	created := eventJSON(t, "evt_3", "customer.subscription.created", now.Unix(), map[string]any{
		"id":                   "sub_2",
		"customer":             "cus_2",
		"status":               "active",
		"current_period_start": now.Unix(),
		"current_period_end":   now.AddDate(0, 1, 0).Unix(),
		"plan":                 map[string]any{"interval": "month"},
	})
	evt, err := newAdapter(t).Verify(context.Background(), created, signedHeaders(t, testSecret, created, now))
	if err != nil {
		t.Fatalf("verify created: %v", err)
	}
	if evt.Kind() != paymentdomain.EventKindSubscriptionCreated {
		t.Fatalf("unexpected kind %s", evt.Kind())
	}
	if evt.Payload.(paymentdomain.SubscriptionChanged).PlanInterval != "month" {
		t.Fatalf("expected plan interval from legacy plan object")
	}

	deleted := eventJSON(t, "evt_4", "customer.subscription.deleted", now.Unix(), map[string]any{"id": "sub_2"})
	evt, err = newAdapter(t).Verify(context.Background(), deleted, signedHeaders(t, testSecret, deleted, now))
	if err != nil {
		t.Fatalf("verify deleted: %v", err)
	}
	if evt.Payload.(paymentdomain.SubscriptionDeleted).ExternalSubscriptionID != "sub_2" {
		t.Fatalf("unexpected payload %+v", evt.Payload)
	}
}

func TestVerifyUnknownTypeIsOther(t *testing.T) {
	payload := eventJSON(t, "evt_5", "invoice.paid", time.Now().Unix(), map[string]any{"id": "in_1"})
	evt, err := newAdapter(t).Verify(context.Background(), payload, signedHeaders(t, testSecret, payload, time.Now()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	other, ok := evt.Payload.(paymentdomain.Other)
	if !ok || other.Type != "invoice.paid" || evt.Kind() != paymentdomain.EventKindOther {
		t.Fatalf("expected other payload, got %+v", evt.Payload)
	}
}

func TestVerifyRejectsForgeries(t *testing.T) {
	payload := eventJSON(t, "evt_6", "checkout.session.completed", time.Now().Unix(), map[string]any{"id": "cs_1"})
	headers := signedHeaders(t, testSecret, payload, time.Now())
	adapter := newAdapter(t)

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] = ' '
	if _, err := adapter.Verify(context.Background(), tampered, headers); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature for altered body, got %v", err)
	}

	if _, err := adapter.Verify(context.Background(), payload, signedHeaders(t, "whsec_other", payload, time.Now())); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature for wrong secret, got %v", err)
	}

	if _, err := adapter.Verify(context.Background(), payload, http.Header{}); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature for missing header, got %v", err)
	}

	old := signedHeaders(t, testSecret, payload, time.Now().Add(-time.Hour))
	if _, err := adapter.Verify(context.Background(), payload, old); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature for stale timestamp, got %v", err)
	}
}

func TestVerifyRejectsMalformedBody(t *testing.T) {
	payload := []byte(`{"id":"evt_7","type":`)
	_, err := newAdapter(t).Verify(context.Background(), payload, signedHeaders(t, testSecret, payload, time.Now()))
	if !errors.Is(err, paymentdomain.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
}
