package stripe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/coursepass/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	providerName    = "stripe"
	signatureHeader = "Stripe-Signature"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewVerifier(cfg paymentdomain.AdapterConfig) (paymentdomain.Verifier, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Adapter{webhookSecret: secret, tolerance: tolerance}, nil
}

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
}

// Verify checks the Stripe-Signature header against the raw body and maps
// the event onto the closed payload union.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.VerifiedEvent, error) {
	sigHeader := strings.TrimSpace(headers.Get(signatureHeader))
	if sigHeader == "" {
		return nil, paymentdomain.ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, a.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                a.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, paymentdomain.ErrInvalidSignature
		}
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" || event.Data == nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	eventPayload, err := parsePayload(string(event.Type), event.Data.Raw)
	if err != nil {
		return nil, err
	}

	return &paymentdomain.VerifiedEvent{
		ID:         event.ID,
		Provider:   providerName,
		Type:       string(event.Type),
		OccurredAt: time.Unix(event.Created, 0).UTC(),
		Payload:    eventPayload,
		Raw:        payload,
	}, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func parsePayload(eventType string, raw json.RawMessage) (paymentdomain.EventPayload, error) {
	switch stripego.EventType(eventType) {
	case stripego.EventTypeCheckoutSessionCompleted:
		return parseCheckoutSession(raw)
	case stripego.EventTypeCustomerSubscriptionCreated:
		return parseSubscriptionChanged(raw, true)
	case stripego.EventTypeCustomerSubscriptionUpdated:
		return parseSubscriptionChanged(raw, false)
	case stripego.EventTypeCustomerSubscriptionDeleted:
		var sub stripeSubscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, paymentdomain.ErrInvalidPayload
		}
		return paymentdomain.SubscriptionDeleted{ExternalSubscriptionID: strings.TrimSpace(sub.ID)}, nil
	default:
		return paymentdomain.Other{Type: eventType}, nil
	}
}

type stripeCheckoutSession struct {
	ID          string            `json:"id"`
	Mode        string            `json:"mode"`
	Customer    expandable        `json:"customer"`
	AmountTotal int64             `json:"amount_total"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID                 string     `json:"id"`
	Customer           expandable `json:"customer"`
	Status             string     `json:"status"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CurrentPeriodStart int64      `json:"current_period_start"`
	CurrentPeriodEnd   int64      `json:"current_period_end"`
	Plan               *struct {
		Interval string `json:"interval"`
	} `json:"plan"`
	Items struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				Recurring *struct {
					Interval string `json:"interval"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// expandable decodes a Stripe reference that is either an id string or an
// expanded object carrying an id.
type expandable string

func (e *expandable) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*e = expandable(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandable(obj.ID)
	return nil
}

func parseCheckoutSession(raw json.RawMessage) (paymentdomain.EventPayload, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	return paymentdomain.CheckoutCompleted{
		CheckoutID:         strings.TrimSpace(session.ID),
		CourseID:           strings.TrimSpace(session.Metadata["courseId"]),
		UserID:             strings.TrimSpace(session.Metadata["userId"]),
		ExternalCustomerID: strings.TrimSpace(string(session.Customer)),
		Amount:             session.AmountTotal,
		Currency:           strings.ToLower(strings.TrimSpace(session.Currency)),
		Mode:               strings.TrimSpace(session.Mode),
	}, nil
}

func parseSubscriptionChanged(raw json.RawMessage, created bool) (paymentdomain.EventPayload, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	start, end := sub.CurrentPeriodStart, sub.CurrentPeriodEnd
	interval := ""
	if sub.Plan != nil {
		interval = sub.Plan.Interval
	}
	// Newer API versions moved period bounds and price onto the items.
	if len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if start == 0 {
			start = item.CurrentPeriodStart
		}
		if end == 0 {
			end = item.CurrentPeriodEnd
		}
		if interval == "" && item.Price.Recurring != nil {
			interval = item.Price.Recurring.Interval
		}
	}

	return paymentdomain.SubscriptionChanged{
		Created:                created,
		ExternalSubscriptionID: strings.TrimSpace(sub.ID),
		ExternalCustomerID:     strings.TrimSpace(string(sub.Customer)),
		Status:                 strings.TrimSpace(sub.Status),
		PlanInterval:           strings.TrimSpace(interval),
		PeriodStart:            unixOrZero(start),
		PeriodEnd:              unixOrZero(end),
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
	}, nil
}

func unixOrZero(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
