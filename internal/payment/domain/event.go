package domain

import "time"

type EventKind string

const (
	EventKindCheckoutCompleted   EventKind = "checkout_completed"
	EventKindSubscriptionCreated EventKind = "subscription_created"
	EventKindSubscriptionUpdated EventKind = "subscription_updated"
	EventKindSubscriptionDeleted EventKind = "subscription_deleted"
	EventKindOther               EventKind = "other"
)

const (
	CheckoutModePayment      = "payment"
	CheckoutModeSubscription = "subscription"
)

// VerifiedEvent is a provider event whose signature has been checked. Payload
// is one of the variants below; anything a provider sends that is not
// modeled arrives as Other.
type VerifiedEvent struct {
	ID         string
	Provider   string
	Type       string
	OccurredAt time.Time
	Payload    EventPayload
	Raw        []byte
}

func (e VerifiedEvent) Kind() EventKind {
	if e.Payload == nil {
		return EventKindOther
	}
	return e.Payload.Kind()
}

// EventPayload is a closed union; only this package can add variants.
type EventPayload interface {
	Kind() EventKind
	eventPayload()
}

// CheckoutCompleted carries the checkout session metadata contract. Empty
// strings mean the field was absent.
type CheckoutCompleted struct {
	CheckoutID         string
	CourseID           string
	UserID             string
	ExternalCustomerID string
	Amount             int64
	Currency           string
	Mode               string
}

func (CheckoutCompleted) Kind() EventKind { return EventKindCheckoutCompleted }
func (CheckoutCompleted) eventPayload()   {}

// SubscriptionChanged covers both creation and update. Status is passed
// through from the provider unchanged.
type SubscriptionChanged struct {
	Created                bool
	ExternalSubscriptionID string
	ExternalCustomerID     string
	Status                 string
	PlanInterval           string
	PeriodStart            time.Time
	PeriodEnd              time.Time
	CancelAtPeriodEnd      bool
}

func (p SubscriptionChanged) Kind() EventKind {
	if p.Created {
		return EventKindSubscriptionCreated
	}
	return EventKindSubscriptionUpdated
}
func (SubscriptionChanged) eventPayload() {}

type SubscriptionDeleted struct {
	ExternalSubscriptionID string
}

func (SubscriptionDeleted) Kind() EventKind { return EventKindSubscriptionDeleted }
func (SubscriptionDeleted) eventPayload()   {}

// Other is any provider event type without a handler.
type Other struct {
	Type string
}

func (Other) Kind() EventKind { return EventKindOther }
func (Other) eventPayload()   {}
