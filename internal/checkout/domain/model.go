// Package domain describes how learners are sent to the payment processor to
// buy a course, start a plan, or manage billing.
package domain

import (
	"context"
	"time"
)

// Metadata keys attached to every checkout session. The webhook side reads
// the same keys back.
const (
	MetadataUserID   = "userId"
	MetadataCourseID = "courseId"
)

type CourseCheckoutRequest struct {
	UserID   string
	CourseID string
}

type PlanCheckoutRequest struct {
	UserID string
	PlanID string
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type CustomerRequest struct {
	UserID string
	Email  string
	Name   string
}

// LineItem is an ad hoc price built from a course row.
type LineItem struct {
	Name       string
	ImageURL   string
	UnitAmount int64
	Currency   string
}

type SessionRequest struct {
	Mode                 string
	CustomerID           string
	SuccessURL           string
	CancelURL            string
	PriceID              string
	LineItem             *LineItem
	Metadata             map[string]string
	SubscriptionMetadata map[string]string
}

// Gateway is the processor API used to start checkouts.
type Gateway interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// Limiter throttles checkout creation per user.
type Limiter interface {
	Allow(ctx context.Context, userID string) (bool, time.Duration, error)
}

type Service interface {
	CreateCourseCheckout(ctx context.Context, req CourseCheckoutRequest) (*Session, error)
	CreatePlanCheckout(ctx context.Context, req PlanCheckoutRequest) (*Session, error)
	CreateBillingPortal(ctx context.Context, userID string) (string, error)
}
