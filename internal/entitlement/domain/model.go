package domain

import "context"

type Reason string

const (
	ReasonSubscription Reason = "subscription"
	ReasonPurchase     Reason = "purchase"
	ReasonNoAccess     Reason = "no_access"
)

// Decision is the answer to "may this user open this course".
type Decision struct {
	Granted bool   `json:"granted"`
	Reason  Reason `json:"reason"`
}

type Service interface {
	// Evaluate decides access for userID. courseID may be empty, in which
	// case only a subscription can grant access.
	Evaluate(ctx context.Context, userID, courseID string) (Decision, error)
}
