package domain

import "context"

type Service interface {
	// GetCurrent returns the user's current subscription, or nil when the user
	// has none.
	GetCurrent(ctx context.Context, userID string) (*Subscription, error)
}
