package domain

import "context"

// EventLocker serializes concurrent deliveries of one provider event.
type EventLocker interface {
	Acquire(ctx context.Context, provider, eventID string) (release func(), acquired bool, err error)
}
