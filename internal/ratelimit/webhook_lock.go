package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/coursepass/internal/config"
	"go.uber.org/zap"
)

const keyWebhookEvent = "webhook:lock:%s:%s"

// EventLock keeps two deliveries of the same provider event from being
// reconciled at the same time across API instances.
type EventLock struct {
	enabled bool
	locker  *Locker
	ttl     time.Duration
	log     *zap.Logger
}

func NewEventLock(cfg config.Config, client *redis.Client, log *zap.Logger) *EventLock {
	lock := &EventLock{log: log.Named("ratelimit.webhook_lock")}
	if !cfg.RateLimit.WebhookLockEnabled || client == nil {
		return lock
	}
	ttl := cfg.RateLimit.WebhookLockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	lock.enabled = true
	lock.locker = NewLocker(client)
	lock.ttl = ttl
	return lock
}

// Acquire returns a release func and whether the caller owns the event. Redis
// failures degrade to an unlocked run.
func (l *EventLock) Acquire(ctx context.Context, provider, eventID string) (func(), bool, error) {
	noop := func() {}
	if l == nil || !l.enabled {
		return noop, true, nil
	}

	key := fmt.Sprintf(keyWebhookEvent, strings.ToLower(strings.TrimSpace(provider)), strings.TrimSpace(eventID))
	token, ok, err := l.locker.TryLock(ctx, key, l.ttl)
	if err != nil {
		l.log.Warn("webhook lock unavailable, continuing without lock", zap.String("key", key), zap.Error(err))
		return noop, true, nil
	}
	if !ok {
		return noop, false, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := l.locker.Release(releaseCtx, key, token); err != nil {
			l.log.Warn("webhook lock release failed", zap.String("key", key), zap.Error(err))
		}
	}, true, nil
}
