package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/coursepass/internal/config"
	"github.com/smallbiznis/coursepass/internal/observability/metrics"
	"go.uber.org/zap"
)

const keyCheckoutUser = "checkout-rate-limit:%s"

// CheckoutLimiter throttles checkout session creation per user. It fails open
// when Redis is unavailable.
type CheckoutLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewCheckoutLimiter(cfg config.Config, client *redis.Client, m *metrics.Metrics, log *zap.Logger) (*CheckoutLimiter, error) {
	limiter := &CheckoutLimiter{
		metrics: m,
		log:     log.Named("ratelimit.checkout"),
	}
	if !cfg.RateLimit.Enabled || client == nil {
		return limiter, nil
	}
	if cfg.RateLimit.CheckoutRate <= 0 || cfg.RateLimit.CheckoutBurst <= 0 {
		return nil, fmt.Errorf("checkout rate limit must be positive")
	}

	limiter.enabled = true
	limiter.bucket = NewTokenBucket(client)
	limiter.rate = cfg.RateLimit.CheckoutRate
	limiter.burst = cfg.RateLimit.CheckoutBurst
	return limiter, nil
}

func (l *CheckoutLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *CheckoutLimiter) Allow(ctx context.Context, userID string) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyCheckoutUser, strings.TrimSpace(userID)), l.rate, l.burst)
	if err != nil {
		l.log.Warn("checkout rate limiter unavailable, allowing request", zap.Error(err))
		return true, 0, nil
	}
	if !res.Allowed {
		l.metrics.RecordRateLimitDenied(ctx, "checkout")
		return false, res.RetryAfter, nil
	}
	return true, 0, nil
}
