package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidUserID      = errors.New("invalid_user_id")
	ErrInvalidCourseID    = errors.New("invalid_course_id")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrCourseNotFound     = errors.New("course_not_found")
	ErrPlanNotFound       = errors.New("plan_not_found")
	ErrNoCustomer         = errors.New("no_billing_customer")
	ErrRateLimited        = errors.New("rate_limited")
	ErrGatewayUnavailable = errors.New("payment_gateway_unavailable")
)

// RateLimitedError carries how long the caller should wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return ErrRateLimited.Error() }

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }
