// Package domain defines the outcome of applying one verified billing event
// to the record store.
package domain

import (
	"context"
	"errors"

	paymentdomain "github.com/smallbiznis/coursepass/internal/payment/domain"
)

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeIgnored Outcome = "ignored"
	OutcomeFailed  Outcome = "failed"
)

// Ignored reasons. Ignored is a success at the webhook boundary.
const (
	ReasonDuplicateCheckout    = "duplicate_checkout"
	ReasonDuplicateEvent       = "duplicate_event"
	ReasonStaleEvent           = "stale_event"
	ReasonUnhandledEventType   = "unhandled_event_type"
	ReasonSubscriptionCheckout = "subscription_checkout"
)

// Result is Applied, Ignored(Reason) or Failed(Err). Err is set only for
// failures.
type Result struct {
	Outcome Outcome
	Reason  string
	Err     error
}

func Applied() Result {
	return Result{Outcome: OutcomeApplied}
}

func Ignored(reason string) Result {
	return Result{Outcome: OutcomeIgnored, Reason: reason}
}

// Failed wraps err. The reason is the sentinel code when err is a known
// consistency fault and internal_error otherwise.
func Failed(err error) Result {
	reason := "internal_error"
	for _, fault := range consistencyFaults {
		if errors.Is(err, fault) {
			reason = fault.Error()
			break
		}
	}
	return Result{Outcome: OutcomeFailed, Reason: reason, Err: err}
}

func (r Result) IsApplied() bool { return r.Outcome == OutcomeApplied }
func (r Result) IsIgnored() bool { return r.Outcome == OutcomeIgnored }
func (r Result) IsFailed() bool  { return r.Outcome == OutcomeFailed }

// IsConsistencyFault reports whether a failure came from the event and the
// stored records disagreeing, as opposed to an infrastructure error.
func (r Result) IsConsistencyFault() bool {
	if !r.IsFailed() {
		return false
	}
	for _, fault := range consistencyFaults {
		if errors.Is(r.Err, fault) {
			return true
		}
	}
	return false
}

func (r Result) String() string {
	if r.Reason == "" {
		return string(r.Outcome)
	}
	return string(r.Outcome) + "(" + r.Reason + ")"
}

type Service interface {
	// Apply runs to a terminal result once started; callers should detach it
	// from request cancellation.
	Apply(ctx context.Context, event paymentdomain.VerifiedEvent) Result
}
