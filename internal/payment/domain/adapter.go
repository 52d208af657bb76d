package domain

import (
	"context"
	"net/http"
	"time"
)

type AdapterConfig struct {
	Provider      string
	WebhookSecret string
	Tolerance     time.Duration
}

// Verifier authenticates a raw webhook body and decodes it into a
// VerifiedEvent. It must see the body exactly as received.
type Verifier interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) (*VerifiedEvent, error)
}

type AdapterFactory interface {
	Provider() string
	NewVerifier(cfg AdapterConfig) (Verifier, error)
}
