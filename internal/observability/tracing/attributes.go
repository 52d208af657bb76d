package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// Payload and identity data must never reach span attributes.
var forbiddenAttributeKeys = map[attribute.Key]struct{}{
	"email":          {},
	"password":       {},
	"authorization":  {},
	"payload":        {},
	"signature":      {},
	"stripe_secret":  {},
	"webhook_secret": {},
}

// SafeAttributes drops attributes whose key is known to carry sensitive data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := forbiddenAttributeKeys[attribute.Key(strings.ToLower(string(attr.Key)))]; ok {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError strips the message of err down to its first line, capped in
// length, so provider payload fragments do not leak into traces.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return errors.New(msg)
}

// ExtractContext reads upstream trace context from carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
