package context

import (
	"context"
	"testing"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "evt-corr")
	ctx, id := EnsureCorrelationID(ctx)
	if id != "evt-corr" {
		t.Fatalf("expected existing id, got %q", id)
	}
	if CorrelationIDFromContext(ctx) != "evt-corr" {
		t.Fatalf("expected id on context")
	}
}

func TestEnsureCorrelationIDGenerates(t *testing.T) {
	ctx, id := EnsureCorrelationID(context.Background())
	if len(id) != 26 {
		t.Fatalf("expected ulid, got %q", id)
	}
	if CorrelationIDFromContext(ctx) != id {
		t.Fatalf("expected generated id on context")
	}
}

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), ActorUser, " 42 ")
	kind, id := ActorFromContext(ctx)
	if kind != ActorUser || id != "42" {
		t.Fatalf("unexpected actor %q %q", kind, id)
	}
	if kind, id := ActorFromContext(context.Background()); kind != "" || id != "" {
		t.Fatalf("expected empty actor")
	}
}
