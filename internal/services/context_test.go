package services_test

import (
	"context"
	"testing"

	"mediasuite/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithAgentID(ctx, "video-agent")
	ctx = services.WithMessageID(ctx, "msg-9")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-1" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if agent, ok := services.AgentIDFromContext(ctx); !ok || agent != "video-agent" {
		t.Fatalf("unexpected agent id: %v %v", agent, ok)
	}
	if mid, ok := services.MessageIDFromContext(ctx); !ok || mid != "msg-9" {
		t.Fatalf("unexpected message id: %v %v", mid, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithAgentID(ctx, "")
	ctx = services.WithJobID(ctx, "")
	if _, ok := services.AgentIDFromContext(ctx); ok {
		t.Fatal("expected no agent value")
	}
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job value")
	}
}
