package services_test

import (
	"context"
	"testing"

	"shuttle/internal/services"
)

func TestContextAnnotations(t *testing.T) {
	ctx := context.Background()
	if _, ok := services.BatchFromContext(ctx); ok {
		t.Fatal("expected no batch on fresh context")
	}

	ctx = services.WithBatch(ctx, "2026-01-02__03-04-05")
	ctx = services.WithUser(ctx, "alice")
	ctx = services.WithRequestID(ctx, "req-42")

	if stamp, ok := services.BatchFromContext(ctx); !ok || stamp != "2026-01-02__03-04-05" {
		t.Fatalf("batch = %q, %v", stamp, ok)
	}
	if user, ok := services.UserFromContext(ctx); !ok || user != "alice" {
		t.Fatalf("user = %q, %v", user, ok)
	}
	if id, ok := services.RequestIDFromContext(ctx); !ok || id != "req-42" {
		t.Fatalf("request id = %q, %v", id, ok)
	}
}

func TestEmptyValuesDoNotAnnotate(t *testing.T) {
	ctx := services.WithUser(context.Background(), "")
	if _, ok := services.UserFromContext(ctx); ok {
		t.Fatal("empty user must not annotate context")
	}
}
