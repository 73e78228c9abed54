package services_test

import (
	"context"
	"testing"

	"oshimaint/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithCommand(ctx, "locations clean")
	ctx = services.WithTable(ctx, "locations")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if command, ok := services.CommandFromContext(ctx); !ok || command != "locations clean" {
		t.Fatalf("unexpected command: %v %v", command, ok)
	}
	if table, ok := services.TableFromContext(ctx); !ok || table != "locations" {
		t.Fatalf("unexpected table: %v %v", table, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "")
	ctx = services.WithTable(ctx, "")
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id value")
	}
	if _, ok := services.TableFromContext(ctx); ok {
		t.Fatal("expected no table value")
	}
}
