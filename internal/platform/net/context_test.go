package net

import (
	"context"
	"testing"
)

func TestRequestID(t *testing.T) {
	if RequestID(context.Background()) != "" {
		t.Fatalf("expected empty id")
	}
	ctx := WithRequestID(context.Background(), "req-42")
	if got := RequestID(ctx); got != "req-42" {
		t.Fatalf("RequestID = %q", got)
	}
	if WithRequestID(ctx, "") != ctx {
		t.Fatalf("empty id should not wrap ctx")
	}
}
