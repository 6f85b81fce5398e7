package logging

import (
	"context"
	"testing"
)

func TestWithRequestID_RoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := RequestID(ctx); got != "req-123" {
		t.Fatalf("expected request id req-123, got %q", got)
	}
}

func TestRequestID_AbsentReturnsEmpty(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}

func TestWithFields_MergesWithoutMutatingParent(t *testing.T) {
	base := New(Config{Level: "INFO"}).WithFields(map[string]interface{}{"a": 1})
	child := base.WithFields(map[string]interface{}{"b": 2})

	baseImpl := base.(*logger)
	childImpl := child.(*logger)

	if len(baseImpl.fields) != 1 {
		t.Fatalf("expected parent fields untouched, got %+v", baseImpl.fields)
	}
	if len(childImpl.fields) != 2 || childImpl.fields["a"] != 1 || childImpl.fields["b"] != 2 {
		t.Fatalf("expected child to carry both fields, got %+v", childImpl.fields)
	}
}

func TestWithContext_AttachesRequestIDField(t *testing.T) {
	base := New(Config{Level: "INFO"})
	ctx := WithRequestID(context.Background(), "req-abc")
	withCtx := base.WithContext(ctx).(*logger)

	if withCtx.fields["request_id"] != "req-abc" {
		t.Fatalf("expected request_id field to be set, got %+v", withCtx.fields)
	}
}

func TestNew_DefaultsLevelToInfo(t *testing.T) {
	l := New(Config{}).(*logger)
	if l.minLevel != levelRank["INFO"] {
		t.Fatalf("expected default level INFO, got rank %d", l.minLevel)
	}
}
