package middleware

import (
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kissvdb/kissvdb/internal/httpapi"
)

func TestTracing_WrapsHandlerAndPropagatesResult(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")
	called := false
	h := Tracing(tracer)(func(ctx *httpapi.RequestContext) error {
		called = true
		return nil
	})

	ctx := newCtx("GET", "/v1/kv/a")
	if err := h(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("expected the wrapped handler to run")
	}
}

func TestTracing_RecordsHandlerError(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")
	wantErr := testErrBoom{}
	h := Tracing(tracer)(func(ctx *httpapi.RequestContext) error {
		return wantErr
	})

	ctx := newCtx("GET", "/v1/kv/a")
	if err := h(ctx); err != wantErr {
		t.Fatalf("expected the handler's error to propagate unchanged, got %v", err)
	}
}
