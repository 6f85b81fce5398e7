package tracing

import (
	"context"
	"testing"
)

func TestNoop_ReturnsUsableTracer(t *testing.T) {
	p := Noop()
	if p.Tracer() == nil {
		t.Fatalf("expected a non-nil tracer")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown on a noop provider should be a no-op: %v", err)
	}
}

func TestNew_DisabledReturnsNoop(t *testing.T) {
	p, err := New(context.Background(), "kissvdb-test", Config{Enabled: false})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.Tracer() == nil {
		t.Fatalf("expected a non-nil tracer even when disabled")
	}
}

func TestNew_StdoutExporter(t *testing.T) {
	p, err := New(context.Background(), "kissvdb-test", Config{Enabled: true, Exporter: "stdout"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer p.Shutdown(context.Background())
	if p.Tracer() == nil {
		t.Fatalf("expected a non-nil tracer")
	}
}

func TestNew_UnknownExporter(t *testing.T) {
	if _, err := New(context.Background(), "kissvdb-test", Config{Enabled: true, Exporter: "bogus"}); err == nil {
		t.Fatalf("expected an error for an unknown exporter")
	}
}
