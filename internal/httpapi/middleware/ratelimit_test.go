package middleware

import (
	"net"
	"testing"

	"github.com/kissvdb/kissvdb/internal/httpapi"
)

func newCtxFromAddr(addr string) *httpapi.RequestContext {
	ctx := newCtx("GET", "/v1/kv/a")
	ctx.SetRemoteAddr(&net.TCPAddr{IP: net.ParseIP(addr), Port: 1234})
	return ctx
}

func TestRateLimit_AllowsBurstThenRejects(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})(func(ctx *httpapi.RequestContext) error {
		return nil
	})

	for i := 0; i < 2; i++ {
		ctx := newCtxFromAddr("10.0.0.1")
		if err := h(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ctx.Response.StatusCode() == 429 {
			t.Fatalf("expected request %d within burst to be allowed", i)
		}
	}

	ctx := newCtxFromAddr("10.0.0.1")
	if err := h(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Response.StatusCode() != 429 {
		t.Fatalf("expected the request past the burst to be rate limited, got status %d", ctx.Response.StatusCode())
	}
}

func TestRateLimit_TracksClientsSeparately(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})(func(ctx *httpapi.RequestContext) error {
		return nil
	})

	ctxA := newCtxFromAddr("10.0.0.1")
	if err := h(ctxA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctxA.Response.StatusCode() == 429 {
		t.Fatalf("expected first request from client A to be allowed")
	}

	ctxB := newCtxFromAddr("10.0.0.2")
	if err := h(ctxB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctxB.Response.StatusCode() == 429 {
		t.Fatalf("expected first request from a different client to be allowed independently")
	}
}
