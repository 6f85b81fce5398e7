package httpapi

import (
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/kissvdb/kissvdb/internal/kerrors"
)

func newTestContext(method, path string) *RequestContext {
	rc := &fasthttp.RequestCtx{}
	rc.Request.Header.SetMethod(method)
	rc.Request.SetRequestURI(path)
	return NewRequestContext(rc, "test-request")
}

func TestRouter_Dispatch_MatchesParams(t *testing.T) {
	r := NewRouter()
	var gotParam string
	r.GET("/v1/kv/:key", func(ctx *RequestContext) error {
		gotParam = ctx.Param("key")
		return ctx.JSON(200, map[string]string{"ok": "yes"})
	})

	ctx := newTestContext("GET", "/v1/kv/hello")
	matched := r.Dispatch(ctx, "GET", "/v1/kv/hello")
	if !matched {
		t.Fatalf("expected route to match")
	}
	if gotParam != "hello" {
		t.Fatalf("expected param key=hello, got %q", gotParam)
	}
	if ctx.Response.StatusCode() != 200 {
		t.Fatalf("expected status 200, got %d", ctx.Response.StatusCode())
	}
}

func TestRouter_Dispatch_NoMatch(t *testing.T) {
	r := NewRouter()
	r.GET("/v1/kv/:key", func(ctx *RequestContext) error { return nil })

	ctx := newTestContext("GET", "/v1/other")
	if r.Dispatch(ctx, "GET", "/v1/other") {
		t.Fatalf("expected no route to match")
	}
}

func TestRouter_Dispatch_HandlerErrorWritesErrorBody(t *testing.T) {
	r := NewRouter()
	r.GET("/v1/boom", func(ctx *RequestContext) error {
		return kerrors.NotFoundf("boom: missing")
	})

	ctx := newTestContext("GET", "/v1/boom")
	if !r.Dispatch(ctx, "GET", "/v1/boom") {
		t.Fatalf("expected route to match")
	}
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", ctx.Response.StatusCode())
	}
}

func TestRouter_Use_AppliesMiddlewareInOrder(t *testing.T) {
	r := NewRouter()
	var order []string
	r.Use(func(next Handler) Handler {
		return func(ctx *RequestContext) error {
			order = append(order, "outer")
			return next(ctx)
		}
	}, func(next Handler) Handler {
		return func(ctx *RequestContext) error {
			order = append(order, "inner")
			return next(ctx)
		}
	})
	r.GET("/v1/ping", func(ctx *RequestContext) error {
		order = append(order, "handler")
		return nil
	})

	ctx := newTestContext("GET", "/v1/ping")
	r.Dispatch(ctx, "GET", "/v1/ping")

	want := []string{"outer", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("unexpected call order: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected call order: %v", order)
		}
	}
}
