package middleware

import (
	"testing"

	"github.com/kissvdb/kissvdb/internal/httpapi"
)

func TestAPIKey_AcceptsCorrectKey(t *testing.T) {
	hash, err := HashAPIKey("operator-secret")
	if err != nil {
		t.Fatalf("hash api key: %v", err)
	}

	called := false
	h := APIKey(APIKeyConfig{Hash: hash})(func(ctx *httpapi.RequestContext) error {
		called = true
		return nil
	})

	ctx := newCtx("GET", "/v1/kv/a")
	ctx.Request.Header.Set("Authorization", "Bearer operator-secret")
	if err := h(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("expected handler to run for a correct key")
	}
}

func TestAPIKey_RejectsWrongKey(t *testing.T) {
	hash, err := HashAPIKey("operator-secret")
	if err != nil {
		t.Fatalf("hash api key: %v", err)
	}

	called := false
	h := APIKey(APIKeyConfig{Hash: hash})(func(ctx *httpapi.RequestContext) error {
		called = true
		return nil
	})

	ctx := newCtx("GET", "/v1/kv/a")
	ctx.Request.Header.Set("Authorization", "Bearer wrong-key")
	if err := h(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("expected handler not to run for a wrong key")
	}
	if ctx.Response.StatusCode() != 401 {
		t.Fatalf("expected 401, got %d", ctx.Response.StatusCode())
	}
}

func TestAPIKey_SkipsConfiguredPaths(t *testing.T) {
	hash, _ := HashAPIKey("operator-secret")
	called := false
	h := APIKey(APIKeyConfig{Hash: hash, SkipPaths: []string{"/metrics"}})(func(ctx *httpapi.RequestContext) error {
		called = true
		return nil
	})

	ctx := newCtx("GET", "/metrics")
	if err := h(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("expected handler to run for a skip-listed path")
	}
}
