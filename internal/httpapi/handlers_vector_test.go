package httpapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kissvdb/kissvdb/internal/config"
	"github.com/kissvdb/kissvdb/internal/engine"
	"github.com/kissvdb/kissvdb/internal/logging"
	"github.com/valyala/fasthttp"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.SnapshotIntervalSeconds = 0
	e, err := engine.Open(cfg, logging.Default())
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { e.Shutdown(context.Background()) })
	return e
}

func TestRegisterVector_CreateUpsertSearch(t *testing.T) {
	r := NewRouter()
	eng := newTestEngine(t)
	RegisterVector(r, eng)

	createCtx := dispatchJSON(t, r, "POST", "/v1/collections", []byte(`{"name":"docs","dim":3,"metric":"cosine"}`))
	if createCtx.Response.StatusCode() != 201 {
		t.Fatalf("expected 201, got %d: %s", createCtx.Response.StatusCode(), createCtx.Response.Body())
	}

	upsertCtx := dispatchJSON(t, r, "PUT", "/v1/collections/docs/vectors/a", []byte(`{"vec":[1,0,0]}`))
	if upsertCtx.Response.StatusCode() != 200 {
		t.Fatalf("expected 200, got %d: %s", upsertCtx.Response.StatusCode(), upsertCtx.Response.Body())
	}

	searchCtx := dispatchJSON(t, r, "POST", "/v1/collections/docs/search", []byte(`{"vec":[1,0,0],"k":5}`))
	if searchCtx.Response.StatusCode() != 200 {
		t.Fatalf("expected 200, got %d: %s", searchCtx.Response.StatusCode(), searchCtx.Response.Body())
	}
	var resp struct {
		Items []hitResponse `json:"items"`
	}
	if err := json.Unmarshal(searchCtx.Response.Body(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "a" {
		t.Fatalf("unexpected search result: %+v", resp.Items)
	}
}

func TestRegisterVector_UnknownCollectionIs404(t *testing.T) {
	r := NewRouter()
	RegisterVector(r, newTestEngine(t))

	ctx := dispatchJSON(t, r, "GET", "/v1/collections/missing", nil)
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", ctx.Response.StatusCode())
	}
}
