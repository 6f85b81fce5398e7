package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
	"github.com/kissvdb/kissvdb/internal/kv"
	"github.com/valyala/fasthttp"
)

type fakeKVEngine struct {
	entries map[string]kv.Entry
}

func newFakeKVEngine() *fakeKVEngine {
	return &fakeKVEngine{entries: make(map[string]kv.Entry)}
}

func (f *fakeKVEngine) PutState(key string, value json.RawMessage, ttlMS int64, ifRevision *uint64) (kv.Entry, event.Offset, error) {
	existing, ok := f.entries[key]
	if ifRevision != nil {
		if !ok || existing.Revision != *ifRevision {
			return kv.Entry{}, 0, kerrors.Conflictf("kv: revision mismatch for %q", key)
		}
	}
	entry := kv.Entry{Value: value, Revision: existing.Revision + 1}
	f.entries[key] = entry
	return entry, 0, nil
}

func (f *fakeKVEngine) GetState(key string) (kv.Entry, bool) {
	e, ok := f.entries[key]
	return e, ok
}

func (f *fakeKVEngine) DeleteState(key string) (bool, event.Offset, error) {
	if _, ok := f.entries[key]; !ok {
		return false, 0, nil
	}
	delete(f.entries, key)
	return true, 0, nil
}

func (f *fakeKVEngine) ListState(prefix string, limit int) []kv.KeyEntry {
	var out []kv.KeyEntry
	for k, e := range f.entries {
		out = append(out, kv.KeyEntry{Key: k, Entry: e})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func dispatchJSON(t *testing.T, r *Router, method, path string, body []byte) *RequestContext {
	t.Helper()
	rc := &fasthttp.RequestCtx{}
	rc.Request.Header.SetMethod(method)
	rc.Request.SetRequestURI(path)
	if body != nil {
		rc.Request.SetBody(body)
	}
	ctx := NewRequestContext(rc, "test-request")
	if !r.Dispatch(ctx, method, path) {
		t.Fatalf("expected a route to match %s %s", method, path)
	}
	return ctx
}

func TestRegisterKV_PutGetDelete(t *testing.T) {
	r := NewRouter()
	RegisterKV(r, newFakeKVEngine())

	putCtx := dispatchJSON(t, r, "PUT", "/v1/kv/k1", []byte(`{"value":"v1"}`))
	if putCtx.Response.StatusCode() != 200 {
		t.Fatalf("expected 200, got %d: %s", putCtx.Response.StatusCode(), putCtx.Response.Body())
	}

	getCtx := dispatchJSON(t, r, "GET", "/v1/kv/k1", nil)
	if getCtx.Response.StatusCode() != 200 {
		t.Fatalf("expected 200, got %d", getCtx.Response.StatusCode())
	}
	var got stateResponse
	if err := json.Unmarshal(getCtx.Response.Body(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", got.Revision)
	}

	delCtx := dispatchJSON(t, r, "DELETE", "/v1/kv/k1", nil)
	if delCtx.Response.StatusCode() != 200 {
		t.Fatalf("expected 200, got %d", delCtx.Response.StatusCode())
	}

	missingCtx := dispatchJSON(t, r, "GET", "/v1/kv/k1", nil)
	if missingCtx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", missingCtx.Response.StatusCode())
	}
}

func TestRegisterKV_Batch(t *testing.T) {
	r := NewRouter()
	RegisterKV(r, newFakeKVEngine())

	body := []byte(`{"operations":[{"key":"a","value":"1"},{"key":"b","value":"2"}]}`)
	ctx := dispatchJSON(t, r, "POST", "/v1/kv/batch", body)
	if ctx.Response.StatusCode() != 200 {
		t.Fatalf("expected 200, got %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}

	var resp struct {
		Results []batchResult `json:"results"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Results) != 2 || !resp.Results[0].OK || !resp.Results[1].OK {
		t.Fatalf("unexpected batch results: %+v", resp.Results)
	}
}
