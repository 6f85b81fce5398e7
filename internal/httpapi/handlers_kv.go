package httpapi

import (
	"encoding/json"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
	"github.com/kissvdb/kissvdb/internal/kv"
)

// KVEngine is the subset of *engine.Engine the KV handlers need.
type KVEngine interface {
	PutState(key string, value json.RawMessage, ttlMS int64, ifRevision *uint64) (kv.Entry, event.Offset, error)
	GetState(key string) (kv.Entry, bool)
	DeleteState(key string) (bool, event.Offset, error)
	ListState(prefix string, limit int) []kv.KeyEntry
}

type putStateRequest struct {
	Value      json.RawMessage `json:"value"`
	TTLMS      int64           `json:"ttl_ms"`
	IfRevision *uint64         `json:"if_revision"`
}

type stateResponse struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Revision  uint64          `json:"revision"`
	ExpiresAt *int64          `json:"expires_at,omitempty"`
}

func entryResponse(key string, e kv.Entry) stateResponse {
	return stateResponse{Key: key, Value: e.Value, Revision: e.Revision, ExpiresAt: e.ExpiresAt}
}

// RegisterKV mounts the KV routes (spec §4.4 / §6) on r.
func RegisterKV(r *Router, eng KVEngine) {
	r.PUT("/v1/kv/:key", func(ctx *RequestContext) error {
		key := ctx.Param("key")
		var req putStateRequest
		if err := ctx.BindJSON(&req); err != nil {
			return err
		}
		entry, _, err := eng.PutState(key, req.Value, req.TTLMS, req.IfRevision)
		if err != nil {
			return err
		}
		return ctx.JSON(200, entryResponse(key, entry))
	})

	r.GET("/v1/kv/:key", func(ctx *RequestContext) error {
		key := ctx.Param("key")
		entry, ok := eng.GetState(key)
		if !ok {
			return kerrors.NotFoundf("kv: key %q not found", key)
		}
		return ctx.JSON(200, entryResponse(key, entry))
	})

	r.DELETE("/v1/kv/:key", func(ctx *RequestContext) error {
		key := ctx.Param("key")
		existed, _, err := eng.DeleteState(key)
		if err != nil {
			return err
		}
		if !existed {
			return kerrors.NotFoundf("kv: key %q not found", key)
		}
		return ctx.JSON(200, map[string]bool{"deleted": true})
	})

	r.GET("/v1/kv", func(ctx *RequestContext) error {
		prefix := ctx.Query("prefix")
		limit := queryInt(ctx, "limit", 100)
		entries := eng.ListState(prefix, limit)
		out := make([]stateResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, entryResponse(e.Key, e.Entry))
		}
		return ctx.JSON(200, map[string]interface{}{"items": out})
	})

	r.POST("/v1/kv/batch", func(ctx *RequestContext) error {
		var req struct {
			Operations []struct {
				Key        string          `json:"key"`
				Value      json.RawMessage `json:"value"`
				TTLMS      int64           `json:"ttl_ms"`
				IfRevision *uint64         `json:"if_revision"`
			} `json:"operations"`
		}
		if err := ctx.BindJSON(&req); err != nil {
			return err
		}
		// Each operation's success or failure is independent (spec §4.4):
		// one bad CAS in the batch does not fail the rest, and events are
		// emitted in the same order the operations were listed.
		results := make([]batchResult, len(req.Operations))
		for i, op := range req.Operations {
			entry, _, err := eng.PutState(op.Key, op.Value, op.TTLMS, op.IfRevision)
			if err != nil {
				results[i] = batchResult{Key: op.Key, Error: errorTag(err), Message: err.Error()}
				continue
			}
			results[i] = batchResult{Key: op.Key, Revision: entry.Revision, OK: true}
		}
		return ctx.JSON(200, map[string]interface{}{"results": results})
	})
}

type batchResult struct {
	Key      string `json:"key"`
	OK       bool   `json:"ok"`
	Revision uint64 `json:"revision,omitempty"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
}

func errorTag(err error) string {
	return string(kerrors.KindOf(err))
}
