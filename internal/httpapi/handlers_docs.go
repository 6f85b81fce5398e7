package httpapi

import (
	"encoding/json"

	"github.com/kissvdb/kissvdb/internal/docstore"
	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
	"github.com/kissvdb/kissvdb/internal/kv"
)

// DocEngine is the subset of *engine.Engine the document handlers need.
type DocEngine interface {
	PutDocument(collection, id string, value json.RawMessage, ifRevision *uint64) (kv.Entry, event.Offset, error)
	GetDocument(collection, id string) (kv.Entry, bool)
	DeleteDocument(collection, id string) (bool, event.Offset, error)
	ListDocuments(collection string, limit int) []docstore.DocEntry
}

type putDocumentRequest struct {
	Value      json.RawMessage `json:"value"`
	IfRevision *uint64         `json:"if_revision"`
}

type documentResponse struct {
	ID        string          `json:"id"`
	Value     json.RawMessage `json:"value"`
	Revision  uint64          `json:"revision"`
	ExpiresAt *int64          `json:"expires_at,omitempty"`
}

func docEntryResponse(id string, e kv.Entry) documentResponse {
	return documentResponse{ID: id, Value: e.Value, Revision: e.Revision, ExpiresAt: e.ExpiresAt}
}

// RegisterDocs mounts the thin document-view routes (spec §4.7 / §6).
func RegisterDocs(r *Router, eng DocEngine) {
	r.PUT("/v1/docs/:collection/:id", func(ctx *RequestContext) error {
		var req putDocumentRequest
		if err := ctx.BindJSON(&req); err != nil {
			return err
		}
		collection, id := ctx.Param("collection"), ctx.Param("id")
		entry, _, err := eng.PutDocument(collection, id, req.Value, req.IfRevision)
		if err != nil {
			return err
		}
		return ctx.JSON(200, docEntryResponse(id, entry))
	})

	r.GET("/v1/docs/:collection/:id", func(ctx *RequestContext) error {
		collection, id := ctx.Param("collection"), ctx.Param("id")
		entry, ok := eng.GetDocument(collection, id)
		if !ok {
			return kerrors.NotFoundf("docstore: %q/%q not found", collection, id)
		}
		return ctx.JSON(200, docEntryResponse(id, entry))
	})

	r.DELETE("/v1/docs/:collection/:id", func(ctx *RequestContext) error {
		collection, id := ctx.Param("collection"), ctx.Param("id")
		existed, _, err := eng.DeleteDocument(collection, id)
		if err != nil {
			return err
		}
		if !existed {
			return kerrors.NotFoundf("docstore: %q/%q not found", collection, id)
		}
		return ctx.JSON(200, map[string]bool{"deleted": true})
	})

	r.GET("/v1/docs/:collection", func(ctx *RequestContext) error {
		collection := ctx.Param("collection")
		limit := queryInt(ctx, "limit", 100)
		docs := eng.ListDocuments(collection, limit)
		out := make([]documentResponse, 0, len(docs))
		for _, d := range docs {
			out = append(out, docEntryResponse(d.ID, d.Entry))
		}
		return ctx.JSON(200, map[string]interface{}{"items": out})
	})
}
