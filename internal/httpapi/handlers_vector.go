package httpapi

import (
	"encoding/json"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
	"github.com/kissvdb/kissvdb/internal/vector"
)

// VectorEngine is the subset of *engine.Engine the vector handlers need.
type VectorEngine interface {
	CreateCollection(name string, dim int, metric vector.Metric) (vector.Descriptor, error)
	ListCollections() []vector.Descriptor
	GetCollection(name string) (vector.Descriptor, bool)
	UpsertVector(collection, id string, vec []float32, meta map[string]json.RawMessage) (event.Offset, error)
	DeleteVector(collection, id string) (bool, event.Offset, error)
	GetVector(collection, id string) (vector.Item, bool, error)
	SearchVectors(collection string, query []float32, filter map[string]json.RawMessage, k int) ([]vector.Hit, error)
	VacuumCollection(collection string) error
}

type createCollectionRequest struct {
	Name   string        `json:"name"`
	Dim    int           `json:"dim"`
	Metric vector.Metric `json:"metric"`
}

type upsertVectorRequest struct {
	Vec  []float32                  `json:"vec"`
	Meta map[string]json.RawMessage `json:"meta"`
}

type vectorResponse struct {
	ID   string                     `json:"id"`
	Vec  []float32                  `json:"vec"`
	Meta map[string]json.RawMessage `json:"meta,omitempty"`
}

type searchRequest struct {
	Vec    []float32                  `json:"vec"`
	Filter map[string]json.RawMessage `json:"filter"`
	K      int                        `json:"k"`
}

type hitResponse struct {
	ID    string                     `json:"id"`
	Score float32                    `json:"score"`
	Meta  map[string]json.RawMessage `json:"meta,omitempty"`
}

// RegisterVector mounts the vector collection routes (spec §4.3 / §6).
func RegisterVector(r *Router, eng VectorEngine) {
	r.POST("/v1/collections", func(ctx *RequestContext) error {
		var req createCollectionRequest
		if err := ctx.BindJSON(&req); err != nil {
			return err
		}
		if req.Metric == "" {
			req.Metric = vector.MetricCosine
		}
		if !req.Metric.Valid() {
			return kerrors.InvalidArgumentf("vector: unknown metric %q", req.Metric)
		}
		desc, err := eng.CreateCollection(req.Name, req.Dim, req.Metric)
		if err != nil {
			return err
		}
		return ctx.JSON(201, desc)
	})

	r.GET("/v1/collections", func(ctx *RequestContext) error {
		return ctx.JSON(200, map[string]interface{}{"items": eng.ListCollections()})
	})

	r.GET("/v1/collections/:name", func(ctx *RequestContext) error {
		desc, ok := eng.GetCollection(ctx.Param("name"))
		if !ok {
			return kerrors.NotFoundf("vector: collection %q not found", ctx.Param("name"))
		}
		return ctx.JSON(200, desc)
	})

	r.POST("/v1/collections/:name/vacuum", func(ctx *RequestContext) error {
		if err := eng.VacuumCollection(ctx.Param("name")); err != nil {
			return err
		}
		return ctx.JSON(200, map[string]bool{"vacuumed": true})
	})

	r.PUT("/v1/collections/:name/vectors/:id", func(ctx *RequestContext) error {
		var req upsertVectorRequest
		if err := ctx.BindJSON(&req); err != nil {
			return err
		}
		name, id := ctx.Param("name"), ctx.Param("id")
		if _, err := eng.UpsertVector(name, id, req.Vec, req.Meta); err != nil {
			return err
		}
		return ctx.JSON(200, vectorResponse{ID: id, Vec: req.Vec, Meta: req.Meta})
	})

	r.GET("/v1/collections/:name/vectors/:id", func(ctx *RequestContext) error {
		name, id := ctx.Param("name"), ctx.Param("id")
		item, ok, err := eng.GetVector(name, id)
		if err != nil {
			return err
		}
		if !ok {
			return kerrors.NotFoundf("vector: id %q not found in collection %q", id, name)
		}
		return ctx.JSON(200, vectorResponse{ID: item.ID, Vec: item.Vec, Meta: item.Meta})
	})

	r.DELETE("/v1/collections/:name/vectors/:id", func(ctx *RequestContext) error {
		name, id := ctx.Param("name"), ctx.Param("id")
		existed, _, err := eng.DeleteVector(name, id)
		if err != nil {
			return err
		}
		if !existed {
			return kerrors.NotFoundf("vector: id %q not found in collection %q", id, name)
		}
		return ctx.JSON(200, map[string]bool{"deleted": true})
	})

	r.POST("/v1/collections/:name/vectors/batch_upsert", func(ctx *RequestContext) error {
		var req struct {
			Items []struct {
				ID   string                     `json:"id"`
				Vec  []float32                  `json:"vec"`
				Meta map[string]json.RawMessage `json:"meta"`
			} `json:"items"`
		}
		if err := ctx.BindJSON(&req); err != nil {
			return err
		}
		name := ctx.Param("name")
		results := make([]batchResult, len(req.Items))
		for i, it := range req.Items {
			if _, err := eng.UpsertVector(name, it.ID, it.Vec, it.Meta); err != nil {
				results[i] = batchResult{Key: it.ID, Error: errorTag(err), Message: err.Error()}
				continue
			}
			results[i] = batchResult{Key: it.ID, OK: true}
		}
		return ctx.JSON(200, map[string]interface{}{"results": results})
	})

	r.POST("/v1/collections/:name/vectors/batch_delete", func(ctx *RequestContext) error {
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := ctx.BindJSON(&req); err != nil {
			return err
		}
		name := ctx.Param("name")
		results := make([]batchResult, len(req.IDs))
		for i, id := range req.IDs {
			existed, _, err := eng.DeleteVector(name, id)
			if err != nil {
				results[i] = batchResult{Key: id, Error: errorTag(err), Message: err.Error()}
				continue
			}
			results[i] = batchResult{Key: id, OK: existed}
		}
		return ctx.JSON(200, map[string]interface{}{"results": results})
	})

	r.POST("/v1/collections/:name/search", func(ctx *RequestContext) error {
		var req searchRequest
		if err := ctx.BindJSON(&req); err != nil {
			return err
		}
		if req.K <= 0 {
			req.K = 10
		}
		hits, err := eng.SearchVectors(ctx.Param("name"), req.Vec, req.Filter, req.K)
		if err != nil {
			return err
		}
		out := make([]hitResponse, 0, len(hits))
		for _, h := range hits {
			out = append(out, hitResponse{ID: h.ID, Score: h.Score, Meta: h.Meta})
		}
		return ctx.JSON(200, map[string]interface{}{"items": out})
	})
}
