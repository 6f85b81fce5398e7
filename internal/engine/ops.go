package engine

import (
	"encoding/json"
	"time"

	"github.com/kissvdb/kissvdb/internal/docstore"
	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
	"github.com/kissvdb/kissvdb/internal/kv"
	"github.com/kissvdb/kissvdb/internal/metrics"
	"github.com/kissvdb/kissvdb/internal/subscription"
	"github.com/kissvdb/kissvdb/internal/vector"
)

func kvOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(kerrors.KindOf(err))
}

func kvFoundOutcome(found bool) string {
	if found {
		return "ok"
	}
	return "not_found"
}

// PutState writes a KV key (spec §4.4).
func (e *Engine) PutState(key string, value json.RawMessage, ttlMS int64, ifRevision *uint64) (kv.Entry, event.Offset, error) {
	entry, off, err := e.bus.PutState(key, value, ttlMS, nowMS(), ifRevision)
	metrics.Get().RecordKVOp("put", kvOutcome(err))
	metrics.Get().KVKeysLive.Set(float64(e.kvStore.Len()))
	return entry, off, err
}

// GetState reads a KV key.
func (e *Engine) GetState(key string) (kv.Entry, bool) {
	entry, ok := e.kvStore.Get(key, nowMS())
	metrics.Get().RecordKVOp("get", kvFoundOutcome(ok))
	return entry, ok
}

// DeleteState removes a KV key.
func (e *Engine) DeleteState(key string) (bool, event.Offset, error) {
	ok, off, err := e.bus.DeleteState(key, nowMS())
	metrics.Get().RecordKVOp("delete", kvOutcome(err))
	metrics.Get().KVKeysLive.Set(float64(e.kvStore.Len()))
	return ok, off, err
}

// ListState lists KV keys by prefix.
func (e *Engine) ListState(prefix string, limit int) []kv.KeyEntry {
	return e.kvStore.List(prefix, limit, nowMS())
}

// CreateCollection creates a new vector collection.
func (e *Engine) CreateCollection(name string, dim int, metric vector.Metric) (vector.Descriptor, error) {
	col, err := e.vectors.Create(name, dim, metric, nowMS())
	if err != nil {
		return vector.Descriptor{}, err
	}
	metrics.Get().VectorCollections.Set(float64(len(e.vectors.List())))
	return col.Descriptor(), nil
}

// ListCollections returns every collection's descriptor.
func (e *Engine) ListCollections() []vector.Descriptor {
	return e.vectors.List()
}

// GetCollection returns one collection's descriptor.
func (e *Engine) GetCollection(name string) (vector.Descriptor, bool) {
	col, ok := e.vectors.Get(name)
	if !ok {
		return vector.Descriptor{}, false
	}
	return col.Descriptor(), true
}

// UpsertVector adds or replaces a vector record in collection.
func (e *Engine) UpsertVector(collection, id string, vec []float32, meta map[string]json.RawMessage) (event.Offset, error) {
	off, err := e.bus.UpsertVector(collection, id, vec, meta, nowMS())
	e.recordVectorLiveItems(collection)
	return off, err
}

// DeleteVector removes a vector record from collection.
func (e *Engine) DeleteVector(collection, id string) (bool, event.Offset, error) {
	ok, off, err := e.bus.DeleteVector(collection, id, nowMS())
	e.recordVectorLiveItems(collection)
	return ok, off, err
}

func (e *Engine) recordVectorLiveItems(collection string) {
	if col, ok := e.vectors.Get(collection); ok {
		metrics.Get().VectorLiveItems.WithLabelValues(collection).Set(float64(col.Descriptor().LiveCount))
	}
}

// GetVector reads a single vector record.
func (e *Engine) GetVector(collection, id string) (vector.Item, bool, error) {
	col, ok := e.vectors.Get(collection)
	if !ok {
		return vector.Item{}, false, notFoundCollection(collection)
	}
	it, ok := col.Get(id)
	return it, ok, nil
}

// SearchVectors runs a top-k search against collection.
func (e *Engine) SearchVectors(collection string, query []float32, filter map[string]json.RawMessage, k int) ([]vector.Hit, error) {
	col, ok := e.vectors.Get(collection)
	if !ok {
		return nil, notFoundCollection(collection)
	}
	start := time.Now()
	path := "unfiltered"
	if len(filter) > 0 {
		path = "filtered"
	}
	hits, err := col.Search(query, filter, k)
	metrics.Get().RecordVectorSearch(collection, path, time.Since(start))
	return hits, err
}

// VacuumCollection compacts a collection's record file.
func (e *Engine) VacuumCollection(collection string) error {
	col, ok := e.vectors.Get(collection)
	if !ok {
		return notFoundCollection(collection)
	}
	if err := col.Vacuum(nowMS()); err != nil {
		return err
	}
	metrics.Get().VectorVacuumTotal.Inc()
	metrics.Get().VectorLiveItems.WithLabelValues(collection).Set(float64(col.Descriptor().LiveCount))
	return nil
}

// PutDocument writes a document (spec §4.7).
func (e *Engine) PutDocument(collection, id string, value json.RawMessage, ifRevision *uint64) (kv.Entry, event.Offset, error) {
	return e.docs.Put(collection, id, value, nowMS(), ifRevision)
}

// GetDocument reads a document.
func (e *Engine) GetDocument(collection, id string) (kv.Entry, bool) {
	return e.docs.Get(collection, id, nowMS())
}

// DeleteDocument removes a document.
func (e *Engine) DeleteDocument(collection, id string) (bool, event.Offset, error) {
	return e.docs.Delete(collection, id, nowMS())
}

// ListDocuments lists documents in collection.
func (e *Engine) ListDocuments(collection string, limit int) []docstore.DocEntry {
	return e.docs.List(collection, limit, nowMS())
}

// Subscribe opens a new Subscription starting at since with filter.
func (e *Engine) Subscribe(since event.Offset, filter subscription.Filter) *subscription.Subscription {
	return subscription.New(e.bus, since, filter)
}

// Bus exposes the underlying Event Bus for alternate transports
// (WebSocket, NATS, the audit mirror) that tail the raw stream
// themselves instead of going through Subscribe.
func (e *Engine) Bus() subscription.Bus {
	return e.bus
}

func notFoundCollection(name string) error {
	return vectorCollectionNotFound{name: name}
}

type vectorCollectionNotFound struct{ name string }

func (e vectorCollectionNotFound) Error() string {
	return "engine: collection \"" + e.name + "\" not found"
}
