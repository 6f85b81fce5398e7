// Package eventbus is KissVDB's Event Bus (spec §4.5): the single
// serializing gate every mutation passes through. One mutex orders offset
// assignment, the durable WAL append, the in-memory apply, and the live
// fan-out publish, so readers never observe an offset out of order or a
// published event that didn't make it to disk.
//
// Background tasks never take this mutex directly; the one that mutates
// state, the TTL sweep, calls back into the Bus's own DeleteState like
// any other caller, so it queues behind real traffic instead of
// special-casing around it. The bounded live ring buffer here is the
// same non-blocking, drop-on-full fan-out shape as fluxor's
// pkg/bus.localBus.Publish, adapted from per-topic subscriber mailboxes
// to a single offset-addressed ring every subscription tails.
package eventbus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
	"github.com/kissvdb/kissvdb/internal/kv"
	"github.com/kissvdb/kissvdb/internal/metrics"
	"github.com/kissvdb/kissvdb/internal/vector"
	"github.com/kissvdb/kissvdb/internal/wal"
)

// Bus is the single mutation gate for both the KV store and every vector
// collection.
type Bus struct {
	mu  sync.Mutex
	log wal.Log
	kv  *kv.Store
	vec *vector.Store

	ringMu    sync.RWMutex
	ringCond  *sync.Cond
	ring      []event.Event
	ringCap   int
	oldest    event.Offset
	hasOldest bool
	latest    event.Offset
	hasLatest bool
}

// New wires a Bus around an already-open log, KV store, and vector store.
func New(log wal.Log, kvStore *kv.Store, vecStore *vector.Store, ringCapacity int) *Bus {
	if ringCapacity <= 0 {
		ringCapacity = 4096
	}
	b := &Bus{
		log:     log,
		kv:      kvStore,
		vec:     vecStore,
		ring:    make([]event.Event, ringCapacity),
		ringCap: ringCapacity,
	}
	b.ringCond = sync.NewCond(&b.ringMu)
	return b
}

func (b *Bus) publish(ev event.Event) {
	start := time.Now()
	b.ringMu.Lock()
	b.ring[uint64(ev.Offset)%uint64(b.ringCap)] = ev
	b.latest = ev.Offset
	b.hasLatest = true
	if !b.hasOldest {
		b.oldest = ev.Offset
		b.hasOldest = true
	} else if uint64(ev.Offset-b.oldest) >= uint64(b.ringCap) {
		b.oldest = ev.Offset - event.Offset(b.ringCap) + 1
	}
	b.ringCond.Broadcast()
	b.ringMu.Unlock()
	metrics.Get().RecordAppend(time.Since(start), uint64(ev.Offset))
}

// RingGet returns the event at offset if it is still resident in the live
// ring buffer.
func (b *Bus) RingGet(offset event.Offset) (event.Event, bool) {
	b.ringMu.RLock()
	defer b.ringMu.RUnlock()
	if !b.hasLatest || offset > b.latest || offset < b.oldest {
		return event.Event{}, false
	}
	ev := b.ring[uint64(offset)%uint64(b.ringCap)]
	if ev.Offset != offset {
		return event.Event{}, false
	}
	return ev, true
}

// LatestOffset returns the most recently published offset, or (0, false)
// if nothing has been published yet.
func (b *Bus) LatestOffset() (event.Offset, bool) {
	b.ringMu.RLock()
	defer b.ringMu.RUnlock()
	return b.latest, b.hasLatest
}

// OldestRingOffset returns the oldest offset still resident in the ring,
// for subscription gap detection when a replay catches up to the live
// tail.
func (b *Bus) OldestRingOffset() (event.Offset, bool) {
	b.ringMu.RLock()
	defer b.ringMu.RUnlock()
	return b.oldest, b.hasOldest
}

// WaitForAtLeast blocks the calling goroutine until an event at offset
// target or later has been published, or stop is closed. The watcher
// goroutine exits as soon as either happens.
func (b *Bus) WaitForAtLeast(target event.Offset, stop <-chan struct{}) {
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-stop:
			b.ringCond.Broadcast()
		case <-watchDone:
		}
	}()

	b.ringMu.Lock()
	defer b.ringMu.Unlock()
	for !(b.hasLatest && b.latest >= target) {
		select {
		case <-stop:
			return
		default:
		}
		b.ringCond.Wait()
	}
}

// ReadFrom delegates to the underlying WAL for historical replay.
func (b *Bus) ReadFrom(from event.Offset, limit int) ([]event.Event, error) {
	return b.log.ReadFrom(from, limit)
}

func rawJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

// PutState stages, durably appends, and applies a KV put (spec §4.4/§4.5).
func (b *Bus) PutState(key string, value json.RawMessage, ttlMS int64, nowMS int64, ifRevision *uint64) (kv.Entry, event.Offset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	plan, err := b.kv.StagePut(key, value, ttlMS, nowMS, ifRevision)
	if err != nil {
		return kv.Entry{}, 0, err
	}

	offset := b.log.NextOffset()
	ev := event.Event{
		Offset:      offset,
		Kind:        event.KindStateUpdated,
		Key:         key,
		Revision:    plan.NewRevision,
		Patch:       value,
		TimestampMS: nowMS,
	}
	if err := b.log.Append(ev); err != nil {
		return kv.Entry{}, 0, err
	}
	b.kv.Commit(plan)
	b.publish(ev)

	entry, _ := b.kv.Get(key, nowMS)
	return entry, offset, nil
}

// DeleteState stages, durably appends, and applies a KV delete.
func (b *Bus) DeleteState(key string, nowMS int64) (existed bool, offset event.Offset, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	plan := b.kv.StageDelete(key, nowMS)
	if !plan.Existed() {
		return false, 0, nil
	}

	offset = b.log.NextOffset()
	ev := event.Event{
		Offset:      offset,
		Kind:        event.KindStateDeleted,
		Key:         key,
		Revision:    plan.PriorRevision(),
		TimestampMS: nowMS,
	}
	if err := b.log.Append(ev); err != nil {
		return false, 0, err
	}
	b.kv.CommitDelete(plan)
	b.publish(ev)
	return true, offset, nil
}

// UpsertVector stages, durably appends, and applies a vector upsert
// against the named collection.
func (b *Bus) UpsertVector(collection string, id string, vec []float32, meta map[string]json.RawMessage, nowMS int64) (event.Offset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	col, ok := b.vec.Get(collection)
	if !ok {
		return 0, kerrors.NotFoundf("eventbus: collection %q not found", collection)
	}
	plan, err := col.StageUpsert(id, vec, meta)
	if err != nil {
		return 0, err
	}

	kind := event.KindVectorAdded
	if plan.IsUpdate() {
		kind = event.KindVectorUpserted
	}

	offset := b.log.NextOffset()
	ev := event.Event{
		Offset:      offset,
		Kind:        kind,
		Collection:  collection,
		ID:          id,
		Patch:       rawJSON(struct {
			Vec  []float32                  `json:"vec"`
			Meta map[string]json.RawMessage `json:"meta,omitempty"`
		}{Vec: vec, Meta: meta}),
		TimestampMS: nowMS,
	}
	if err := b.log.Append(ev); err != nil {
		return 0, err
	}
	if err := col.CommitUpsert(plan, offset, nowMS); err != nil {
		return 0, kerrors.Internalf("eventbus: vector commit after durable append failed: %v", err)
	}
	b.publish(ev)
	return offset, nil
}

// DeleteVector stages, durably appends, and applies a vector delete.
func (b *Bus) DeleteVector(collection, id string, nowMS int64) (existed bool, offset event.Offset, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	col, ok := b.vec.Get(collection)
	if !ok {
		return false, 0, kerrors.NotFoundf("eventbus: collection %q not found", collection)
	}
	plan := col.StageDelete(id)
	if !plan.Existed() {
		return false, 0, nil
	}

	offset = b.log.NextOffset()
	ev := event.Event{
		Offset:      offset,
		Kind:        event.KindVectorDeleted,
		Collection:  collection,
		ID:          id,
		TimestampMS: nowMS,
	}
	if err := b.log.Append(ev); err != nil {
		return false, 0, err
	}
	if err := col.CommitDelete(plan, offset, nowMS); err != nil {
		return false, 0, kerrors.Internalf("eventbus: vector delete commit after durable append failed: %v", err)
	}
	b.publish(ev)
	return true, offset, nil
}
