// Package docstore is the thin document-store view (spec §4.7): it
// layers a {collection}/{id} addressing convention over the KV State
// Engine rather than maintaining its own storage or event kinds. The
// spec's open question on event-kind sharing is resolved in favor of
// reuse: a document write emits the same state_updated/state_deleted
// events a direct KV put/delete would, keyed "doc:{collection}:{id}", so
// wire consumers never need to special-case document mutations.
package docstore

import (
	"encoding/json"
	"strings"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
	"github.com/kissvdb/kissvdb/internal/kv"
)

const keyPrefix = "doc:"

// Bus is the subset of eventbus.Bus docstore needs.
type Bus interface {
	PutState(key string, value json.RawMessage, ttlMS int64, nowMS int64, ifRevision *uint64) (kv.Entry, event.Offset, error)
	DeleteState(key string, nowMS int64) (existed bool, offset event.Offset, err error)
}

// Store exposes document operations over an eventbus.Bus and the KV
// store it mutates.
type Store struct {
	bus Bus
	kv  *kv.Store
}

func New(bus Bus, kvStore *kv.Store) *Store {
	return &Store{bus: bus, kv: kvStore}
}

func docKey(collection, id string) string {
	return keyPrefix + collection + ":" + id
}

// Put writes a document, reusing KV's CAS semantics.
func (s *Store) Put(collection, id string, value json.RawMessage, nowMS int64, ifRevision *uint64) (kv.Entry, event.Offset, error) {
	if collection == "" || id == "" {
		return kv.Entry{}, 0, kerrors.InvalidArgumentf("docstore: collection and id are required")
	}
	return s.bus.PutState(docKey(collection, id), value, 0, nowMS, ifRevision)
}

// Get reads a document.
func (s *Store) Get(collection, id string, nowMS int64) (kv.Entry, bool) {
	return s.kv.Get(docKey(collection, id), nowMS)
}

// Delete removes a document.
func (s *Store) Delete(collection, id string, nowMS int64) (bool, event.Offset, error) {
	return s.bus.DeleteState(docKey(collection, id), nowMS)
}

// DocEntry pairs a document's id with its entry for List results.
type DocEntry struct {
	ID    string
	Entry kv.Entry
}

// List returns up to limit documents in collection in lexicographic id
// order.
func (s *Store) List(collection string, limit int, nowMS int64) []DocEntry {
	prefix := keyPrefix + collection + ":"
	entries := s.kv.List(prefix, limit, nowMS)
	out := make([]DocEntry, 0, len(entries))
	for _, ke := range entries {
		out = append(out, DocEntry{ID: strings.TrimPrefix(ke.Key, prefix), Entry: ke.Entry})
	}
	return out
}
