// Package event defines the single record type that flows through
// KissVDB's write path: every mutation, once applied, becomes exactly one
// Event at exactly one Offset, in the same order it was durably
// persisted. Log, Event Bus, Subscription and the KV/Vector appliers all
// share this type so there is one wire shape end to end.
package event

import "encoding/json"

// Offset is the process-wide monotonic, dense mutation index.
type Offset uint64

// Kind is the event kind tag (spec §3).
type Kind string

const (
	KindStateUpdated  Kind = "state_updated"
	KindStateDeleted  Kind = "state_deleted"
	KindVectorAdded   Kind = "vector_added"
	KindVectorUpserted Kind = "vector_upserted"
	KindVectorUpdated Kind = "vector_updated"
	KindVectorDeleted Kind = "vector_deleted"
	KindGap           Kind = "gap"
	KindProgress      Kind = "progress"
	KindLog           Kind = "log"
)

// TTLOrigin is the DeleteOrigin value for a TTL-sweep delete. Nothing in
// the write path sets it.
const TTLOrigin = "ttl"

// Event is the unit published by the Event Bus and replayed from the Log.
type Event struct {
	Offset       Offset          `json:"offset"`
	Kind         Kind            `json:"kind"`
	Key          string          `json:"key,omitempty"`
	Collection   string          `json:"collection,omitempty"`
	ID           string          `json:"id,omitempty"`
	Revision     uint64          `json:"revision,omitempty"`
	Patch        json.RawMessage `json:"patch,omitempty"`
	TimestampMS  int64           `json:"timestamp_ms"`

	// DeleteOrigin is a field for telling explicit deletes from TTL-sweep
	// deletes on state_deleted events. Bus.DeleteState leaves it empty, so
	// both kinds of delete produce the same event.
	DeleteOrigin string `json:"delete_origin,omitempty"`

	// Gap-only fields (spec §3: "gap is synthesized by the subscription
	// layer, never persisted").
	FromOffset Offset `json:"from_offset,omitempty"`
	ToOffset   Offset `json:"to_offset,omitempty"`
	Dropped    uint64 `json:"dropped,omitempty"`
}

// IsGap reports whether this is a synthetic gap event.
func (e Event) IsGap() bool { return e.Kind == KindGap }

// Encode renders the event as a single JSON line (no trailing newline).
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a single JSON-encoded event line.
func Decode(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
