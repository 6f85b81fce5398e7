// Package snapshot periodically materializes KV state and per-collection
// vector manifests at a chosen offset so the WAL can be pruned (spec
// §4.2). The write path uses the teacher's temp-file-then-rename
// discipline (seen throughout fluxor's pkg/config Save* helpers and
// pkg/appendlog's segment handling) so readers never observe a partial
// file.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
)

// KVEntry is one persisted key's state.
type KVEntry struct {
	Value      json.RawMessage `json:"value"`
	Revision   uint64          `json:"revision"`
	ExpiresAt  *int64          `json:"expires_at,omitempty"`
}

// CollectionRef points a snapshot at a vector collection's own durable
// files; the vector data itself is not duplicated inside the snapshot
// (spec §4.2: "not duplicated inside the snapshot beyond per-collection
// manifest references").
type CollectionRef struct {
	Name          string `json:"name"`
	AppliedOffset event.Offset `json:"applied_offset"`
}

// Document is the rendered snapshot file.
type Document struct {
	LastAppliedOffset event.Offset         `json:"last_applied_offset"`
	KV                map[string]KVEntry   `json:"kv"`
	Collections       []CollectionRef      `json:"collections"`
}

const fileName = "snapshot.json"

// Write atomically renders doc to dir/snapshot.json via a temp file plus
// rename, so concurrent readers see either the previous complete
// snapshot or the new one, never a partial write.
func Write(dir string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return kerrors.Internalf("snapshot: marshal: %v", err)
	}
	final := filepath.Join(dir, fileName)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return kerrors.IOErrorf("snapshot: write temp file: %v", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return kerrors.IOErrorf("snapshot: rename into place: %v", err)
	}
	return nil
}

// Load reads dir/snapshot.json. A missing file is normal on first boot and
// reports ok=false with a nil error.
func Load(dir string) (doc Document, ok bool, err error) {
	data, rerr := os.ReadFile(filepath.Join(dir, fileName))
	if rerr != nil {
		if os.IsNotExist(rerr) {
			return Document{}, false, nil
		}
		return Document{}, false, kerrors.IOErrorf("snapshot: read: %v", rerr)
	}
	if jerr := json.Unmarshal(data, &doc); jerr != nil {
		return Document{}, false, kerrors.IOErrorf("snapshot: corrupt snapshot file: %v", jerr)
	}
	return doc, true, nil
}
