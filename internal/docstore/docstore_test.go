package docstore

import (
	"testing"

	"github.com/kissvdb/kissvdb/internal/eventbus"
	"github.com/kissvdb/kissvdb/internal/kv"
	"github.com/kissvdb/kissvdb/internal/vector"
	"github.com/kissvdb/kissvdb/internal/wal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kvStore := kv.New()
	vecStore, err := vector.Open(t.TempDir())
	if err != nil {
		t.Fatalf("vector.Open: %v", err)
	}
	bus := eventbus.New(wal.OpenMemory(), kvStore, vecStore, 16)
	return New(bus, kvStore)
}

func TestStore_PutGetDelete(t *testing.T) {
	s := newTestStore(t)

	entry, _, err := s.Put("notes", "1", []byte(`{"title":"hi"}`), 0, nil)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if entry.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", entry.Revision)
	}

	got, ok := s.Get("notes", "1", 0)
	if !ok {
		t.Fatalf("expected document to be found")
	}
	if string(got.Value) != `{"title":"hi"}` {
		t.Fatalf("unexpected document value: %s", got.Value)
	}

	existed, _, err := s.Delete("notes", "1", 0)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !existed {
		t.Fatalf("expected delete to report existed")
	}
	if _, ok := s.Get("notes", "1", 0); ok {
		t.Fatalf("expected document to be gone after delete")
	}
}

func TestStore_Put_RequiresCollectionAndID(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.Put("", "1", []byte(`1`), 0, nil); err == nil {
		t.Fatalf("expected error for empty collection")
	}
	if _, _, err := s.Put("notes", "", []byte(`1`), 0, nil); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestStore_List_ScopedToCollection(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.Put("notes", "1", []byte(`1`), 0, nil); err != nil {
		t.Fatalf("put notes/1: %v", err)
	}
	if _, _, err := s.Put("notes", "2", []byte(`1`), 0, nil); err != nil {
		t.Fatalf("put notes/2: %v", err)
	}
	if _, _, err := s.Put("other", "1", []byte(`1`), 0, nil); err != nil {
		t.Fatalf("put other/1: %v", err)
	}

	got := s.List("notes", 0, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 documents in notes, got %d", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("unexpected ids: %+v", got)
	}
}
