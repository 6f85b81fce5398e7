package eventbus

import (
	"testing"

	"github.com/kissvdb/kissvdb/internal/kv"
	"github.com/kissvdb/kissvdb/internal/vector"
	"github.com/kissvdb/kissvdb/internal/wal"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	vecStore, err := vector.Open(t.TempDir())
	if err != nil {
		t.Fatalf("vector.Open: %v", err)
	}
	return New(wal.OpenMemory(), kv.New(), vecStore, 16)
}

func TestBus_PutState_PublishesAndAppends(t *testing.T) {
	b := newTestBus(t)

	entry, off, err := b.PutState("k1", []byte(`"v1"`), 0, 0, nil)
	if err != nil {
		t.Fatalf("put state: %v", err)
	}
	if off != 0 {
		t.Fatalf("expected first offset 0, got %d", off)
	}
	if entry.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", entry.Revision)
	}

	ev, ok := b.RingGet(0)
	if !ok {
		t.Fatalf("expected offset 0 to be resident in the live ring")
	}
	if ev.Key != "k1" {
		t.Fatalf("unexpected ring event: %+v", ev)
	}

	latest, ok := b.LatestOffset()
	if !ok || latest != 0 {
		t.Fatalf("expected latest offset 0, got %d (ok=%v)", latest, ok)
	}
}

func TestBus_DeleteState_NotFoundNoOffset(t *testing.T) {
	b := newTestBus(t)

	existed, _, err := b.DeleteState("missing", 0)
	if err != nil {
		t.Fatalf("delete state: %v", err)
	}
	if existed {
		t.Fatalf("expected delete of missing key to report not existed")
	}
	if _, ok := b.LatestOffset(); ok {
		t.Fatalf("expected no offset to have been assigned")
	}
}

func TestBus_UpsertVector_UnknownCollection(t *testing.T) {
	b := newTestBus(t)
	if _, err := b.UpsertVector("nope", "id1", []float32{1, 2}, nil, 0); err == nil {
		t.Fatalf("expected error for unknown collection")
	}
}

func TestBus_OffsetsAreDenseAndOrdered(t *testing.T) {
	b := newTestBus(t)
	for i := 0; i < 5; i++ {
		_, off, err := b.PutState("k", []byte(`1`), 0, 0, nil)
		if err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
		if int(off) != i {
			t.Fatalf("expected offset %d, got %d", i, off)
		}
	}
}
