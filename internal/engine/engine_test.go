package engine

import (
	"context"
	"testing"

	"github.com/kissvdb/kissvdb/internal/config"
	"github.com/kissvdb/kissvdb/internal/logging"
	"github.com/kissvdb/kissvdb/internal/vector"
)

func testConfig(dataDir string) *config.Server {
	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.SnapshotIntervalSeconds = 0
	return cfg
}

func TestEngine_PutGetDelete(t *testing.T) {
	e, err := Open(testConfig(t.TempDir()), logging.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Shutdown(context.Background())

	entry, _, err := e.PutState("k1", []byte(`"v1"`), 0, nil)
	if err != nil {
		t.Fatalf("put state: %v", err)
	}
	if entry.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", entry.Revision)
	}

	got, ok := e.GetState("k1")
	if !ok || string(got.Value) != `"v1"` {
		t.Fatalf("unexpected get result: ok=%v got=%+v", ok, got)
	}

	existed, _, err := e.DeleteState("k1")
	if err != nil {
		t.Fatalf("delete state: %v", err)
	}
	if !existed {
		t.Fatalf("expected delete to find the key")
	}
}

func TestEngine_CheckpointAndRecover(t *testing.T) {
	dir := t.TempDir()

	e, err := Open(testConfig(dir), logging.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := e.PutState("k1", []byte(`"v1"`), 0, nil); err != nil {
		t.Fatalf("put state: %v", err)
	}
	if err := e.Checkpoint(); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	e2, err := Open(testConfig(dir), logging.Default())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer e2.Shutdown(context.Background())

	got, ok := e2.GetState("k1")
	if !ok || string(got.Value) != `"v1"` {
		t.Fatalf("expected recovered key k1, got ok=%v entry=%+v", ok, got)
	}
}

func TestEngine_VectorLifecycle(t *testing.T) {
	e, err := Open(testConfig(t.TempDir()), logging.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Shutdown(context.Background())

	if _, err := e.CreateCollection("docs", 3, vector.MetricCosine); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := e.UpsertVector("docs", "a", []float32{1, 0, 0}, nil); err != nil {
		t.Fatalf("upsert vector: %v", err)
	}

	hits, err := e.SearchVectors("docs", []float32{1, 0, 0}, nil, 5)
	if err != nil {
		t.Fatalf("search vectors: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Fatalf("expected one hit for id a, got %+v", hits)
	}

	if _, err := e.SearchVectors("missing", nil, nil, 5); err == nil {
		t.Fatalf("expected error for unknown collection")
	}
}

func TestEngine_DocumentLifecycle(t *testing.T) {
	e, err := Open(testConfig(t.TempDir()), logging.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Shutdown(context.Background())

	if _, _, err := e.PutDocument("notes", "1", []byte(`{"a":1}`), nil); err != nil {
		t.Fatalf("put document: %v", err)
	}
	got, ok := e.GetDocument("notes", "1")
	if !ok || string(got.Value) != `{"a":1}` {
		t.Fatalf("unexpected document: ok=%v got=%+v", ok, got)
	}
	list := e.ListDocuments("notes", 0)
	if len(list) != 1 || list[0].ID != "1" {
		t.Fatalf("unexpected document list: %+v", list)
	}
}
