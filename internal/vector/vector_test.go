package vector

import "testing"

func TestStore_CreateAndUpsertAndSearch(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	col, err := s.Create("docs", 3, MetricCosine, 0)
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	plan, err := col.StageUpsert("a", []float32{1, 0, 0}, nil)
	if err != nil {
		t.Fatalf("stage upsert: %v", err)
	}
	if err := col.CommitUpsert(plan, 0, 0); err != nil {
		t.Fatalf("commit upsert: %v", err)
	}
	plan2, err := col.StageUpsert("b", []float32{0, 1, 0}, nil)
	if err != nil {
		t.Fatalf("stage upsert 2: %v", err)
	}
	if err := col.CommitUpsert(plan2, 1, 0); err != nil {
		t.Fatalf("commit upsert 2: %v", err)
	}

	hits, err := col.Search([]float32{1, 0, 0}, nil, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Fatalf("expected top hit to be id a, got %+v", hits)
	}

	if col.Descriptor().LiveCount != 2 {
		t.Fatalf("expected live count 2, got %d", col.Descriptor().LiveCount)
	}
}

func TestStore_CreateDuplicateName(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := s.Create("docs", 3, MetricCosine, 0); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.Create("docs", 3, MetricCosine, 0); err == nil {
		t.Fatalf("expected conflict error for duplicate collection name")
	}
}

func TestCollection_DeleteAndVacuum(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	col, err := s.Create("docs", 2, MetricDot, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	plan, _ := col.StageUpsert("a", []float32{1, 0}, nil)
	_ = col.CommitUpsert(plan, 0, 0)

	delPlan := col.StageDelete("a")
	if !delPlan.existed {
		t.Fatalf("expected delete plan to find the record")
	}
	if err := col.CommitDelete(delPlan, 1, 0); err != nil {
		t.Fatalf("commit delete: %v", err)
	}
	if _, ok := col.Get("a"); ok {
		t.Fatalf("expected record to be gone after delete")
	}

	if err := col.Vacuum(0); err != nil {
		t.Fatalf("vacuum: %v", err)
	}
	if col.Descriptor().LiveCount != 0 {
		t.Fatalf("expected live count 0 after vacuum, got %d", col.Descriptor().LiveCount)
	}
}

func TestMetric_Valid(t *testing.T) {
	if !MetricCosine.Valid() || !MetricDot.Valid() {
		t.Fatalf("expected known metrics to validate")
	}
	if Metric("euclidean").Valid() {
		t.Fatalf("expected unknown metric to be invalid")
	}
}
