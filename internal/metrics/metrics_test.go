package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRecordHTTPRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordHTTPRequest("GET", "/v1/kv/a", "200", 5*time.Millisecond)

	got, err := m.HTTPRequestsTotal.GetMetricWithLabelValues("GET", "/v1/kv/a", "200")
	if err != nil {
		t.Fatalf("get metric: %v", err)
	}
	if v := counterValue(t, got); v != 1 {
		t.Fatalf("expected counter value 1, got %v", v)
	}
}

func TestRecordKVOp(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordKVOp("put", "ok")
	m.RecordKVOp("put", "ok")
	m.RecordKVOp("get", "not_found")

	got, err := m.KVOperations.GetMetricWithLabelValues("put", "ok")
	if err != nil {
		t.Fatalf("get metric: %v", err)
	}
	if v := counterValue(t, got); v != 2 {
		t.Fatalf("expected put/ok count 2, got %v", v)
	}
}

func TestRecordVectorSearch(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordVectorSearch("docs", "ann", 2*time.Millisecond)

	got, err := m.VectorSearchTotal.GetMetricWithLabelValues("docs", "ann")
	if err != nil {
		t.Fatalf("get metric: %v", err)
	}
	if v := counterValue(t, got); v != 1 {
		t.Fatalf("expected search count 1, got %v", v)
	}
}

func TestGet_ReturnsSameInstance(t *testing.T) {
	a := Get()
	b := Get()
	if a != b {
		t.Fatalf("expected Get to return the same process-wide instance")
	}
}
