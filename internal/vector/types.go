// Package vector is KissVDB's Vector Collection engine (spec §4.3): each
// collection owns its own append-only record file, manifest, segmented
// approximate-nearest-neighbor index, metadata filter index, and
// tombstone accounting.
package vector

import (
	"encoding/json"
	"math"

	"github.com/kissvdb/kissvdb/internal/event"
)

// Metric selects the scoring function. Immutable after a collection is
// created (spec §3).
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

func (m Metric) Valid() bool {
	return m == MetricCosine || m == MetricDot
}

// SegmentCapacity bounds how many live+tombstoned items a single segment
// holds before it is frozen and a new active segment is opened (spec
// §4.3 capacity planning: "~8192 points keeps ANN rebuild cost small").
const SegmentCapacity = 8192

// MaxANNCandidates is the largest candidate set a metadata filter may
// produce for search to score it exactly, bypassing ANN; larger sets go
// through ANN with the filter applied to its results (spec §4.3 step 3).
const MaxANNCandidates = 512

// Descriptor is a collection's manifest content (spec §3).
type Descriptor struct {
	Name          string       `json:"name"`
	Dim           int          `json:"dim"`
	Metric        Metric       `json:"metric"`
	AppliedOffset event.Offset `json:"applied_offset"`
	LiveCount     int          `json:"live_count"`
	TotalRecords  int          `json:"total_records"`
	UpsertCount   int          `json:"upsert_count"`
	FileLen       int64        `json:"file_len"`
	CreatedAtMS   int64        `json:"created_at_ms"`
	UpdatedAtMS   int64        `json:"updated_at_ms"`
}

// Item is a vector record held in memory.
type Item struct {
	ID   string
	Vec  []float32
	Meta map[string]json.RawMessage
}

// Hit is one search result.
type Hit struct {
	ID    string
	Score float32
	Meta  map[string]json.RawMessage
}

// normalize returns a new, L2-normalized copy of v. A zero vector is
// returned unchanged (its norm is 0 so normalizing would divide by zero).
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// score computes the configured metric between a and b. For MetricDot,
// both vectors are assumed already L2-normalized at ingest, so a plain
// dot product equals cosine similarity (spec §4.3/§3). For MetricCosine,
// the normalization is applied inline so raw stored vectors still yield a
// true cosine score.
func score(metric Metric, a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if metric == MetricDot {
		return float32(dot)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
