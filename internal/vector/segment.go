package vector

import (
	"encoding/json"
	"sort"

	"github.com/kissvdb/kissvdb/internal/kerrors"
)

// segment owns a bounded shard of a collection's items: an ANN graph for
// approximate search, a flat item table for exact scoring and metadata
// filtering, and the id<->internal-index mapping the graph operates on
// (spec §4.3: "segmented... each segment capped near SegmentCapacity so a
// rebuild stays cheap").
//
// Deletes remove the id from the item table but only tombstone its ANN
// graph node, so segment indices stay stable until the next vacuum.
type segment struct {
	metric Metric

	ann     *annGraph
	items   map[string]Item
	idToIdx map[string]int
	idxToID map[int]string
	nextIdx int

	liveCount int
	full      bool
}

func newSegment(metric Metric) *segment {
	return &segment{
		metric:  metric,
		ann:     newANNGraph(metric),
		items:   make(map[string]Item),
		idToIdx: make(map[string]int),
		idxToID: make(map[int]string),
	}
}

// Full reports whether this segment has reached SegmentCapacity total
// slots (live + tombstoned) and should no longer accept new ids.
func (s *segment) Full() bool {
	return s.nextIdx >= SegmentCapacity
}

// Has reports whether id currently has a live entry in this segment.
func (s *segment) Has(id string) bool {
	_, ok := s.items[id]
	return ok
}

// Insert adds a brand-new id to the segment. The caller must ensure id is
// not already present anywhere in the collection and that the segment is
// not Full.
func (s *segment) Insert(id string, vec []float32, meta map[string]json.RawMessage) error {
	if s.Full() {
		return kerrors.Internalf("vector: segment: insert into full segment")
	}
	idx := s.nextIdx
	s.nextIdx++
	s.idToIdx[id] = idx
	s.idxToID[idx] = id
	s.items[id] = Item{ID: id, Vec: vec, Meta: meta}
	s.ann.Insert(idx, vec)
	s.liveCount++
	return nil
}

// Replace tombstones id's old graph node and inserts a fresh node with the
// new vector/meta, used for upserts of an id already live in this
// segment. It does not change liveCount or consume extra capacity beyond
// the new graph node (the old node stays as a tombstone).
func (s *segment) Replace(id string, vec []float32, meta map[string]json.RawMessage) error {
	oldIdx, ok := s.idToIdx[id]
	if !ok {
		return kerrors.Internalf("vector: segment: replace of unknown id %q", id)
	}
	s.ann.Remove(oldIdx)
	delete(s.idxToID, oldIdx)

	idx := s.nextIdx
	s.nextIdx++
	s.idToIdx[id] = idx
	s.idxToID[idx] = id
	s.items[id] = Item{ID: id, Vec: vec, Meta: meta}
	s.ann.Insert(idx, vec)
	return nil
}

// Remove tombstones id. Returns false if id was not live in this segment.
func (s *segment) Remove(id string) bool {
	idx, ok := s.idToIdx[id]
	if !ok {
		return false
	}
	s.ann.Remove(idx)
	delete(s.items, id)
	delete(s.idToIdx, id)
	delete(s.idxToID, idx)
	s.liveCount--
	return true
}

// Get returns id's item if live in this segment.
func (s *segment) Get(id string) (Item, bool) {
	it, ok := s.items[id]
	return it, ok
}

// SearchANN runs the approximate graph search and maps results back to
// item hits, for the unfiltered or large-candidate-set search path.
func (s *segment) SearchANN(query []float32, k int) []Hit {
	nodes := s.ann.Search(query, k)
	hits := make([]Hit, 0, len(nodes))
	for _, n := range nodes {
		id, ok := s.idxToID[n.idx]
		if !ok {
			continue
		}
		it, ok := s.items[id]
		if !ok {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: n.score, Meta: it.Meta})
	}
	return hits
}

// SearchExact scores query against exactly the given candidate ids that
// are live in this segment, bypassing the ANN graph entirely. Used when a
// metadata filter has narrowed the candidate set to MaxANNCandidates or
// fewer (spec §4.3 step 3).
func (s *segment) SearchExact(candidateIDs map[string]struct{}, query []float32, k int) []Hit {
	var hits []Hit
	for id := range candidateIDs {
		it, ok := s.items[id]
		if !ok {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score(s.metric, query, it.Vec), Meta: it.Meta})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// IDs returns every live id in this segment, for metadata index rebuilds
// during vacuum.
func (s *segment) IDs() []string {
	out := make([]string, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	return out
}

// LiveCount returns the number of non-tombstoned ids in this segment.
func (s *segment) LiveCount() int {
	return s.liveCount
}
