// Package vector also defines Collection, which owns one named vector
// collection's full on-disk and in-memory lifecycle: manifest, segmented
// ANN index, metadata filter index, and the durable vectors.bin record
// file segments are replayed from on recovery (spec §4.3).
package vector

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
)

const (
	manifestFile = "manifest.json"
	recordsFile  = "vectors.bin"
)

// Collection is one named vector collection.
type Collection struct {
	mu   sync.RWMutex
	dir  string
	desc Descriptor

	segments []*segment
	idToSeg  map[string]int // id -> index into segments
	meta     *metaIndex

	file *os.File
}

// UpsertPlan is the staged effect of an Upsert call.
type UpsertPlan struct {
	id       string
	vec      []float32
	meta     map[string]json.RawMessage
	segIdx   int
	isUpdate bool
}

// DeletePlan is the staged effect of a Delete call.
type DeletePlan struct {
	id     string
	segIdx int
	existed bool
}

// Create initializes a brand-new collection directory with dim/metric
// fixed for the collection's lifetime (spec §3: "Dim and Metric are
// immutable after creation").
func Create(baseDir, name string, dim int, metric Metric, nowMS int64) (*Collection, error) {
	if !metric.Valid() {
		return nil, kerrors.InvalidArgumentf("vector: invalid metric %q", metric)
	}
	if dim <= 0 {
		return nil, kerrors.InvalidArgumentf("vector: dim must be positive")
	}
	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kerrors.IOErrorf("vector: create collection dir: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, recordsFile), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, kerrors.IOErrorf("vector: create records file: %v", err)
	}

	c := &Collection{
		dir: dir,
		desc: Descriptor{
			Name:        name,
			Dim:         dim,
			Metric:      metric,
			CreatedAtMS: nowMS,
			UpdatedAtMS: nowMS,
		},
		idToSeg: make(map[string]int),
		meta:    newMetaIndex(),
		file:    f,
	}
	c.segments = append(c.segments, newSegment(metric))
	if err := c.saveManifestLocked(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return c, nil
}

// OpenCollection loads an existing collection directory, replaying vectors.bin in
// full to rebuild the in-memory segments and metadata index (the manifest
// stores only summary counters and the high-water applied offset; the
// record file is the sole source of truth for vector data, spec §4.3).
func OpenCollection(baseDir, name string) (*Collection, error) {
	dir := filepath.Join(baseDir, name)
	mdata, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, kerrors.IOErrorf("vector: read manifest: %v", err)
	}
	var desc Descriptor
	if err := json.Unmarshal(mdata, &desc); err != nil {
		return nil, kerrors.IOErrorf("vector: corrupt manifest: %v", err)
	}

	c := &Collection{
		dir:     dir,
		desc:    desc,
		idToSeg: make(map[string]int),
		meta:    newMetaIndex(),
	}
	c.segments = append(c.segments, newSegment(desc.Metric))

	path := filepath.Join(dir, recordsFile)
	rf, err := os.Open(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, kerrors.IOErrorf("vector: open records file: %v", err)
	}
	var maxOffset event.Offset
	var fileLen int64
	if rf != nil {
		for {
			rec, n, rerr := readRecord(rf)
			if rerr == io.EOF {
				break
			}
			if rerr == io.ErrUnexpectedEOF {
				// Truncate the malformed trailing record, matching the
				// WAL's final-segment recovery policy.
				break
			}
			if rerr != nil {
				_ = rf.Close()
				return nil, rerr
			}
			fileLen += n
			c.applyRecord(rec)
			if rec.Offset > maxOffset {
				maxOffset = rec.Offset
			}
		}
		_ = rf.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, kerrors.IOErrorf("vector: reopen records file: %v", err)
	}
	if fileLen > 0 {
		if err := f.Truncate(fileLen); err != nil {
			_ = f.Close()
			return nil, kerrors.IOErrorf("vector: truncate malformed tail: %v", err)
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return nil, kerrors.IOErrorf("vector: seek records file: %v", err)
		}
	}
	c.file = f
	c.desc.FileLen = fileLen
	if maxOffset > c.desc.AppliedOffset {
		c.desc.AppliedOffset = maxOffset
	}
	return c, nil
}

// applyRecord replays one record into the in-memory index during Open,
// bypassing the capacity checks a live Upsert would perform (the record
// file already reflects decisions that were valid when written).
func (c *Collection) applyRecord(rec record) {
	switch rec.Op {
	case opUpsert:
		segIdx, isUpdate := c.idToSeg[rec.ID]
		if isUpdate {
			if old, ok := c.segments[segIdx].Get(rec.ID); ok {
				c.meta.Remove(rec.ID, old.Meta)
			}
			_ = c.segments[segIdx].Replace(rec.ID, rec.Vec, rec.Meta)
		} else {
			segIdx = c.activeSegmentIndex()
			_ = c.segments[segIdx].Insert(rec.ID, rec.Vec, rec.Meta)
			c.idToSeg[rec.ID] = segIdx
		}
		c.meta.Add(rec.ID, rec.Meta)
	case opDelete:
		if segIdx, ok := c.idToSeg[rec.ID]; ok {
			if it, ok := c.segments[segIdx].Get(rec.ID); ok {
				c.meta.Remove(rec.ID, it.Meta)
			}
			c.segments[segIdx].Remove(rec.ID)
			delete(c.idToSeg, rec.ID)
		}
	}
}

// activeSegmentIndex returns the last segment if it has room, else opens
// a fresh one.
func (c *Collection) activeSegmentIndex() int {
	last := c.segments[len(c.segments)-1]
	if !last.Full() {
		return len(c.segments) - 1
	}
	c.segments = append(c.segments, newSegment(c.desc.Metric))
	return len(c.segments) - 1
}

// IsUpdate reports whether the staged upsert replaces an id already live
// in the collection, versus inserting a brand-new one.
func (p UpsertPlan) IsUpdate() bool { return p.isUpdate }

// StageUpsert validates dim and normalizes the vector for dot-metric
// collections, without mutating any state.
func (c *Collection) StageUpsert(id string, vec []float32, meta map[string]json.RawMessage) (UpsertPlan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(vec) != c.desc.Dim {
		return UpsertPlan{}, kerrors.InvalidArgumentf("vector: upsert %q: expected dim %d, got %d", id, c.desc.Dim, len(vec))
	}
	stored := vec
	if c.desc.Metric == MetricDot {
		stored = normalize(vec)
	}
	segIdx, isUpdate := c.idToSeg[id]
	if !isUpdate {
		segIdx = -1
	}
	return UpsertPlan{id: id, vec: stored, meta: meta, segIdx: segIdx, isUpdate: isUpdate}, nil
}

// CommitUpsert appends the record to disk and then applies it to the
// in-memory index. offset is the event's global WAL offset, recorded so
// recovery can tell how far this collection has been applied.
func (c *Collection) CommitUpsert(p UpsertPlan, offset event.Offset, nowMS int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := writeRecord(c.file, record{Op: opUpsert, Offset: offset, ID: p.id, Vec: p.vec, Meta: p.meta})
	if err != nil {
		return err
	}
	if err := c.file.Sync(); err != nil {
		return kerrors.IOErrorf("vector: sync records file: %v", err)
	}

	if p.isUpdate {
		old, _ := c.segments[p.segIdx].Get(p.id)
		c.meta.Remove(p.id, old.Meta)
		if err := c.segments[p.segIdx].Replace(p.id, p.vec, p.meta); err != nil {
			return err
		}
	} else {
		segIdx := c.activeSegmentIndex()
		if err := c.segments[segIdx].Insert(p.id, p.vec, p.meta); err != nil {
			return err
		}
		c.idToSeg[p.id] = segIdx
		c.desc.LiveCount++
	}
	c.meta.Add(p.id, p.meta)

	c.desc.FileLen += n
	c.desc.TotalRecords++
	c.desc.UpsertCount++
	c.desc.AppliedOffset = offset
	c.desc.UpdatedAtMS = nowMS
	return nil
}

// StageDelete computes whether id currently exists.
func (c *Collection) StageDelete(id string) DeletePlan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	segIdx, ok := c.idToSeg[id]
	return DeletePlan{id: id, segIdx: segIdx, existed: ok}
}

// Existed reports whether the delete plan found a live id.
func (p DeletePlan) Existed() bool { return p.existed }

// CommitDelete appends a tombstone record and applies it in memory.
func (c *Collection) CommitDelete(p DeletePlan, offset event.Offset, nowMS int64) error {
	if !p.existed {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := writeRecord(c.file, record{Op: opDelete, Offset: offset, ID: p.id})
	if err != nil {
		return err
	}
	if err := c.file.Sync(); err != nil {
		return kerrors.IOErrorf("vector: sync records file: %v", err)
	}

	if it, ok := c.segments[p.segIdx].Get(p.id); ok {
		c.meta.Remove(p.id, it.Meta)
	}
	c.segments[p.segIdx].Remove(p.id)
	delete(c.idToSeg, p.id)

	c.desc.FileLen += n
	c.desc.TotalRecords++
	c.desc.LiveCount--
	c.desc.AppliedOffset = offset
	c.desc.UpdatedAtMS = nowMS
	return nil
}

// Get returns id's item if live.
func (c *Collection) Get(id string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	segIdx, ok := c.idToSeg[id]
	if !ok {
		return Item{}, false
	}
	return c.segments[segIdx].Get(id)
}

// Descriptor returns a copy of the collection's manifest content.
func (c *Collection) Descriptor() Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.desc
}

// Search runs a top-k search over the collection, applying an optional
// equality filter over top-level metadata fields (spec §4.3 steps 1-3):
// filtered candidate sets at or below MaxANNCandidates are scored
// exactly; larger sets still traverse the ANN graph per segment with
// post-filtering.
func (c *Collection) Search(query []float32, filter map[string]json.RawMessage, k int) ([]Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(query) != c.desc.Dim {
		return nil, kerrors.InvalidArgumentf("vector: search: expected dim %d, got %d", c.desc.Dim, len(query))
	}
	q := query
	if c.desc.Metric == MetricDot {
		q = normalize(query)
	}

	if len(filter) == 0 {
		return c.searchUnfiltered(q, k), nil
	}

	candidates, ok := c.meta.Candidates(filter)
	if !ok {
		return nil, nil
	}
	if len(candidates) <= MaxANNCandidates {
		return c.searchExact(candidates, q, k), nil
	}
	return c.searchFilteredANN(candidates, q, k), nil
}

func (c *Collection) searchUnfiltered(q []float32, k int) []Hit {
	var all []Hit
	for _, seg := range c.segments {
		all = append(all, seg.SearchANN(q, k)...)
	}
	return topK(all, k)
}

func (c *Collection) searchExact(candidates map[string]struct{}, q []float32, k int) []Hit {
	perSeg := make([]map[string]struct{}, len(c.segments))
	for id := range candidates {
		segIdx, ok := c.idToSeg[id]
		if !ok {
			continue
		}
		if perSeg[segIdx] == nil {
			perSeg[segIdx] = make(map[string]struct{})
		}
		perSeg[segIdx][id] = struct{}{}
	}
	var all []Hit
	for i, seg := range c.segments {
		if len(perSeg[i]) == 0 {
			continue
		}
		all = append(all, seg.SearchExact(perSeg[i], q, k)...)
	}
	return topK(all, k)
}

func (c *Collection) searchFilteredANN(candidates map[string]struct{}, q []float32, k int) []Hit {
	overfetch := k * 8
	if overfetch < k {
		overfetch = k
	}
	var all []Hit
	for _, seg := range c.segments {
		for _, h := range seg.SearchANN(q, overfetch) {
			if _, ok := candidates[h.ID]; ok {
				all = append(all, h)
			}
		}
	}
	return topK(all, k)
}

func topK(hits []Hit, k int) []Hit {
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

// Vacuum rewrites vectors.bin from only the currently live items, freeing
// space occupied by tombstoned records and rebuilding segments/metadata
// index from scratch (spec §4.3: offline compaction).
func (c *Collection) Vacuum(nowMS int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	type liveItem struct {
		id   string
		item Item
	}
	var live []liveItem
	for _, seg := range c.segments {
		for _, id := range seg.IDs() {
			it, ok := seg.Get(id)
			if ok {
				live = append(live, liveItem{id: id, item: it})
			}
		}
	}

	tmpPath := filepath.Join(c.dir, recordsFile+".vacuum")
	tf, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return kerrors.IOErrorf("vector: vacuum: create temp file: %v", err)
	}

	newSegments := []*segment{newSegment(c.desc.Metric)}
	newIdToSeg := make(map[string]int)
	newMeta := newMetaIndex()
	var fileLen int64

	for _, li := range live {
		n, err := writeRecord(tf, record{Op: opUpsert, Offset: c.desc.AppliedOffset, ID: li.id, Vec: li.item.Vec, Meta: li.item.Meta})
		if err != nil {
			_ = tf.Close()
			return err
		}
		fileLen += n

		last := newSegments[len(newSegments)-1]
		if last.Full() {
			newSegments = append(newSegments, newSegment(c.desc.Metric))
			last = newSegments[len(newSegments)-1]
		}
		if err := last.Insert(li.id, li.item.Vec, li.item.Meta); err != nil {
			_ = tf.Close()
			return err
		}
		newIdToSeg[li.id] = len(newSegments) - 1
		newMeta.Add(li.id, li.item.Meta)
	}

	if err := tf.Sync(); err != nil {
		_ = tf.Close()
		return kerrors.IOErrorf("vector: vacuum: sync temp file: %v", err)
	}
	if err := tf.Close(); err != nil {
		return kerrors.IOErrorf("vector: vacuum: close temp file: %v", err)
	}
	if err := c.file.Close(); err != nil {
		return kerrors.IOErrorf("vector: vacuum: close old records file: %v", err)
	}

	finalPath := filepath.Join(c.dir, recordsFile)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return kerrors.IOErrorf("vector: vacuum: rename into place: %v", err)
	}
	f, err := os.OpenFile(finalPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return kerrors.IOErrorf("vector: vacuum: reopen records file: %v", err)
	}

	c.file = f
	c.segments = newSegments
	c.idToSeg = newIdToSeg
	c.meta = newMeta
	c.desc.FileLen = fileLen
	c.desc.TotalRecords = len(live)
	c.desc.LiveCount = len(live)
	c.desc.UpdatedAtMS = nowMS
	return c.saveManifestLocked()
}

// SaveManifest checkpoints the collection's summary counters to disk.
func (c *Collection) SaveManifest() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saveManifestLocked()
}

func (c *Collection) saveManifestLocked() error {
	data, err := json.MarshalIndent(c.desc, "", "  ")
	if err != nil {
		return kerrors.Internalf("vector: marshal manifest: %v", err)
	}
	tmp := filepath.Join(c.dir, manifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return kerrors.IOErrorf("vector: write manifest: %v", err)
	}
	final := filepath.Join(c.dir, manifestFile)
	if err := os.Rename(tmp, final); err != nil {
		return kerrors.IOErrorf("vector: rename manifest into place: %v", err)
	}
	return nil
}

// Close flushes and closes the collection's records file.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	if err := c.file.Sync(); err != nil {
		return kerrors.IOErrorf("vector: close: sync: %v", err)
	}
	if err := c.file.Close(); err != nil {
		return kerrors.IOErrorf("vector: close: %v", err)
	}
	return nil
}
