package vector

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
)

// Store manages every vector collection in a data directory. Each
// collection has its own lock (held inside Collection); Store's own lock
// only protects the name->Collection map itself.
type Store struct {
	baseDir string

	mu          sync.RWMutex
	collections map[string]*Collection
}

// Open opens (or prepares) the vector collections directory and loads
// every existing collection subdirectory found inside it.
func Open(baseDir string) (*Store, error) {
	dir := filepath.Join(baseDir, "vectors")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kerrors.IOErrorf("vector: create collections dir: %v", err)
	}
	s := &Store{baseDir: dir, collections: make(map[string]*Collection)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, kerrors.IOErrorf("vector: list collections dir: %v", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, e.Name(), manifestFile)); err != nil {
			continue
		}
		col, err := OpenCollection(dir, e.Name())
		if err != nil {
			return nil, err
		}
		s.collections[e.Name()] = col
	}
	return s, nil
}

// Create registers a brand-new collection. Returns a conflict error if
// name already exists (spec §3: collection names are unique).
func (s *Store) Create(name string, dim int, metric Metric, nowMS int64) (*Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.collections[name]; exists {
		return nil, kerrors.Conflictf("vector: collection %q already exists", name)
	}
	col, err := Create(s.baseDir, name, dim, metric, nowMS)
	if err != nil {
		return nil, err
	}
	s.collections[name] = col
	return col, nil
}

// Get returns the named collection, or (nil, false) if it does not exist.
func (s *Store) Get(name string) (*Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	return c, ok
}

// List returns every collection's current descriptor, sorted by name.
func (s *Store) List() []Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Descriptor, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, c.Descriptor())
	}
	sortDescriptorsByName(out)
	return out
}

func sortDescriptorsByName(d []Descriptor) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j].Name < d[j-1].Name; j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
}

// SaveManifests checkpoints every collection's manifest, invoked on the
// same interval as the KV snapshot (spec §4.2).
func (s *Store) SaveManifests() error {
	s.mu.RLock()
	cols := make([]*Collection, 0, len(s.collections))
	for _, c := range s.collections {
		cols = append(cols, c)
	}
	s.mu.RUnlock()
	for _, c := range cols {
		if err := c.SaveManifest(); err != nil {
			return err
		}
	}
	return nil
}

// CollectionRef is a (name, applied_offset) pair, matching the shape the
// Snapshot component embeds in its document (spec §4.2) without this
// package needing to import the snapshot package.
type CollectionRef struct {
	Name          string
	AppliedOffset event.Offset
}

// CollectionRefs returns every collection's current (name, applied_offset).
func (s *Store) CollectionRefs() []CollectionRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CollectionRef, 0, len(s.collections))
	for name, c := range s.collections {
		out = append(out, CollectionRef{Name: name, AppliedOffset: c.Descriptor().AppliedOffset})
	}
	return out
}

// Close closes every collection's records file.
func (s *Store) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.collections {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}
