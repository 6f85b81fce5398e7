// Package engine wires together the Log, Snapshot, State Engine, Vector
// Collections, Event Bus, Subscription, and document store into the
// single running instance spec §1 describes, including the startup
// recovery sequence (spec §4.2: "load snapshot, then replay the WAL past
// last_applied_offset, then replay each vector collection's own file
// against its manifest").
package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/kissvdb/kissvdb/internal/config"
	"github.com/kissvdb/kissvdb/internal/docstore"
	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/eventbus"
	"github.com/kissvdb/kissvdb/internal/kerrors"
	"github.com/kissvdb/kissvdb/internal/kv"
	"github.com/kissvdb/kissvdb/internal/logging"
	"github.com/kissvdb/kissvdb/internal/reactor"
	"github.com/kissvdb/kissvdb/internal/snapshot"
	"github.com/kissvdb/kissvdb/internal/vector"
	"github.com/kissvdb/kissvdb/internal/wal"
)

// Engine is the running instance: the wired components plus the
// background reactor driving TTL sweep and periodic snapshots. Vacuum is
// not scheduled here; it runs only through VacuumCollection.
type Engine struct {
	cfg *config.Server
	log logging.Logger

	dataDir  string
	ephemeral bool

	store   wal.Log
	kvStore *kv.Store
	vectors *vector.Store
	bus     *eventbus.Bus
	docs    *docstore.Store

	reactor *reactor.Reactor
}

// Open performs the full recovery sequence and returns a ready Engine.
func Open(cfg *config.Server, log logging.Logger) (*Engine, error) {
	dataDir := cfg.DataDir
	ephemeral := dataDir == ""

	// Vector collections are always file-backed (each is its own source
	// of truth replayed from vectors.bin, spec §4.3); in the no-DataDir
	// deployment mode they still need somewhere to live, so they get a
	// scratch directory that is removed on Shutdown.
	if ephemeral {
		tmp, err := os.MkdirTemp("", "kissvdb-")
		if err != nil {
			return nil, kerrors.IOErrorf("engine: create ephemeral data dir: %v", err)
		}
		dataDir = tmp
	}

	var walLog wal.Log
	if ephemeral {
		walLog = wal.OpenMemory()
	} else {
		var err error
		walLog, err = wal.Open(wal.Config{
			Dir:               filepath.Join(dataDir, "wal"),
			MaxSegmentBytes:   cfg.WALSegmentMaxBytes,
			RetentionSegments: cfg.WALRetentionSegments,
		})
		if err != nil {
			return nil, err
		}
	}

	kvStore := kv.New()
	vectorStore, err := vector.Open(dataDir)
	if err != nil {
		return nil, err
	}

	if !ephemeral {
		if _, err := replayKVFromWAL(dataDir, walLog, kvStore); err != nil {
			return nil, err
		}
	}

	bus := eventbus.New(walLog, kvStore, vectorStore, cfg.LiveBroadcastCapacity)
	docs := docstore.New(bus, kvStore)

	e := &Engine{
		cfg:       cfg,
		log:       log,
		dataDir:   dataDir,
		ephemeral: ephemeral,
		store:     walLog,
		kvStore:   kvStore,
		vectors:   vectorStore,
		bus:       bus,
		docs:      docs,
		reactor:   reactor.New(reactor.Options{}),
	}
	e.reactor.Start()
	e.scheduleBackgroundTasks()
	return e, nil
}

// replayKVFromWAL loads the snapshot (if any) and replays WAL events after its
// last_applied_offset into the KV store. Vector collections replay their
// own vectors.bin files entirely on vector.Open/OpenCollection, since
// that file is each collection's sole source of truth (spec §4.3); here
// we only need to fast-forward the KV view.
func replayKVFromWAL(dataDir string, log wal.Log, kvStore *kv.Store) (event.Offset, error) {
	doc, ok, err := snapshot.Load(dataDir)
	if err != nil {
		return 0, err
	}
	var from event.Offset
	if ok {
		restored := make(map[string]kv.Entry, len(doc.KV))
		for k, e := range doc.KV {
			restored[k] = kv.Entry{Value: e.Value, Revision: e.Revision, ExpiresAt: e.ExpiresAt}
		}
		kvStore.Restore(restored)
		from = doc.LastAppliedOffset + 1
	}

	events, err := log.ReadFrom(from, 0)
	if err != nil {
		return 0, err
	}
	var last event.Offset
	for _, ev := range events {
		switch ev.Kind {
		case event.KindStateUpdated:
			kvStore.ApplyPut(ev.Key, ev.Patch, ev.Revision, nil)
		case event.KindStateDeleted:
			kvStore.ApplyDelete(ev.Key)
		}
		last = ev.Offset
	}
	return last, nil
}

func (e *Engine) scheduleBackgroundTasks() {
	interval := time.Duration(e.cfg.SnapshotIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	e.reactor.SetPeriodic(interval, func() {
		if err := e.Checkpoint(); err != nil {
			e.log.Errorf("engine: periodic checkpoint failed: %v", err)
		}
	})
	e.reactor.SetPeriodic(time.Minute, func() {
		e.sweepExpired()
	})
}

func (e *Engine) sweepExpired() {
	now := nowMS()
	for _, key := range e.kvStore.ExpiredKeys(now) {
		if _, _, err := e.bus.DeleteState(key, now); err != nil {
			e.log.Warnf("engine: ttl sweep: delete %q: %v", key, err)
		}
	}
}

// Checkpoint writes the KV snapshot and every vector collection's
// manifest, then prunes WAL segments already covered (spec §4.2).
func (e *Engine) Checkpoint() error {
	latest, ok := e.bus.LatestOffset()
	if !ok {
		return nil
	}
	doc := snapshot.Document{
		LastAppliedOffset: latest,
		KV:                make(map[string]snapshot.KVEntry),
	}
	for k, entry := range e.kvStore.Snapshot() {
		doc.KV[k] = snapshot.KVEntry{Value: entry.Value, Revision: entry.Revision, ExpiresAt: entry.ExpiresAt}
	}
	for _, ref := range e.vectors.CollectionRefs() {
		doc.Collections = append(doc.Collections, snapshot.CollectionRef{Name: ref.Name, AppliedOffset: ref.AppliedOffset})
	}
	if err := snapshot.Write(e.dataDir, doc); err != nil {
		return err
	}
	if err := e.vectors.SaveManifests(); err != nil {
		return err
	}
	return e.store.TruncateThrough(latest)
}

// Shutdown performs a final checkpoint (spec §4.2: "on clean shutdown")
// and releases every open file.
func (e *Engine) Shutdown(ctx context.Context) error {
	if err := e.Checkpoint(); err != nil {
		e.log.Errorf("engine: shutdown checkpoint failed: %v", err)
	}
	_ = e.reactor.Stop(ctx)
	if err := e.vectors.Close(); err != nil {
		e.log.Errorf("engine: close vector store: %v", err)
	}
	if err := e.store.Close(); err != nil {
		e.log.Errorf("engine: close wal: %v", err)
	}
	if e.ephemeral {
		_ = os.RemoveAll(e.dataDir)
	}
	return nil
}

func nowMS() int64 { return time.Now().UnixMilli() }
