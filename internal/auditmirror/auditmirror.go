// Package auditmirror is an optional, off-by-default sink that mirrors
// every event onto a local SQLite table, adapted from fluxor's
// pkg/db.Pool (same sql.Open/DB lifecycle) generalized from a generic
// connection pool onto a single append-only audit table backed by
// mattn/go-sqlite3. Intended for local forensic replay, not as a second
// source of truth: KissVDB's own WAL and collection files remain
// authoritative (spec §4.2/§4.3).
package auditmirror

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
	"github.com/kissvdb/kissvdb/internal/logging"
	"github.com/kissvdb/kissvdb/internal/subscription"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	offset       INTEGER PRIMARY KEY,
	kind         TEXT NOT NULL,
	key          TEXT,
	collection   TEXT,
	id           TEXT,
	revision     INTEGER,
	patch        TEXT,
	timestamp_ms INTEGER NOT NULL
);
`

// Mirror owns the SQLite connection and the goroutine tailing the event
// stream into it.
type Mirror struct {
	db     *sql.DB
	log    logging.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// Open opens (creating if absent) the SQLite database at path and
// ensures the audit table exists.
func Open(path string, log logging.Logger) (*Mirror, error) {
	if path == "" {
		return nil, kerrors.InvalidArgumentf("auditmirror: path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, kerrors.IOErrorf("auditmirror: open %s: %v", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite3 serializes writers; avoid pool contention

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, kerrors.IOErrorf("auditmirror: ping %s: %v", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, kerrors.IOErrorf("auditmirror: create schema: %v", err)
	}
	if log == nil {
		log = logging.Default()
	}
	return &Mirror{db: db, log: log}, nil
}

// Start begins tailing bus from offset 0 and inserting every event.
func (m *Mirror) Start(bus subscription.Bus) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, bus)
}

func (m *Mirror) run(ctx context.Context, bus subscription.Bus) {
	defer close(m.done)
	sub := subscription.New(bus, 0, subscription.Filter{})
	defer sub.Close()
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if ev.IsGap() {
			continue
		}
		if err := m.insert(ev); err != nil {
			m.log.Warnf("auditmirror: insert offset %d: %v", ev.Offset, err)
		}
	}
}

func (m *Mirror) insert(ev event.Event) error {
	_, err := m.db.Exec(
		`INSERT OR REPLACE INTO audit_events (offset, kind, key, collection, id, revision, patch, timestamp_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Offset, string(ev.Kind), ev.Key, ev.Collection, ev.ID, ev.Revision, string(ev.Patch), ev.TimestampMS,
	)
	return err
}

// Stop halts the tailing goroutine and closes the database.
func (m *Mirror) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	m.db.Close()
}
