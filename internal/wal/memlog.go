package wal

import (
	"sync"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
)

// memLog is an in-memory Log for the DataDir="" (no persistence)
// deployment mode (spec §6 config surface). It honors the same
// interface contract as fileLog — including the "failed append must not
// advance NextOffset" rule — so callers (the Event Bus, recovery) don't
// need to know which backing they got.
type memLog struct {
	mu         sync.RWMutex
	events     []event.Event
	nextOffset event.Offset
}

// OpenMemory creates a fresh in-memory Log with no prior history.
func OpenMemory() Log {
	return &memLog{}
}

func (l *memLog) Append(ev event.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ev.Offset != l.nextOffset {
		return kerrors.Internalf("wal: out-of-order append: got offset %d, expected %d", ev.Offset, l.nextOffset)
	}
	l.events = append(l.events, ev)
	l.nextOffset++
	return nil
}

func (l *memLog) ReadFrom(from event.Offset, limit int) ([]event.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []event.Event
	for _, ev := range l.events {
		if ev.Offset < from {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (l *memLog) RotateIfNeeded() error { return nil }

func (l *memLog) TruncateThrough(offset event.Offset) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := 0
	for i < len(l.events) && l.events[i].Offset <= offset {
		i++
	}
	l.events = l.events[i:]
	return nil
}

func (l *memLog) RetentionPrune(maxSegments int) error { return nil }

func (l *memLog) NextOffset() event.Offset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextOffset
}

func (l *memLog) Close() error { return nil }

var _ Log = (*memLog)(nil)
