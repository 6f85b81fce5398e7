// Package wal is KissVDB's segmented, append-only write-ahead log (spec
// §4.1). It durably persists one JSON line per Event, organizes the
// stream into size-bounded segment files whose names sort in append
// order, and serves replay reads across segment boundaries.
//
// Adapted from fluxor's pkg/appendlog.fsStore: the segment-rotation and
// directory-listing discipline is the same, generalized from fixed
// length-prefixed binary frames to newline-delimited JSON (spec calls for
// "a single textual line carrying a self-delimiting structured encoding"),
// and from store-assigned offsets to caller-assigned ones, since spec
// §4.5 has the Event Bus compute the offset before calling Log.append.
package wal

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
)

// Config controls segment sizing and retention.
type Config struct {
	Dir              string
	MaxSegmentBytes  int64
	RetentionSegments int // 0 = unbounded
}

// Log is the Write-Ahead Log contract (spec §4.1).
type Log interface {
	// Append durably writes ev at its already-assigned offset. ev.Offset
	// must be exactly NextOffset(); a failed append must not advance
	// NextOffset().
	Append(ev event.Event) error

	// ReadFrom yields every record with offset >= from, oldest segment
	// first, up to limit records (limit <= 0 means unbounded).
	ReadFrom(from event.Offset, limit int) ([]event.Event, error)

	// RotateIfNeeded closes the active segment and opens a new one if the
	// active segment exceeds MaxSegmentBytes.
	RotateIfNeeded() error

	// TruncateThrough deletes every closed segment whose entire offset
	// range is <= offset; the active segment is never deleted.
	TruncateThrough(offset event.Offset) error

	// RetentionPrune deletes closed segments beyond the most recent
	// maxSegments, regardless of whether they've been snapshotted.
	RetentionPrune(maxSegments int) error

	// NextOffset is max(offset seen) + 1, computed at open time by
	// scanning segments and updated in memory thereafter.
	NextOffset() event.Offset

	Close() error
}

type segmentInfo struct {
	seq  int
	path string
}

type fileLog struct {
	cfg Config

	mu         sync.RWMutex
	closed     bool
	activeSeq  int
	activeFile *os.File
	activeBuf  *bufio.Writer
	activeSize int64
	nextOffset event.Offset
}

const segmentPrefix = "events-"
const segmentSuffix = ".log"

func segmentPath(dir string, seq int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%06d%s", segmentPrefix, seq, segmentSuffix))
}

// Open opens or creates a WAL rooted at cfg.Dir, recovering nextOffset by
// scanning existing segments and discarding any truncated tail record
// (spec §4.1 "Failure semantics").
func Open(cfg Config) (Log, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, kerrors.InvalidArgumentf("wal: dir is required")
	}
	if cfg.MaxSegmentBytes <= 0 {
		cfg.MaxSegmentBytes = 64 << 20
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, kerrors.IOErrorf("wal: mkdir %s: %v", cfg.Dir, err)
	}

	l := &fileLog{cfg: cfg}
	if err := l.recover(); err != nil {
		return nil, err
	}
	return l, nil
}

func listSegments(dir string) ([]segmentInfo, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var segs []segmentInfo
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		base := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
		seq, err := strconv.Atoi(base)
		if err != nil {
			continue
		}
		segs = append(segs, segmentInfo{seq: seq, path: filepath.Join(dir, name)})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].seq < segs[j].seq })
	return segs, nil
}

// recover discovers existing segments, repairs a truncated final-segment
// tail, and opens the active segment for appending.
func (l *fileLog) recover() error {
	segs, err := listSegments(l.cfg.Dir)
	if err != nil {
		return kerrors.IOErrorf("wal: list segments: %v", err)
	}

	var maxOffset event.Offset
	haveOffset := false
	maxSeq := 0
	for i, seg := range segs {
		isFinal := i == len(segs)-1
		last, err := scanSegment(seg.path, isFinal)
		if err != nil {
			return kerrors.IOErrorf("wal: scan segment %s: %v", seg.path, err)
		}
		if last != nil {
			maxOffset = *last
			haveOffset = true
		}
		if seg.seq > maxSeq {
			maxSeq = seg.seq
		}
	}

	l.activeSeq = maxSeq
	if l.activeSeq == 0 {
		l.activeSeq = 1
	}
	if haveOffset {
		l.nextOffset = maxOffset + 1
	} else {
		l.nextOffset = 0
	}

	path := segmentPath(l.cfg.Dir, l.activeSeq)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return kerrors.IOErrorf("wal: open active segment: %v", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return kerrors.IOErrorf("wal: stat active segment: %v", err)
	}
	l.activeFile = f
	l.activeSize = st.Size()
	l.activeBuf = bufio.NewWriterSize(f, 256<<10)
	return nil
}

// scanSegment reads every line of seg, decoding each as an Event. If
// isFinal, a trailing line that fails to parse (or is incomplete, i.e. has
// no terminating newline) is treated as a crash-truncated tail and
// discarded by truncating the file to the last good line's end. In a
// non-final segment, a decode failure is fatal (§4.1: "any decoding
// failure in a non-final segment is fatal and surfaces to operator").
func scanSegment(path string, isFinal bool) (*event.Offset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var last *event.Offset
	pos := 0
	for pos < len(data) {
		nl := bytes.IndexByte(data[pos:], '\n')
		var line []byte
		var lineEnd int
		if nl < 0 {
			// Truncated tail: no newline terminator.
			if !isFinal {
				return nil, fmt.Errorf("truncated record in non-final segment %s", path)
			}
			if err := os.Truncate(path, int64(pos)); err != nil {
				return nil, err
			}
			break
		}
		line = data[pos : pos+nl]
		lineEnd = pos + nl + 1
		if len(bytes.TrimSpace(line)) == 0 {
			pos = lineEnd
			continue
		}
		ev, derr := event.Decode(line)
		if derr != nil {
			if !isFinal {
				return nil, fmt.Errorf("decode failure in non-final segment %s: %w", path, derr)
			}
			if err := os.Truncate(path, int64(pos)); err != nil {
				return nil, err
			}
			break
		}
		off := ev.Offset
		last = &off
		pos = lineEnd
	}
	return last, nil
}

func (l *fileLog) NextOffset() event.Offset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextOffset
}

func (l *fileLog) Append(ev event.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return kerrors.IOErrorf("wal: closed")
	}
	if ev.Offset != l.nextOffset {
		return kerrors.Internalf("wal: out-of-order append: got offset %d, expected %d", ev.Offset, l.nextOffset)
	}

	if err := l.rotateIfNeededLocked(); err != nil {
		return err
	}

	line, err := event.Encode(ev)
	if err != nil {
		return kerrors.InvalidArgumentf("wal: encode event: %v", err)
	}
	line = append(line, '\n')

	if _, err := l.activeBuf.Write(line); err != nil {
		return kerrors.IOErrorf("wal: write: %v", err)
	}
	if err := l.activeBuf.Flush(); err != nil {
		return kerrors.IOErrorf("wal: flush: %v", err)
	}
	if err := l.activeFile.Sync(); err != nil {
		return kerrors.IOErrorf("wal: fsync: %v", err)
	}
	l.activeSize += int64(len(line))
	l.nextOffset++
	return nil
}

func (l *fileLog) rotateIfNeededLocked() error {
	if l.activeSize < l.cfg.MaxSegmentBytes {
		return nil
	}
	return l.rotateLocked()
}

func (l *fileLog) rotateLocked() error {
	if err := l.activeBuf.Flush(); err != nil {
		return kerrors.IOErrorf("wal: flush before rotate: %v", err)
	}
	if err := l.activeFile.Sync(); err != nil {
		return kerrors.IOErrorf("wal: sync before rotate: %v", err)
	}
	if err := l.activeFile.Close(); err != nil {
		return kerrors.IOErrorf("wal: close before rotate: %v", err)
	}
	l.activeSeq++
	f, err := os.OpenFile(segmentPath(l.cfg.Dir, l.activeSeq), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return kerrors.IOErrorf("wal: open new segment: %v", err)
	}
	l.activeFile = f
	l.activeBuf = bufio.NewWriterSize(f, 256<<10)
	l.activeSize = 0
	return nil
}

func (l *fileLog) RotateIfNeeded() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rotateIfNeededLocked()
}

func (l *fileLog) ReadFrom(from event.Offset, limit int) ([]event.Event, error) {
	segs, err := listSegments(l.cfg.Dir)
	if err != nil {
		return nil, kerrors.IOErrorf("wal: list segments: %v", err)
	}

	var out []event.Event
	for _, seg := range segs {
		data, err := os.ReadFile(seg.path)
		if err != nil {
			return nil, kerrors.IOErrorf("wal: read segment %s: %v", seg.path, err)
		}
		pos := 0
		for pos < len(data) {
			nl := bytes.IndexByte(data[pos:], '\n')
			if nl < 0 {
				break
			}
			line := data[pos : pos+nl]
			pos += nl + 1
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			ev, derr := event.Decode(line)
			if derr != nil {
				continue
			}
			if ev.Offset < from {
				continue
			}
			out = append(out, ev)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (l *fileLog) TruncateThrough(offset event.Offset) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	segs, err := listSegments(l.cfg.Dir)
	if err != nil {
		return kerrors.IOErrorf("wal: list segments: %v", err)
	}
	for _, seg := range segs {
		if seg.seq == l.activeSeq {
			continue // never delete the active segment
		}
		last, err := segmentMaxOffset(seg.path)
		if err != nil {
			return kerrors.IOErrorf("wal: scan %s: %v", seg.path, err)
		}
		if last != nil && *last <= offset {
			if err := os.Remove(seg.path); err != nil && !os.IsNotExist(err) {
				return kerrors.IOErrorf("wal: remove %s: %v", seg.path, err)
			}
		}
	}
	return nil
}

func segmentMaxOffset(path string) (*event.Offset, error) {
	return scanSegment(path, true)
}

func (l *fileLog) RetentionPrune(maxSegments int) error {
	if maxSegments <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	segs, err := listSegments(l.cfg.Dir)
	if err != nil {
		return kerrors.IOErrorf("wal: list segments: %v", err)
	}
	var closedSegs []segmentInfo
	for _, seg := range segs {
		if seg.seq != l.activeSeq {
			closedSegs = append(closedSegs, seg)
		}
	}
	if len(closedSegs) <= maxSegments {
		return nil
	}
	toDelete := closedSegs[:len(closedSegs)-maxSegments]
	for _, seg := range toDelete {
		if err := os.Remove(seg.path); err != nil && !os.IsNotExist(err) {
			return kerrors.IOErrorf("wal: remove %s: %v", seg.path, err)
		}
	}
	return nil
}

func (l *fileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.activeBuf != nil {
		_ = l.activeBuf.Flush()
	}
	if l.activeFile != nil {
		_ = l.activeFile.Sync()
		return l.activeFile.Close()
	}
	return nil
}

var _ Log = (*fileLog)(nil)
