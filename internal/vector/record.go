package vector

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
)

// recordOp tags a vectors.bin record as an upsert or a delete, the
// collection's own tagged-union framing (spec §4.3: "a durable per-
// collection record file"), adapted from the teacher's
// [offset u64][len u32][data] appendlog framing (pkg/appendlog/fs_store.go)
// with an added one-byte op tag ahead of the length-prefixed JSON body.
type recordOp byte

const (
	opUpsert recordOp = 1
	opDelete recordOp = 2
)

// record is one framed entry of a collection's vectors.bin file.
type record struct {
	Op     recordOp
	Offset event.Offset
	ID     string
	Vec    []float32                  `json:"vec,omitempty"`
	Meta   map[string]json.RawMessage `json:"meta,omitempty"`
}

type recordWire struct {
	ID   string                      `json:"id"`
	Vec  []float32                   `json:"vec,omitempty"`
	Meta map[string]json.RawMessage  `json:"meta,omitempty"`
}

// writeRecord appends one framed record: [op u8][offset u64][len u32][json body].
func writeRecord(w io.Writer, r record) (int64, error) {
	body, err := json.Marshal(recordWire{ID: r.ID, Vec: r.Vec, Meta: r.Meta})
	if err != nil {
		return 0, kerrors.Internalf("vector: marshal record: %v", err)
	}
	var hdr [13]byte
	hdr[0] = byte(r.Op)
	binary.LittleEndian.PutUint64(hdr[1:9], uint64(r.Offset))
	binary.LittleEndian.PutUint32(hdr[9:13], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return 0, kerrors.IOErrorf("vector: write record header: %v", err)
	}
	if _, err := w.Write(body); err != nil {
		return 0, kerrors.IOErrorf("vector: write record body: %v", err)
	}
	return int64(len(hdr) + len(body)), nil
}

// readRecord reads one framed record from r. io.EOF (clean, at a record
// boundary) is returned unwrapped so callers can detect end of file;
// io.ErrUnexpectedEOF signals a truncated trailing record.
func readRecord(r io.Reader) (record, int64, error) {
	var hdr [13]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return record{}, 0, err
	}
	op := recordOp(hdr[0])
	offset := event.Offset(binary.LittleEndian.Uint64(hdr[1:9]))
	n := binary.LittleEndian.Uint32(hdr[9:13])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return record{}, 0, err
	}
	var wire recordWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return record{}, 0, kerrors.IOErrorf("vector: corrupt record body: %v", err)
	}
	return record{Op: op, Offset: offset, ID: wire.ID, Vec: wire.Vec, Meta: wire.Meta}, int64(len(hdr)) + int64(n), nil
}
