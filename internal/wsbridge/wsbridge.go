// Package wsbridge offers the event stream over a WebSocket connection
// instead of SSE, for clients that prefer a framed duplex socket over a
// chunked HTTP response. Adapted from fluxor's
// pkg/core/eventbus_ws.go (one upgrader, one goroutine per connection
// reading/writing JSON messages); KissVDB's bridge is read-only from the
// client's perspective, so it keeps only the server-to-client half of
// that shape.
package wsbridge

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/failfast"
	"github.com/kissvdb/kissvdb/internal/logging"
	"github.com/kissvdb/kissvdb/internal/subscription"
)

const writeTimeout = 10 * time.Second

// Bridge upgrades HTTP connections and streams matching events to each
// client as JSON text frames until the client disconnects.
type Bridge struct {
	bus      subscription.Bus
	upgrader websocket.Upgrader
	log      logging.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New builds a Bridge over bus. log may be nil, in which case a default
// logger is used.
func New(bus subscription.Bus, log logging.Logger) *Bridge {
	failfast.NotNil(bus, "bus")
	if log == nil {
		log = logging.Default()
	}
	return &Bridge{
		bus: bus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

type wsPayload struct {
	Offset      event.Offset    `json:"offset"`
	Type        event.Kind      `json:"type"`
	Key         string          `json:"key,omitempty"`
	Collection  string          `json:"collection,omitempty"`
	ID          string          `json:"id,omitempty"`
	Revision    uint64          `json:"revision,omitempty"`
	TimestampMS int64           `json:"ts_ms,omitempty"`
	Patch       json.RawMessage `json:"patch,omitempty"`
	FromOffset  event.Offset    `json:"from_offset,omitempty"`
	ToOffset    event.Offset    `json:"to_offset,omitempty"`
	Dropped     uint64          `json:"dropped,omitempty"`
}

func toPayload(ev event.Event) wsPayload {
	if ev.IsGap() {
		return wsPayload{Offset: ev.Offset, Type: event.KindGap, FromOffset: ev.FromOffset, ToOffset: ev.ToOffset, Dropped: ev.Dropped}
	}
	return wsPayload{
		Offset: ev.Offset, Type: ev.Kind, Key: ev.Key, Collection: ev.Collection,
		ID: ev.ID, Revision: ev.Revision, TimestampMS: ev.TimestampMS, Patch: ev.Patch,
	}
}

// ServeHTTP upgrades the request and streams events matching the same
// since/types/key_prefix/collection query parameters the SSE endpoint
// accepts (spec §6).
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	since, filter := parseQuery(r)

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warnf("wsbridge: upgrade failed: %v", err)
		return
	}

	b.mu.Lock()
	b.clients[conn] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	ctx := r.Context()
	sub := subscription.New(b.bus, since, filter)
	defer sub.Close()
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(toPayload(ev)); err != nil {
			return
		}
	}
}

func parseQuery(r *http.Request) (event.Offset, subscription.Filter) {
	q := r.URL.Query()

	var since event.Offset
	if lastID := r.Header.Get("Last-Event-ID"); lastID != "" {
		if n, err := strconv.ParseUint(lastID, 10, 64); err == nil {
			since = event.Offset(n + 1)
		}
	} else if raw := q.Get("since"); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			since = event.Offset(n)
		}
	}

	filter := subscription.Filter{
		KeyPrefix:  q.Get("key_prefix"),
		Collection: q.Get("collection"),
	}
	if types := q.Get("types"); types != "" {
		filter.Kinds = make(map[event.Kind]struct{})
		for _, t := range strings.Split(types, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				filter.Kinds[event.Kind(t)] = struct{}{}
			}
		}
	}
	return since, filter
}
