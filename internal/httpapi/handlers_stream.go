package httpapi

import (
	"bufio"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/kerrors"
	"github.com/kissvdb/kissvdb/internal/subscription"
)

// StreamEngine is the subset of *engine.Engine the event stream handler
// needs.
type StreamEngine interface {
	Subscribe(since event.Offset, filter subscription.Filter) *subscription.Subscription
}

// streamPayload is the data: line body (spec §6 stream event framing).
type streamPayload struct {
	TimestampMS  int64           `json:"ts_ms"`
	Type         event.Kind      `json:"type"`
	Key          string          `json:"key,omitempty"`
	Collection   string          `json:"collection,omitempty"`
	ID           string          `json:"id,omitempty"`
	Revision     uint64          `json:"revision,omitempty"`
	Patch        json.RawMessage `json:"patch,omitempty"`
	FromOffset   event.Offset    `json:"from_offset,omitempty"`
	ToOffset     event.Offset    `json:"to_offset,omitempty"`
	Dropped      uint64          `json:"dropped,omitempty"`
}

func payloadFor(ev event.Event) streamPayload {
	if ev.IsGap() {
		return streamPayload{Type: event.KindGap, FromOffset: ev.FromOffset, ToOffset: ev.ToOffset, Dropped: ev.Dropped}
	}
	return streamPayload{
		TimestampMS: ev.TimestampMS,
		Type:        ev.Kind,
		Key:         ev.Key,
		Collection:  ev.Collection,
		ID:          ev.ID,
		Revision:    ev.Revision,
		Patch:       ev.Patch,
	}
}

// RegisterStream mounts the long-lived event stream endpoint (spec §6):
// query params since/types/key_prefix/collection, with the standard
// Last-Event-ID header overriding since on reconnect.
func RegisterStream(r *Router, eng StreamEngine) {
	r.GET("/v1/events", func(ctx *RequestContext) error {
		since, err := parseSince(ctx)
		if err != nil {
			return err
		}
		filter := parseFilter(ctx)
		sub := eng.Subscribe(since, filter)

		ctx.SetContentType("text/event-stream")
		ctx.Response.Header.Set("Cache-Control", "no-cache")
		ctx.Response.Header.Set("Connection", "keep-alive")
		ctx.Response.Header.Set("X-Accel-Buffering", "no")

		reqCtx := ctx.Context()
		ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
			defer sub.Close()
			for {
				ev, err := sub.Next(reqCtx)
				if err != nil {
					return
				}
				if err := writeSSE(w, ev); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		})
		return nil
	})
}

func writeSSE(w *bufio.Writer, ev event.Event) error {
	data, err := json.Marshal(payloadFor(ev))
	if err != nil {
		return err
	}
	if _, err := w.WriteString("event: " + string(ev.Kind) + "\n"); err != nil {
		return err
	}
	if _, err := w.WriteString("id: " + strconv.FormatUint(uint64(ev.Offset), 10) + "\n"); err != nil {
		return err
	}
	if _, err := w.WriteString("data: "); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.WriteString("\n\n")
	return err
}

func parseSince(ctx *RequestContext) (event.Offset, error) {
	// Standard SSE reconnect behavior: Last-Event-ID, when present,
	// overrides the since query parameter (spec §6).
	if lastID := string(ctx.Request.Header.Peek("Last-Event-ID")); lastID != "" {
		n, err := strconv.ParseUint(lastID, 10, 64)
		if err != nil {
			return 0, kerrors.InvalidArgumentf("events: malformed Last-Event-ID %q", lastID)
		}
		return event.Offset(n + 1), nil
	}
	raw := ctx.Query("since")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, kerrors.InvalidArgumentf("events: malformed since %q", raw)
	}
	return event.Offset(n), nil
}

func parseFilter(ctx *RequestContext) subscription.Filter {
	f := subscription.Filter{
		KeyPrefix:  ctx.Query("key_prefix"),
		Collection: ctx.Query("collection"),
	}
	if types := ctx.Query("types"); types != "" {
		f.Kinds = make(map[event.Kind]struct{})
		for _, t := range strings.Split(types, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				f.Kinds[event.Kind(t)] = struct{}{}
			}
		}
	}
	return f
}
